package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/logger"
)

// Check is a named readiness check (record store, Redis).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access readyz/metrics/reload
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins  []string // origins allowed for browser clients

	LoginBurst        int // login attempts per client IP in a burst
	LoginRefillPerMin int // login attempts regained per minute

	Gateway *domain.AuthGateway     // login, logout, verify
	Tokens  *domain.TokenStore      // bearer token validation for API routes
	Access  *domain.AccessResolver  // visible sets
	Sync    *domain.SyncQueryEngine // shortcut queries
	Catalog domain.CatalogStore     // shortcut counts per set

	TokenBackend  string        // "sqlite" or "redis", reported by /healthz
	ReadyChecks   []Check       // checks run by /readyz
	ReloadTrigger chan struct{} // manual seed reload (nil when no seed file is configured)
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
