package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultTokenTTL is the fixed lifetime of an issued token (180 days).
const DefaultTokenTTL = 180 * 24 * time.Hour

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline propagated to the record store

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DBPath             string        // path to the SQLite record store
	TokenTTL           time.Duration // token lifetime (default: 180 days)
	TokenSweepInterval time.Duration // interval between expired-token sweeps (default: 24h)

	SeedFile           string        // optional YAML seed with users, sets and shortcuts
	SeedReloadInterval time.Duration // interval to re-apply the seed file (default: 1h)

	// Redis (optional). When RedisAddr is empty, tokens live in SQLite.
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints (readyz, metrics, reload)
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	CORSOrigins  []string // optional, origins allowed for browser clients ("*" = any)

	LoginBurst        int // login attempts allowed in a burst per client IP
	LoginRefillPerMin int // login attempts regained per minute per client IP
}

func Load() *Config {
	// A missing .env file is not an error: production reads the real environment.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TEXTSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TEXTSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("TEXTSYNC_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TEXTSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TEXTSYNC_PRETTY_LOG", false),

		// Record store and tokens
		DBPath:             requireEnv("TEXTSYNC_DB_PATH"),
		TokenTTL:           mustDuration("TEXTSYNC_TOKEN_TTL", DefaultTokenTTL),
		TokenSweepInterval: mustDuration("TEXTSYNC_TOKEN_SWEEP_INTERVAL", 24*time.Hour),

		// Seed
		SeedFile:           getenv("TEXTSYNC_SEED_FILE", ""),
		SeedReloadInterval: mustDuration("TEXTSYNC_SEED_RELOAD_INTERVAL", time.Hour),

		// Redis settings
		RedisAddr:           getenv("TEXTSYNC_REDIS_ADDR", ""),
		RedisUser:           getenv("TEXTSYNC_REDIS_USERNAME", ""),
		RedisPassword:       getenv("TEXTSYNC_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("TEXTSYNC_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("TEXTSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("TEXTSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("TEXTSYNC_TRUST_PROXY", false),
		CORSOrigins:  splitAndTrim(getenv("TEXTSYNC_CORS_ORIGINS", "")),

		LoginBurst:        getenvInt("TEXTSYNC_LOGIN_BURST", 10),
		LoginRefillPerMin: getenvInt("TEXTSYNC_LOGIN_REFILL_PER_MIN", 5),
	}

	if cfg.TokenTTL <= 0 {
		panic(fmt.Sprintf("❌ FATAL: TEXTSYNC_TOKEN_TTL must be > 0, got %v", cfg.TokenTTL))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// TokenTTLOverridden reports whether TEXTSYNC_TOKEN_TTL moved the token
// lifetime away from the fixed 180 days clients expect.
func (c *Config) TokenTTLOverridden() bool {
	return c.TokenTTL != DefaultTokenTTL
}

// RedisEnabled reports whether tokens should be stored in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
