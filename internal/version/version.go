package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/MrSnakeDoc/textsync/internal/version.Version=v1.2.0 ...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// String is the one-line build description logged at startup.
func String() string {
	return fmt.Sprintf("textsync %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
