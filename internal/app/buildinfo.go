package app

import "fmt"

// Build information set with -ldflags at release time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString formats the build information for `goextract version`.
func VersionString() string {
	return fmt.Sprintf("goextract %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}
