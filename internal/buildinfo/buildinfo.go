// Package buildinfo carries the version stamps for the dbaasd binaries.
package buildinfo

import "fmt"

// Overridden at release time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the stamps for -version output and startup logs.
func String() string {
	return fmt.Sprintf("dbaasd %s (commit %s, built %s)", Version, Commit, Date)
}
