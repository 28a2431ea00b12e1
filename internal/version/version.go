// Package version holds build information injected via ldflags:
//
//	-X github.com/HerbHall/mdpanel/internal/version.Version=1.2.0
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the one-line form printed by "mdpanel version".
func Info() string {
	return fmt.Sprintf("mdpanel %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version, "dev" for local builds.
func Short() string {
	return Version
}

// Map returns build info for the health endpoint.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
