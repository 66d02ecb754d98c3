// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/buildinfo.Version=v1.2.0 \
//		-X github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/buildinfo.GitCommit=$(git rev-parse HEAD)"
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

func init() {
	if GitCommit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			GitCommit = s.Value
		}
	}
}

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("ahoyd %s (commit: %s, built: %s, go: %s)", Version, GitCommit, BuildDate, GoVersion)
}

// Attrs returns the metadata as slog key/value pairs.
func Attrs() []any {
	return []any{"version", Version, "commit", GitCommit, "build_date", BuildDate, "go_version", GoVersion}
}
