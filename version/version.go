// Package version exposes the build identity stamped into the fifi binary.
package version

import (
	"fmt"
	"runtime"
)

// Stamped by the release build via -ldflags; a plain `go build` ships the
// dev defaults.
var (
	// Version is the release tag, or "dev" for untagged builds.
	Version = "dev"

	// CommitHash identifies the exact source the binary was built from.
	CommitHash = "dev"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info is the full build identity reported by `fifi version`.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get assembles the build identity, filling in the runtime-derived fields.
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String formats the identity the way `fifi version` prints it.
func (i Info) String() string {
	v := i.Version
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("fifi %s (commit %s, built %s)", v, i.CommitHash, i.BuildTime)
}

// Short returns the abbreviated commit hash for log banners.
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
