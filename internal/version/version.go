// Package version holds the build identity of panic-list.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X panic-list/internal/version.Version=0.4.0 -X panic-list/internal/version.Commit=abc123"
var (
	// Version is the semantic version of panic-list
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit returns Commit, falling back to the VCS revision the go tool
// stamped into the binary.
func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}

// Info returns a formatted version string
func Info() string {
	if c := commit(); c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return fmt.Sprintf("panic-list version %s\nCommit: %s\nBuilt: %s\nGo: %s %s/%s",
		Version, commit(), BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
