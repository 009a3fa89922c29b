// Package version exposes build version information for the relink binaries.
package version

import "fmt"

// Version is the semantic version, overridable at build time with
// -ldflags "-X github.com/relink-labs/relink/internal/version.Version=…".
var Version = "0.1.0-dev"

// Commit is the git commit the binary was built from.
var Commit = "unknown"

// Short returns just the version string.
func Short() string {
	return Version
}

// String returns the full version identifier.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
