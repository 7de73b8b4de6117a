// Package version holds build-time version information.
package version

// Version is the semantic version, overridden at build time via
// -ldflags "-X github.com/majedsharif/corti-scribe/internal/version.Version=...".
var Version = "0.2.0-dev"

// Commit is the git commit hash, set at build time.
var Commit = "unknown"
