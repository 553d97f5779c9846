// Package version holds build metadata for the tablechat binary,
// injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	BuiltAt = "unknown"
)
