// Package version holds the build version stamped into release binaries.
package version

// Version is overridden at build time via -ldflags.
var Version = "0.1.0"
