// Package version holds the build version, injected at release time
// via -ldflags "-X .../internal/version.Version=vX.Y.Z".
package version

// Version is the current build version.
var Version = "dev"
