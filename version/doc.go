// Package version reports build information for chainkit binaries.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/chainkit/version.Version=1.0.0"
//
// Fields left unset fall back to the VCS stamps of the Go build info.
package version
