// Package version reports build information for dikit binaries.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/dikit/version.Version=1.0.0" ./cmd/dikit-inspect
//
// Missing values fall back to the VCS stamps in the module build info.
package version
