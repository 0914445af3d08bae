// Package version holds build metadata stamped in at link time.
package version

import "runtime"

// Populated via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/tomehq/tome/version.GitRelease=v0.3.0"
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo is the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
