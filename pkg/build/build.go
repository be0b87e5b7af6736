// Package build carries version metadata stamped in at link time via
// -ldflags "-X github.com/storacha/cloud-mirror/pkg/build.Version=...".
package build

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
	BuiltBy = "unknown"
)
