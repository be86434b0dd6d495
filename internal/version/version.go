// Package version carries build identity, stamped at link time via
// -ldflags "-X ...". affectd reports it through the -version flag and
// the /api/version endpoint.
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)
