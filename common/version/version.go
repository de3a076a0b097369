// Package version exposes the build metadata stamped in via ldflags, e.g.
//
//	go build -ldflags "-X github.com/bdobrica/Jeff/common/version.Version=v1.2.0"
package version

var (
	// Version is the semantic version of this build.
	Version = "v0.0.0-dev"

	// GitCommit is the abbreviated commit hash of this build.
	GitCommit = "unknown"

	// BuildTime is when the binary was produced.
	BuildTime = "unknown"
)

// Info renders the build metadata as one human-readable line.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
