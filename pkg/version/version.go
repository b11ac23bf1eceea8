// Package version holds the build identity of the assistant binary.
// The variables are set at link time, e.g.
// go build -ldflags "-X assistant/pkg/version.Version=v1.2.3".
package version

import (
	"fmt"
	"runtime"

	promversion "github.com/prometheus/common/version"
)

//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version, or "dev" for local builds.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)

func init() {
	// The build_info collector reads these.
	promversion.Version = Version
	promversion.Revision = Commit
	promversion.BuildDate = Date
}

// String renders a one-line build description.
func String() string {
	return fmt.Sprintf("assistant %s (commit %s, built %s, %s/%s)", Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
