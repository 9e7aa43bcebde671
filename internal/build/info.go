// Package build carries version information stamped in with -ldflags, e.g.
//
//	-X github.com/shaharia-lab/mailworker/internal/build.Version=v1.2.0
package build

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata reported by the version command and API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Current returns the stamped build metadata.
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    CommitSHA,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders i on one line.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}

// String returns Current().String().
func String() string {
	return Current().String()
}
