package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the application version string.
func String() string {
	return Version
}

// Banner is the one-line form printed by the version command and at
// startup, e.g. "snapcam dev (abc1234, built 2025-01-27)".
func Banner() string {
	i := Get()
	s := "snapcam " + i.Version
	if i.GitCommit != "unknown" {
		commit := i.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		s += " (" + commit
		if i.BuildDate != "unknown" {
			s += ", built " + i.BuildDate
		}
		s += ")"
	}
	return s + " " + i.Platform
}
