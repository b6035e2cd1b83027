package version

import (
	"runtime/debug"
	"strings"
)

// Version will be set during build time via ldflags
var Version = "dev"

// BuildTime will be set during build time via ldflags
var BuildTime = "unknown"

// GitCommit will be set during build time via ldflags
var GitCommit = "unknown"

// readBuildInfo is swapped in tests
var readBuildInfo = debug.ReadBuildInfo

// Info is the version of the running binary
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns the ldflags values, filling gaps from the VCS stamp the Go
// toolchain embeds in module builds.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && len(s.Value) >= 7 {
				info.GitCommit = s.Value[:7]
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// GetVersionInfo returns the version string
func GetVersionInfo() string {
	info := Get()
	if info.Version == "dev" && info.GitCommit != "unknown" {
		return "dev-" + info.GitCommit
	}
	return info.Version
}

// GetFullVersionInfo returns detailed version information
func GetFullVersionInfo() string {
	info := Get()
	version := GetVersionInfo()
	if info.Modified {
		version += "+dirty"
	}
	if info.BuildTime != "unknown" && info.GitCommit != "unknown" {
		return version + " (built " + info.BuildTime + ", commit " + info.GitCommit + ")"
	}
	if info.GitCommit != "unknown" {
		return version + " (commit " + info.GitCommit + ")"
	}
	return version
}
