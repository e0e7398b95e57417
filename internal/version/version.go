package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X bluetray/internal/version.Version=...".
var (
	Version   = "v0.0.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo fills anything ldflags left unset from the VCS stamp that
// go build embeds.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = shortCommit(s.Value)
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

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Info is the one-line form used in the startup log.
func Info() string {
	b := GetBuildInfo()
	return fmt.Sprintf("bluetray %s (commit: %s)", b.Version, b.Commit)
}

func DetailedInfo() string {
	b := GetBuildInfo()
	commit := b.Commit
	if b.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf(
		"bluetray %s\n"+
			"  Commit: %s\n"+
			"  Built: %s\n"+
			"  Go: %s\n"+
			"  OS/Arch: %s/%s",
		b.Version, commit, b.BuildTime, b.GoVersion, b.OS, b.Arch,
	)
}

func GetVersion() string {
	return Version
}

// IsPrerelease reports whether the version carries a suffix such as -dev or
// -rc1.
func IsPrerelease() bool {
	return strings.Contains(strings.TrimPrefix(Version, "v"), "-")
}
