// Package version reports which propharvest build is running.
//
// Release builds set the variables below with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/propharvest/internal/version.Version=1.0.0 ..."
//
// Builds without ldflags (go install, go run) fall back to the VCS stamp the
// Go toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via ldflags. Empty or placeholder values defer to the embedded build info.
var (
	Version   = "dev"
	Commit    = ""
	Dirty     = ""
	BuildDate = ""
)

// ProjectURL is sent in identifying headers to third-party services.
const ProjectURL = "https://github.com/jmylchreest/propharvest"

const unknown = "unknown"

// Info is the structured form printed by `propharvest version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves the build metadata.
func Get() Info {
	stamp := vcsStamp()

	info := Info{
		Version:   Version,
		Commit:    firstSet(Commit, stamp.revision, unknown),
		Dirty:     firstSet(Dirty, stamp.modified, "false") == "true",
		BuildDate: firstSet(BuildDate, stamp.time, unknown),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "dev" && stamp.module != "" {
		info.Version = strings.TrimPrefix(stamp.module, "v")
	}
	return info
}

// String returns the version, suffixed with -dirty for modified trees.
func String() string {
	info := Get()
	if info.Dirty {
		return info.Version + "-dirty"
	}
	return info.Version
}

// UserAgent identifies the harvester to geocoding services, whose usage
// policies require a contactable application name.
func UserAgent() string {
	return fmt.Sprintf("propharvest/%s (+%s)", String(), ProjectURL)
}

// Full returns the multi-line form printed by `propharvest version`.
func Full() string {
	info := Get()

	var sb strings.Builder
	fmt.Fprintf(&sb, "propharvest %s\n", String())
	fmt.Fprintf(&sb, "  Commit:     %s\n", info.Commit)
	if info.Dirty {
		sb.WriteString("  Dirty:      yes\n")
	}
	fmt.Fprintf(&sb, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", info.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", info.Platform)
	return sb.String()
}

type buildStamp struct {
	module   string
	revision string
	time     string
	modified string
}

func vcsStamp() buildStamp {
	var s buildStamp
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		s.module = v
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.revision = setting.Value
			if len(s.revision) > 12 {
				s.revision = s.revision[:12]
			}
		case "vcs.time":
			s.time = setting.Value
		case "vcs.modified":
			s.modified = setting.Value
		}
	}
	return s
}

// firstSet returns the first meaningful value, or the last one as a fallback.
func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" && v != unknown {
			return v
		}
	}
	return values[len(values)-1]
}
