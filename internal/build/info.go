package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	_ "embed"
)

// Name is the service name reported by /version and the CLI.
const Name = "auditflow"

//go:embed VERSION
var rawVersion []byte

// Set through -ldflags "-X github.com/looplj/auditflow/internal/build.Commit=...".
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

var (
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH
	startTime = time.Now()
	module    = ""
	dirty     = false
)

//nolint:gochecknoinits // resolve version info once.
func init() {
	if Version == "" {
		Version = strings.TrimSpace(string(rawVersion))
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(bi)
	}
}

// applyBuildInfo fills what ldflags left empty from the toolchain's VCS stamp.
func applyBuildInfo(bi *debug.BuildInfo) {
	module = bi.Main.Path

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" {
				Commit = s.Value
			}
		case "vcs.time":
			if BuildTime == "" {
				BuildTime = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
}

type Info struct {
	Name      string `json:"name"`
	Module    string `json:"module,omitempty"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

func GetBuildInfo() Info {
	return Info{
		Name:      Name,
		Module:    module,
		Version:   Version,
		Commit:    Commit,
		Dirty:     dirty,
		BuildTime: BuildTime,
		GoVersion: goVersion,
		Platform:  platform,
		Uptime:    time.Since(startTime).Truncate(time.Second).String(),
	}
}

func (i Info) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", i.Name, i.Version)

	if i.Module != "" {
		fmt.Fprintf(&sb, "Module: %s\n", i.Module)
	}

	if i.Commit != "" {
		commit := i.Commit
		if i.Dirty {
			commit += " (modified)"
		}

		fmt.Fprintf(&sb, "Commit: %s\n", commit)
	}

	if i.BuildTime != "" {
		fmt.Fprintf(&sb, "Build Time: %s\n", i.BuildTime)
	}

	fmt.Fprintf(&sb, "Go Version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "Platform: %s\n", i.Platform)
	fmt.Fprintf(&sb, "Uptime: %s\n", i.Uptime)

	return sb.String()
}
