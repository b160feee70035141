// Package version reports the build of the migrator binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// set with -ldflags "-X github.com/badgie/migrator/cli/internal/version.Version=..."
var (
	Version   = ""
	BuildDate = ""
	GitCommit = ""
)

// Info describes the running binary
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	Modified  bool
	GoVersion string
	Platform  string
}

// Get returns the version information. Values not set at link time are taken
// from the module build info, as recorded by go install.
func Get() Info {
	info := Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi)
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

func (i *Info) fill(bi *debug.BuildInfo) {
	if i.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "" {
				i.GitCommit = s.Value
			}
		case "vcs.time":
			if i.BuildDate == "" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// String returns the short version string
func (i Info) String() string {
	return fmt.Sprintf("%s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	commit := orUnknown(i.GitCommit)
	if i.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf(`migrator version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, orUnknown(i.BuildDate), commit, i.Platform, i.GoVersion)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
