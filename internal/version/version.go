// Package version reports which concierge build is running.
//
// Release builds stamp Version, Commit and BuildDate with -ldflags -X. Plain
// `go build` and `go install` leave them at their defaults, in which case the
// module version and VCS stamps recorded by the Go toolchain are used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const name = "concierge"

// Stamped at link time.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	BuildDate string
	Modified  bool
	GoVersion string
	Platform  string
}

// Current resolves the build description, preferring linker stamps over
// toolchain build info.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	info, ok := readBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == "" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortCommit is the first 7 characters of the commit, "unknown" when absent,
// with a "-dirty" suffix for modified trees.
func (b Build) ShortCommit() string {
	c := b.Commit
	if c == "" {
		return "unknown"
	}
	if len(c) > 7 {
		c = c[:7]
	}
	if b.Modified {
		c += "-dirty"
	}
	return c
}

func (b Build) date() string {
	if b.BuildDate == "" {
		return "unknown"
	}
	return b.BuildDate
}

// Line is the one-line form used by `concierge version`.
func (b Build) Line() string {
	return fmt.Sprintf("%s %s (%s, %s, %s)", name, b.Version, b.ShortCommit(), b.date(), b.GoVersion)
}

// Detail is the multi-line form used by `concierge version -v`.
func (b Build) Detail() string {
	rows := [][2]string{
		{"Version", b.Version},
		{"Commit", b.ShortCommit()},
		{"Built", b.date()},
		{"Go", b.GoVersion},
		{"Platform", b.Platform},
	}
	var sb strings.Builder
	sb.WriteString(name)
	for _, r := range rows {
		fmt.Fprintf(&sb, "\n  %-9s %s", r[0]+":", r[1])
	}
	return sb.String()
}

func Short() string { return Current().Version }

func Info() string { return Current().Line() }

func Full() string { return Current().Detail() }

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return name + "/" + Current().Version
}
