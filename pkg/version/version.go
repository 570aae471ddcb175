// Package version reports the resourcesearch build: its own version and
// commit, and the version of the search engine module it was built with.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags:
//
//	-X github.com/Aman-CERP/resourcesearch/pkg/version.Version=$(VERSION)
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// engineModule identifies the text index implementation.
const engineModule = "github.com/blevesearch/bleve/v2"

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	Engine    string `json:"engine,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information. Values missing from ldflags are
// taken from the module build info when the binary carries it.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fill(&info, bi)
	}
	return info
}

func fill(info *BuildInfo, bi *debug.BuildInfo) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	for _, dep := range bi.Deps {
		if dep.Path != engineModule {
			continue
		}
		info.Engine = dep.Version
		if dep.Replace != nil {
			info.Engine = dep.Replace.Version + " (replaced)"
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String renders the build on one line, omitting unknown parts.
func (i BuildInfo) String() string {
	s := "resourcesearch " + i.Version
	if i.Commit != "" {
		s += " (" + i.Commit
		if i.Modified {
			s += ", modified"
		}
		s += ")"
	}
	if i.Date != "" {
		s += " built " + i.Date
	}
	if i.Engine != "" {
		s += ", bleve " + i.Engine
	}
	return fmt.Sprintf("%s, %s %s", s, i.GoVersion, i.Platform)
}

// String returns the one-line build description.
func String() string {
	return Get().String()
}
