/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package version reports the fhctl build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time via -ldflags "-X github.com/factorio-headless/fhctl/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = "unknown"
	BuildTime = "unknown"
	GitDirty  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	GitTag    string `json:"gitTag"`
	BuildTime string `json:"buildTime"`
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get collects the build information.
func Get() Info {
	return Info{
		Version:   resolveVersion(Version, GitTag, GitCommit, GitDirty == "dirty", buildInfoVersion()),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		BuildTime: BuildTime,
		Dirty:     GitDirty == "dirty",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	if i.GitCommit != "unknown" && !strings.Contains(i.Version, shortCommit(i.GitCommit)) {
		return fmt.Sprintf("fhctl %s (commit: %s)", i.Version, shortCommit(i.GitCommit))
	}
	return "fhctl " + i.Version
}

func buildInfoVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return ""
}

// resolveVersion prefers the ldflags version, then the module version,
// then tag plus short commit.
func resolveVersion(ldflags, tag, commit string, dirty bool, module string) string {
	switch {
	case ldflags != "dev" && ldflags != "":
		return ldflags
	case module != "":
		return module
	case tag == "unknown" || commit == "unknown":
		return "dev"
	}

	v := tag
	if short := shortCommit(commit); short != "" && !strings.HasSuffix(tag, short) {
		v += "-" + short
	}
	if dirty {
		v += "-dirty"
	}
	return v
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
