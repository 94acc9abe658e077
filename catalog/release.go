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

package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCatalogUnavailable is returned when mod metadata could not be
	// fetched or decoded.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrNoReleases is returned for a mod that has no releases.
	ErrNoReleases = fmt.Errorf("%w: no releases", ErrCatalogUnavailable)
)

// Mod is the portal's full metadata for one mod.
type Mod struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Owner    string    `json:"owner"`
	Summary  string    `json:"summary"`
	Releases []Release `json:"releases"`
}

// Release is one published version of a mod.
type Release struct {
	Version     string    `json:"version"`
	ReleasedAt  Timestamp `json:"released_at"`
	InfoJSON    InfoJSON  `json:"info_json"`
	FileName    string    `json:"file_name"`
	DownloadURL string    `json:"download_url"`
	SHA1        string    `json:"sha1,omitempty"`
}

// InfoJSON is the subset of a release's info.json the portal returns.
type InfoJSON struct {
	FactorioVersion string   `json:"factorio_version,omitempty"`
	Dependencies    []string `json:"dependencies"`
}

// Dependencies returns the raw dependency declarations of the release.
func (r Release) Dependencies() []string {
	return r.InfoJSON.Dependencies
}

// Timestamp is a released_at value. The portal emits ISO-8601 with a
// trailing Z, with or without fractional seconds and with either a T or
// a space between date and time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses a released_at string.
func ParseTimestamp(s string) (Timestamp, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid released_at %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000000") + "Z")
}

// LatestRelease returns the release with the greatest released_at.
// On a tie the earliest entry in releases wins.
func LatestRelease(releases []Release) (Release, error) {
	if len(releases) == 0 {
		return Release{}, ErrNoReleases
	}
	latest := releases[0]
	for _, r := range releases[1:] {
		if r.ReleasedAt.After(latest.ReleasedAt.Time) {
			latest = r
		}
	}
	return latest, nil
}
