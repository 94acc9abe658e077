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

// Package upgrade plans and applies incremental server updates.
package upgrade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned for a version that is not a dotted
// numeric triple such as "1.1.104".
var ErrInvalidVersion = errors.New("invalid version")

// Edge is one published patch, taking the server from one exact version
// to another. Initial-install entries have no From.
type Edge struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

func (e Edge) String() string {
	return e.From + " -> " + e.To
}

// ParseVersion parses a server version. Missing components are zero, so
// "1.0" equals "1.0.0".
func ParseVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil || v.Prerelease() != "" || v.Metadata() != "" || strings.HasPrefix(s, "v") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return v, nil
}

// Compare compares two versions numerically, returning -1, 0 or 1.
func Compare(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// HighestSingleUpgrade returns the edge leaving from whose To is the
// greatest version. Edges without a From are skipped. When several edges
// reach equal versions the first one wins.
func HighestSingleUpgrade(from string, edges []Edge) (Edge, bool, error) {
	var (
		best    Edge
		bestVer *semver.Version
		found   bool
	)
	for _, e := range edges {
		if e.From == "" || e.From != from {
			continue
		}
		v, err := ParseVersion(e.To)
		if err != nil {
			return Edge{}, false, fmt.Errorf("edge %s: %w", e, err)
		}
		if !found || v.GreaterThan(bestVer) {
			best, bestVer, found = e, v, true
		}
	}
	return best, found, nil
}

// Plan walks greedily from current, always taking the largest single hop,
// until no edge leaves the version reached. A version is never visited
// twice, so a cycle in edges ends the walk. An empty plan means current is
// already the newest reachable version.
func Plan(current string, edges []Edge) ([]Edge, error) {
	if _, err := ParseVersion(current); err != nil {
		return nil, err
	}

	visited := map[string]bool{current: true}
	var plan []Edge
	frontier := current
	for {
		next, ok, err := HighestSingleUpgrade(frontier, edges)
		if err != nil {
			return nil, err
		}
		if !ok || visited[next.To] {
			return plan, nil
		}
		visited[next.To] = true
		plan = append(plan, next)
		frontier = next.To
	}
}

// Target returns the version plan ends at, or current for an empty plan.
func Target(current string, plan []Edge) string {
	if len(plan) == 0 {
		return current
	}
	return plan[len(plan)-1].To
}
