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

package modinfo

import (
	"fmt"

	"github.com/factorio-headless/fhctl/dependency"
)

// BaseMod is the game's own content, always present.
const BaseMod = "base"

// ProblemKind classifies a Problem.
type ProblemKind int

const (
	// Missing means a required dependency is not installed.
	Missing ProblemKind = iota
	// Incompatible means a mod declared incompatible is installed.
	Incompatible
	// Unsatisfied means the installed version fails the declared constraint.
	Unsatisfied
	// Duplicate means two installed entries carry the same mod name.
	Duplicate
)

func (k ProblemKind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Incompatible:
		return "incompatible"
	case Unsatisfied:
		return "unsatisfied"
	case Duplicate:
		return "duplicate"
	}
	return fmt.Sprintf("ProblemKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ProblemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Problem is one inconsistency among installed mods.
type Problem struct {
	Mod        string      `json:"mod"`
	Kind       ProblemKind `json:"kind"`
	Dependency string      `json:"dependency"`
	Installed  string      `json:"installed,omitempty"`
}

func (p Problem) String() string {
	switch p.Kind {
	case Missing:
		return fmt.Sprintf("%s: requires %s, not installed", p.Mod, p.Dependency)
	case Incompatible:
		return fmt.Sprintf("%s: incompatible with %s %s, which is installed", p.Mod, p.Dependency, p.Installed)
	case Unsatisfied:
		return fmt.Sprintf("%s: requires %s, found %s", p.Mod, p.Dependency, p.Installed)
	case Duplicate:
		return fmt.Sprintf("%s: installed more than once (%s)", p.Mod, p.Installed)
	}
	return p.Mod + ": " + p.Dependency
}

// Check reports missing required dependencies, installed incompatible mods
// and unsatisfied version constraints among mods. baseVersion is the game
// version used for constraints on base; when empty those constraints are
// not evaluated. Optional dependencies are only checked when installed.
// A malformed declaration is an error rather than a Problem.
func Check(mods []Mod, baseVersion string) ([]Problem, error) {
	installed := make(map[string]string, len(mods)+1)
	var problems []Problem
	for _, m := range mods {
		if prev, ok := installed[m.Info.Name]; ok {
			problems = append(problems, Problem{
				Mod:       m.Info.Name,
				Kind:      Duplicate,
				Installed: prev + ", " + m.Info.Version,
			})
			continue
		}
		installed[m.Info.Name] = m.Info.Version
	}
	installed[BaseMod] = baseVersion

	for _, m := range mods {
		specs, err := m.Info.Specs()
		if err != nil {
			return nil, err
		}
		for _, s := range specs {
			if p, ok := checkSpec(m.Info.Name, s, installed); ok {
				problems = append(problems, p)
			}
		}
	}
	return problems, nil
}

func checkSpec(mod string, s dependency.Spec, installed map[string]string) (Problem, bool) {
	version, present := installed[s.Name()]
	switch {
	case s.Compatibility() == dependency.Incompatible:
		if present {
			return Problem{Mod: mod, Kind: Incompatible, Dependency: s.Name(), Installed: version}, true
		}
		return Problem{}, false
	case !present:
		if s.Required() {
			return Problem{Mod: mod, Kind: Missing, Dependency: s.String()}, true
		}
		return Problem{}, false
	case version == "":
		return Problem{}, false
	}

	ok, err := s.Allows(version)
	if err != nil || !ok {
		return Problem{Mod: mod, Kind: Unsatisfied, Dependency: s.String(), Installed: version}, true
	}
	return Problem{}, false
}
