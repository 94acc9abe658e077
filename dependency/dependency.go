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

// Package dependency parses the dependency declarations found in a mod's
// info.json, such as "? some-mod >= 1.2.0".
package dependency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrMalformedDependency is returned when a declaration cannot be parsed.
var ErrMalformedDependency = errors.New("malformed dependency")

// Compatibility describes how a declared mod relates to the declaring mod.
type Compatibility int

const (
	// RequiredOrdered is the implicit kind: the mod must be present and
	// loads before the declaring mod.
	RequiredOrdered Compatibility = iota
	// RequiredUnordered ("~") must be present but does not affect load order.
	RequiredUnordered
	// OptionalVisible ("?") may be present.
	OptionalVisible
	// OptionalHidden ("(?)") may be present and is hidden in the game UI.
	OptionalHidden
	// Incompatible ("!") must not be present.
	Incompatible
)

var operators = map[string]Compatibility{
	"~":   RequiredUnordered,
	"?":   OptionalVisible,
	"(?)": OptionalHidden,
	"!":   Incompatible,
}

// Operator returns the prefix that declares c, or "" for RequiredOrdered.
func (c Compatibility) Operator() string {
	switch c {
	case RequiredUnordered:
		return "~"
	case OptionalVisible:
		return "?"
	case OptionalHidden:
		return "(?)"
	case Incompatible:
		return "!"
	default:
		return ""
	}
}

func (c Compatibility) String() string {
	switch c {
	case RequiredOrdered:
		return "required"
	case RequiredUnordered:
		return "required-unordered"
	case OptionalVisible:
		return "optional"
	case OptionalHidden:
		return "optional-hidden"
	case Incompatible:
		return "incompatible"
	default:
		return fmt.Sprintf("Compatibility(%d)", int(c))
	}
}

// Constraint is a single comparison against a version, e.g. ">= 1.1.0".
type Constraint struct {
	Op      string
	Version string
}

func (c Constraint) String() string {
	return c.Op + " " + c.Version
}

// Check reports whether version satisfies the constraint. Versions are
// compared numerically, so "1.10" is greater than "1.9" and "1.0" equals "1.0.0".
func (c Constraint) Check(version string) (bool, error) {
	want, err := semver.NewVersion(c.Version)
	if err != nil {
		return false, fmt.Errorf("constraint %q: %w", c, err)
	}
	got, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("version %q: %w", version, err)
	}
	cmp := got.Compare(want)
	switch c.Op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case "=":
		return cmp == 0, nil
	case ">=":
		return cmp >= 0, nil
	case ">":
		return cmp > 0, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %q", ErrMalformedDependency, c.Op)
}

var comparisons = map[string]bool{
	"<":  true,
	"<=": true,
	"=":  true,
	">=": true,
	">":  true,
}

// Spec is one parsed dependency declaration. The zero value is not useful;
// obtain a Spec from Parse.
type Spec struct {
	name          string
	compatibility Compatibility
	constraint    Constraint
	hasConstraint bool
}

// Parse parses a declaration of the form "[op] name [cmpop version]".
// Tokens are separated by any run of whitespace.
func Parse(declaration string) (Spec, error) {
	tokens := strings.Fields(declaration)

	var spec Spec
	switch len(tokens) {
	case 1:
		spec.name = tokens[0]
	case 2:
		compat, err := parseOperator(declaration, tokens[0])
		if err != nil {
			return Spec{}, err
		}
		spec.compatibility = compat
		spec.name = tokens[1]
	case 3:
		// Comparisons are checked here rather than left for Allows, so a
		// typo such as "=>" fails at parse time.
		spec.name = tokens[0]
		if err := spec.setConstraint(declaration, tokens[1], tokens[2]); err != nil {
			return Spec{}, err
		}
	case 4:
		compat, err := parseOperator(declaration, tokens[0])
		if err != nil {
			return Spec{}, err
		}
		spec.compatibility = compat
		spec.name = tokens[1]
		if err := spec.setConstraint(declaration, tokens[2], tokens[3]); err != nil {
			return Spec{}, err
		}
	default:
		return Spec{}, fmt.Errorf("%w: %q has %d tokens", ErrMalformedDependency, declaration, len(tokens))
	}
	return spec, nil
}

// MustParse is like Parse but panics on error.
func MustParse(declaration string) Spec {
	spec, err := Parse(declaration)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseOperator(declaration, op string) (Compatibility, error) {
	compat, ok := operators[op]
	if !ok {
		return 0, fmt.Errorf("%w: %q: unknown operator %q", ErrMalformedDependency, declaration, op)
	}
	return compat, nil
}

func (s *Spec) setConstraint(declaration, op, version string) error {
	if !comparisons[op] {
		return fmt.Errorf("%w: %q: unknown comparison %q", ErrMalformedDependency, declaration, op)
	}
	s.constraint = Constraint{Op: op, Version: version}
	s.hasConstraint = true
	return nil
}

// Name returns the declared mod name.
func (s Spec) Name() string { return s.name }

// Compatibility returns the declaration kind.
func (s Spec) Compatibility() Compatibility { return s.compatibility }

// Required reports whether the mod must be installed.
func (s Spec) Required() bool {
	return s.compatibility == RequiredOrdered || s.compatibility == RequiredUnordered
}

// Compatible reports whether the mod may be installed alongside the declarer.
func (s Spec) Compatible() bool {
	return s.compatibility != Incompatible
}

// Constraint returns the version constraint, if one was declared.
func (s Spec) Constraint() (Constraint, bool) {
	return s.constraint, s.hasConstraint
}

// Allows reports whether version satisfies the declared constraint.
// A spec without a constraint allows every version.
func (s Spec) Allows(version string) (bool, error) {
	if !s.hasConstraint {
		return true, nil
	}
	return s.constraint.Check(version)
}

// String renders the declaration in canonical single-space form.
func (s Spec) String() string {
	var b strings.Builder
	if op := s.compatibility.Operator(); op != "" {
		b.WriteString(op)
		b.WriteByte(' ')
	}
	b.WriteString(s.name)
	if s.hasConstraint {
		b.WriteByte(' ')
		b.WriteString(s.constraint.String())
	}
	return b.String()
}
