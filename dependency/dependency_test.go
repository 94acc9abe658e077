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

package dependency

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		name       string
		compat     Compatibility
		required   bool
		compatible bool
		constraint *Constraint
	}{
		{"MOD", "MOD", RequiredOrdered, true, true, nil},
		{"~ MOD", "MOD", RequiredUnordered, true, true, nil},
		{"? MOD", "MOD", OptionalVisible, false, true, nil},
		{"(?) MOD", "MOD", OptionalHidden, false, true, nil},
		{"! MOD", "MOD", Incompatible, false, false, nil},
		{"MOD < 0.0.1", "MOD", RequiredOrdered, true, true, &Constraint{"<", "0.0.1"}},
		{"MOD >= 1.1.0", "MOD", RequiredOrdered, true, true, &Constraint{">=", "1.1.0"}},
		{"! MOD > 0.0.1", "MOD", Incompatible, false, false, &Constraint{">", "0.0.1"}},
		{"? MOD = 2.0.3", "MOD", OptionalVisible, false, true, &Constraint{"=", "2.0.3"}},
		{"~ MOD <= 1.0", "MOD", RequiredUnordered, true, true, &Constraint{"<=", "1.0"}},
		{"  base\t>=  1.1.0\n", "base", RequiredOrdered, true, true, &Constraint{">=", "1.1.0"}},
		{"\t?\n\tflib  ", "flib", OptionalVisible, false, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got.Name() != tt.name {
				t.Errorf("Parse(%q).Name() = %q, want %q", tt.input, got.Name(), tt.name)
			}
			if got.Compatibility() != tt.compat {
				t.Errorf("Parse(%q).Compatibility() = %v, want %v", tt.input, got.Compatibility(), tt.compat)
			}
			if got.Required() != tt.required {
				t.Errorf("Parse(%q).Required() = %v, want %v", tt.input, got.Required(), tt.required)
			}
			if got.Compatible() != tt.compatible {
				t.Errorf("Parse(%q).Compatible() = %v, want %v", tt.input, got.Compatible(), tt.compatible)
			}
			c, ok := got.Constraint()
			if tt.constraint == nil {
				if ok {
					t.Errorf("Parse(%q).Constraint() = %v, want none", tt.input, c)
				}
				return
			}
			if !ok || c != *tt.constraint {
				t.Errorf("Parse(%q).Constraint() = %v, %v, want %v", tt.input, c, ok, *tt.constraint)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"+ MOD",
		"?? MOD",
		"MOD ~ 1.0.0",
		"MOD => 1.0.0",
		"# MOD >= 1.0.0",
		"? MOD == 1.0.0",
		"? MOD >= 1.0.0 extra",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !errors.Is(err, ErrMalformedDependency) {
				t.Errorf("Parse(%q) error = %v, want ErrMalformedDependency", input, err)
			}
		})
	}
}

func TestSpecString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MOD", "MOD"},
		{"  ?   MOD  ", "? MOD"},
		{"(?) MOD >=  0.3.2", "(?) MOD >= 0.3.2"},
		{"base >= 1.1", "base >= 1.1"},
	}

	for _, tt := range tests {
		if got := MustParse(tt.input).String(); got != tt.want {
			t.Errorf("MustParse(%q).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSpecAllows(t *testing.T) {
	tests := []struct {
		decl    string
		version string
		want    bool
	}{
		{"MOD", "0.0.1", true},
		{"MOD < 0.0.1", "0.0.1", false},
		{"MOD <= 0.0.1", "0.0.1", true},
		{"MOD >= 1.9.0", "1.10.0", true},
		{"MOD > 1.10", "1.9.9", false},
		{"MOD = 1.0", "1.0.0", true},
		{"MOD = 1.0.1", "1.0.0", false},
	}

	for _, tt := range tests {
		got, err := MustParse(tt.decl).Allows(tt.version)
		if err != nil {
			t.Fatalf("MustParse(%q).Allows(%q) error = %v", tt.decl, tt.version, err)
		}
		if got != tt.want {
			t.Errorf("MustParse(%q).Allows(%q) = %v, want %v", tt.decl, tt.version, got, tt.want)
		}
	}
}

func TestSpecAllowsInvalidVersion(t *testing.T) {
	if _, err := MustParse("MOD >= 1.0.0").Allows("latest"); err == nil {
		t.Error("Allows(\"latest\") expected error")
	}
	if _, err := MustParse("MOD >= next").Allows("1.0.0"); err == nil {
		t.Error("Allows with invalid constraint version expected error")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"a b c d e\") did not panic")
		}
	}()
	MustParse("a b c d e")
}
