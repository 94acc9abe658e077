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
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultModTemplate is the portal's full mod metadata endpoint.
const DefaultModTemplate = "{portal}/api/mods/{mod}/full"

// Template represents a URL template with variable placeholders.
// Supported variables:
//   - {portal} - Portal base URL without trailing slash
//   - {mod} - Mod name, path-escaped
type Template struct {
	pattern string
}

var variablePattern = regexp.MustCompile(`\{(\w+)\}`)

// ParseTemplate parses a URL template pattern. The pattern must reference {mod}.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, fmt.Errorf("template pattern cannot be empty")
	}

	hasMod := false
	for _, match := range variablePattern.FindAllStringSubmatch(pattern, -1) {
		switch match[1] {
		case "mod":
			hasMod = true
		case "portal":
		default:
			return nil, fmt.Errorf("unknown template variable: {%s}", match[1])
		}
	}
	if !hasMod {
		return nil, fmt.Errorf("template %q does not reference {mod}", pattern)
	}

	return &Template{pattern: pattern}, nil
}

// Expand substitutes variables in the template with actual values.
func (t *Template) Expand(portal, mod string) string {
	result := t.pattern
	result = strings.ReplaceAll(result, "{portal}", strings.TrimSuffix(portal, "/"))
	result = strings.ReplaceAll(result, "{mod}", url.PathEscape(mod))
	return result
}
