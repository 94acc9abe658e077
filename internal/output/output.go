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

// Package output writes command results to stdout or to the --output file.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/fs"
)

// Formats accepted by commands with a --format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// CheckFormat rejects formats other than text and json.
func CheckFormat(format string) error {
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return nil
}

// Write prints s to stdout, or writes it to the file named by viper's
// "output" key when set. A trailing newline is added if missing.
func Write(osfs fs.FileSystem, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(s), 0644)
	}
	fmt.Print(s)
	return nil
}

// JSON writes v as indented JSON.
func JSON(osfs fs.FileSystem, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return Write(osfs, string(data))
}

// Lines writes one line per element.
func Lines(osfs fs.FileSystem, lines []string) error {
	return Write(osfs, strings.Join(lines, "\n"))
}
