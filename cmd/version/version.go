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

// Package version implements fhctl version.
package version

import (
	"github.com/spf13/cobra"

	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/version"
)

// Cmd is the version command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the fhctl version with its commit, or the full build
information with --format json.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", output.FormatText, "Output format (text, json)")
	Cmd.Flags().Bool("short", false, "Print only the version number")
}

func run(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	short, _ := cmd.Flags().GetBool("short")
	if err := output.CheckFormat(format); err != nil {
		return err
	}

	osfs := fs.NewOSFileSystem()
	info := version.Get()
	switch {
	case short:
		return output.Write(osfs, info.Version)
	case format == output.FormatJSON:
		return output.JSON(osfs, info)
	default:
		return output.Write(osfs, info.String())
	}
}
