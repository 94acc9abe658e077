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

package mods

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/setup"
	"github.com/factorio-headless/fhctl/modinfo"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check installed mods for missing or incompatible dependencies",
	Long: `Read the info.json of every mod in a mods directory (loose directories
and .zip archives) and report required dependencies that are not installed,
installed mods that another mod declares incompatible, and versions that do
not satisfy a declared constraint. Exits non-zero when problems are found.`,
	Example: `  fhctl mods check --dir /opt/factorio/mods --base-version 1.1.104`,
	RunE:    runCheck,
}

func init() {
	checkCmd.Flags().String("dir", "", "Mods directory to check (default: the merge destination)")
	checkCmd.Flags().String("base-version", "", "Game version for constraints on base (default: not checked)")
	checkCmd.Flags().StringP("format", "f", output.FormatText, "Output format (text, json)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if err := output.CheckFormat(format); err != nil {
		return err
	}
	env, err := setup.Load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = env.Config.Mods.Destination
	}
	baseVersion, _ := cmd.Flags().GetString("base-version")

	mods, err := modinfo.Scan(env.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	problems, err := modinfo.Check(mods, baseVersion)
	if err != nil {
		return err
	}
	env.Logger.Debug("checked mods", "dir", dir, "mods", len(mods), "problems", len(problems))

	if format == output.FormatJSON {
		if problems == nil {
			problems = []modinfo.Problem{}
		}
		if err := output.JSON(env.FS, map[string]any{"mods": len(mods), "problems": problems}); err != nil {
			return err
		}
	} else {
		lines := []string{fmt.Sprintf("%d mods in %s", len(mods), dir)}
		for _, p := range problems {
			lines = append(lines, p.String())
		}
		if err := output.Lines(env.FS, lines); err != nil {
			return err
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems found", len(problems))
	}
	return nil
}
