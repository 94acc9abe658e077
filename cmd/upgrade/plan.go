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

package upgrade

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/setup"
	"github.com/factorio-headless/fhctl/upgrade"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the upgrade steps from the installed version",
	Example: `  # Ask the installed server for its version
  fhctl upgrade plan --exe /opt/factorio/bin/x64/factorio

  # Plan offline from a saved get-available-versions document
  fhctl upgrade plan --current 1.1.100 --edges-file available-versions.json --format json`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().String("current", "", "Installed version (default: ask the server)")
	planCmd.Flags().String("edges-file", "", "Read the patch table from a file instead of the update server")
	planCmd.Flags().StringP("format", "f", output.FormatText, "Output format (text, json)")
}

type planOutput struct {
	Current string         `json:"current"`
	Target  string         `json:"target"`
	Steps   []upgrade.Edge `json:"steps"`
}

func runPlan(cmd *cobra.Command, args []string) error {
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
	current, _ := cmd.Flags().GetString("current")
	edgesFile, _ := cmd.Flags().GetString("edges-file")

	current, plan, err := planFor(cmd.Context(), env, current, edgesFile)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		if plan == nil {
			plan = []upgrade.Edge{}
		}
		return output.JSON(env.FS, planOutput{Current: current, Target: upgrade.Target(current, plan), Steps: plan})
	}
	return output.Lines(env.FS, describe(current, plan))
}
