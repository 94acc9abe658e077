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
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Upgrade the server to the newest reachable version",
	Long: `Plan from the version the installed server reports, then download and
apply each patch in order. After every step the server must report the
step's target version before the next one starts. Steps already applied are
kept when a later step fails.`,
	Example: `  fhctl upgrade apply --exe /opt/factorio/bin/x64/factorio
  fhctl upgrade apply --dry-run`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().Bool("dry-run", false, "Print the plan without applying it")
}

func runApply(cmd *cobra.Command, args []string) error {
	env, err := setup.Load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	current, plan, err := planFor(cmd.Context(), env, "", "")
	if err != nil {
		return err
	}
	if dryRun || len(plan) == 0 {
		return output.Lines(env.FS, describe(current, plan))
	}

	proc := setup.Server(env.Config, env.Logger)
	updater := setup.Updater(env.Config, env.FS)
	applied, err := setup.Executor(proc, env.FS, env.Logger).Apply(cmd.Context(), plan, updater, proc)
	lines := describe(current, applied)
	if len(applied) == 0 {
		lines = nil
	}
	if err != nil {
		if len(lines) > 0 {
			_ = output.Lines(env.FS, lines)
		}
		return fmt.Errorf("upgrade stopped after %d of %d steps: %w", len(applied), len(plan), err)
	}
	return output.Lines(env.FS, lines)
}
