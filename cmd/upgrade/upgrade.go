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

// Package upgrade provides the upgrade command group, which moves the
// server binary to the newest version reachable through published patches.
package upgrade

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/internal/config"
	"github.com/factorio-headless/fhctl/internal/setup"
	"github.com/factorio-headless/fhctl/upgrade"
)

// Cmd is the upgrade command group.
var Cmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Plan and apply incremental server upgrades",
	Long: `Read the update server's table of published patches, plan a path from
the installed version by always taking the largest single step, and apply
the patches one at a time with the server's --apply-update option.`,
}

func init() {
	flags := Cmd.PersistentFlags()
	flags.String("exe", "", "Server executable")
	flags.String("package", "", "Update package (default "+upgrade.DefaultPackage+")")
	flags.String("updater-url", "", "Update server URL (default "+upgrade.DefaultUpdaterURL+")")
	flags.String("work-dir", "", "Directory patches are staged in (default: a temporary directory)")

	_ = viper.BindPFlag(config.KeyServerExecutable, flags.Lookup("exe"))
	_ = viper.BindPFlag(config.KeyServerPackage, flags.Lookup("package"))
	_ = viper.BindPFlag(config.KeyUpdaterURL, flags.Lookup("updater-url"))
	_ = viper.BindPFlag(config.KeyUpdaterWorkDir, flags.Lookup("work-dir"))

	Cmd.AddCommand(planCmd)
	Cmd.AddCommand(applyCmd)
}

// planFor computes the plan from current, asking the server for its version
// when current is empty and reading edges from edgesFile when set.
func planFor(ctx context.Context, env *setup.Env, current, edgesFile string) (string, []upgrade.Edge, error) {
	if current == "" {
		v, err := setup.Server(env.Config, env.Logger).Version(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("reading server version: %w", err)
		}
		current = v
	}

	var edges []upgrade.Edge
	if edgesFile != "" {
		data, err := env.FS.ReadFile(edgesFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read edges: %w", err)
		}
		edges, err = upgrade.DecodeEdges(data, env.Config.Server.Package)
		if err != nil {
			return "", nil, err
		}
	} else {
		var err error
		edges, err = setup.Updater(env.Config, env.FS).AvailableEdges(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read available versions: %w", err)
		}
	}

	plan, err := upgrade.Plan(current, edges)
	if err != nil {
		return "", nil, err
	}
	env.Logger.Debug("planned upgrade", "current", current, "steps", len(plan), "edges", len(edges))
	return current, plan, nil
}

func describe(current string, plan []upgrade.Edge) []string {
	if len(plan) == 0 {
		return []string{"already at the newest reachable version " + current}
	}
	lines := make([]string, 0, len(plan)+1)
	for _, step := range plan {
		lines = append(lines, step.String())
	}
	return append(lines, fmt.Sprintf("%d steps: %s -> %s", len(plan), current, upgrade.Target(current, plan)))
}
