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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/setup"
	"github.com/factorio-headless/fhctl/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [MOD...]",
	Short: "Compute the install set for the requested mods",
	Long: `Look up the latest release of each requested mod on the mod portal and
expand its dependency declarations. Required dependencies are always kept,
optional ones only with --keep-optional. The base game mod is never listed.

Without arguments the mods.requested list from the config file is used.`,
	Example: `  # One level of dependencies, as the server start-up does
  fhctl mods resolve flib even-distribution

  # Full transitive closure, optional dependencies included, as JSON
  fhctl mods resolve space-exploration --depth 0 --keep-optional --format json`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringP("format", "f", output.FormatText, "Output format (text, json)")
}

func runResolve(cmd *cobra.Command, args []string) error {
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
	mods := requested(args, env.Config)
	if len(mods) == 0 {
		return errors.New("no mods requested: pass mod names or set mods.requested")
	}

	result, err := resolveMods(cmd, env, mods)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.JSON(env.FS, result)
	}
	var lines []string
	for _, mod := range result.Mods() {
		if rel, ok := result.Release(mod); ok {
			lines = append(lines, mod+" "+rel.Version)
		} else {
			lines = append(lines, mod)
		}
	}
	for _, c := range result.Conflicts() {
		lines = append(lines, fmt.Sprintf("! %s is incompatible with %s", c.Mod, c.With))
	}
	return output.Lines(env.FS, lines)
}

func resolveMods(cmd *cobra.Command, env *setup.Env, mods []string) (*resolve.Result, error) {
	client, err := setup.CatalogClient(env.Config, env.Logger)
	if err != nil {
		return nil, err
	}
	result, err := setup.Resolver(env.Config, client, env.Logger).Resolve(cmd.Context(), mods)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve: %w", err)
	}
	return result, nil
}
