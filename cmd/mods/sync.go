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
	"github.com/factorio-headless/fhctl/reconcile"
)

var syncCmd = &cobra.Command{
	Use:   "sync [MOD...]",
	Short: "Resolve, download and merge in one step",
	Long: `Prepare the server mods directory the way server start-up does: resolve
the requested mods, download every mod in the install set into the managed
provider directory, then merge all providers into the destination.`,
	Example: `  fhctl mods sync flib even-distribution --dest /opt/factorio/mods`,
	RunE:    runSync,
}

func init() {
	addCredentialFlags(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	env, err := setup.Load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	mods := requested(args, env.Config)
	if len(mods) == 0 {
		return errors.New("no mods requested: pass mod names or set mods.requested")
	}
	creds, err := credentials(cmd)
	if err != nil {
		return err
	}

	client, err := setup.CatalogClient(env.Config, env.Logger)
	if err != nil {
		return err
	}
	result, err := setup.Resolver(env.Config, client, env.Logger).Resolve(cmd.Context(), mods)
	if err != nil {
		return fmt.Errorf("failed to resolve: %w", err)
	}
	for _, c := range result.Conflicts() {
		env.Logger.Warn("install set contains incompatible mods", "mod", c.Mod, "with", c.With)
	}

	managed := env.Config.Mods.ManagedPath()
	if err := env.FS.MkdirAll(managed, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", managed, err)
	}
	if _, err := setup.Downloader(env.Config, client, env.FS, env.Logger).
		DownloadAll(cmd.Context(), result.Mods(), creds, managed); err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}

	sources, err := reconcile.DiscoverSources(env.FS, env.Config.Mods.SourceRoot)
	if err != nil {
		return err
	}
	report, err := merge(env, sources)
	if err != nil {
		return err
	}
	return output.Write(env.FS, fmt.Sprintf("downloaded %d mods\n%s", len(result.Mods()), summary(report)))
}
