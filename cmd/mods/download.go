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

	"github.com/factorio-headless/fhctl/download"
	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/setup"
)

var downloadCmd = &cobra.Command{
	Use:   "download [MOD...]",
	Short: "Download the latest release of mods",
	Long: `Download the latest release archive of each named mod into the managed
provider directory. Dependencies are not expanded; use "mods sync" for that.

Credentials come from --username/--token or the FHCTL_USERNAME and
FHCTL_TOKEN environment variables. They are never written to disk.`,
	Example: `  FHCTL_USERNAME=me FHCTL_TOKEN=... fhctl mods download flib`,
	RunE:    runDownload,
}

func init() {
	addCredentialFlags(downloadCmd)
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "Mod portal username (env FHCTL_USERNAME)")
	cmd.Flags().String("token", "", "Mod portal token (env FHCTL_TOKEN)")
}

func credentials(cmd *cobra.Command) (download.Credentials, error) {
	username, err := cmd.Flags().GetString("username")
	if err != nil {
		return download.Credentials{}, err
	}
	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return download.Credentials{}, err
	}
	fromEnv, err := download.CredentialsFromEnv()
	if err != nil {
		return download.Credentials{}, err
	}
	creds := download.Credentials{Username: username, Token: token}.Merge(fromEnv)
	if err := creds.Validate(); err != nil {
		return download.Credentials{}, fmt.Errorf("mod portal credentials: %w", err)
	}
	return creds, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
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
	paths, err := setup.Downloader(env.Config, client, env.FS, env.Logger).
		DownloadAll(cmd.Context(), mods, creds, env.Config.Mods.ManagedPath())
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	return output.Lines(env.FS, paths)
}
