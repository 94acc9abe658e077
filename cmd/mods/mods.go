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

// Package mods provides the mods command group: resolving, downloading,
// merging and checking the server's mods.
package mods

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/internal/config"
)

// Cmd is the mods command group.
var Cmd = &cobra.Command{
	Use:   "mods",
	Short: "Manage server mods",
	Long: `Resolve mod dependencies against the mod portal, download release
archives into the managed provider directory, and merge every provider
below the mods source root into the server's mods directory as symbolic links.`,
}

func init() {
	flags := Cmd.PersistentFlags()
	flags.String("portal", "", "Mod portal URL (default https://mods.factorio.com)")
	flags.Bool("keep-optional", false, "Also keep optional dependencies")
	flags.Int("depth", 0, "Dependency expansion depth, 0 for the full closure (default 1)")
	flags.String("source-root", "", "Mods source root with one directory per provider")
	flags.String("managed-dir", "", "Provider directory for downloaded mods, relative to the source root")
	flags.String("dest", "", "Server mods directory to merge into")
	flags.StringSlice("ignore", nil, "Glob of source files to skip when merging (can be repeated)")
	flags.String("conflict", "", "Collision policy when merging: fail or last-wins")
	flags.Int("chunk-size", 0, "Download buffer size in bytes")
	flags.Int("concurrency", 0, "Parallel downloads")

	_ = viper.BindPFlag(config.KeyCatalogPortalURL, flags.Lookup("portal"))
	_ = viper.BindPFlag(config.KeyModsKeepOptional, flags.Lookup("keep-optional"))
	_ = viper.BindPFlag(config.KeyModsDepth, flags.Lookup("depth"))
	_ = viper.BindPFlag(config.KeyModsSourceRoot, flags.Lookup("source-root"))
	_ = viper.BindPFlag(config.KeyModsManagedDir, flags.Lookup("managed-dir"))
	_ = viper.BindPFlag(config.KeyModsDestination, flags.Lookup("dest"))
	_ = viper.BindPFlag(config.KeyModsIgnore, flags.Lookup("ignore"))
	_ = viper.BindPFlag(config.KeyModsConflictPolicy, flags.Lookup("conflict"))
	_ = viper.BindPFlag(config.KeyDownloadChunkSize, flags.Lookup("chunk-size"))
	_ = viper.BindPFlag(config.KeyDownloadConcurrent, flags.Lookup("concurrency"))

	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(downloadCmd)
	Cmd.AddCommand(mergeCmd)
	Cmd.AddCommand(syncCmd)
	Cmd.AddCommand(checkCmd)
}

// requested returns the mods named on the command line, or the configured
// list when none were.
func requested(args []string, cfg *config.Config) []string {
	if len(args) > 0 {
		return args
	}
	return cfg.Mods.Requested
}
