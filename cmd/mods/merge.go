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

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/factorio-headless/fhctl/internal/output"
	"github.com/factorio-headless/fhctl/internal/setup"
	"github.com/factorio-headless/fhctl/reconcile"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Mirror every mod provider into the server mods directory",
	Long: `Rebuild the server mods directory as a tree of symbolic links pointing
into the provider directories below the mods source root. Anything else in
the destination is removed. Two providers offering the same path is an error
unless --conflict last-wins is given.`,
	Example: `  # Every provider below the configured source root
  fhctl mods merge --dest /opt/factorio/mods

  # Explicit providers; globs are expanded
  fhctl mods merge --source '/srv/mods/*' --ignore '**/*.tmp'`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringArray("source", nil, "Provider directory or glob (can be repeated; default: every directory below the source root)")
}

func runMerge(cmd *cobra.Command, args []string) error {
	env, err := setup.Load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	patterns, err := cmd.Flags().GetStringArray("source")
	if err != nil {
		return err
	}
	sources, err := mergeSources(env, patterns)
	if err != nil {
		return err
	}

	report, err := merge(env, sources)
	if err != nil {
		return err
	}
	return output.Write(env.FS, summary(report))
}

// mergeSources expands --source globs, or discovers the providers below the
// configured source root.
func mergeSources(env *setup.Env, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return reconcile.DiscoverSources(env.FS, env.Config.Mods.SourceRoot)
	}
	var sources []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", pattern, err)
		}
		var dirs int
		for _, m := range matches {
			if info, err := env.FS.Stat(m); err == nil && info.IsDir() {
				sources = append(sources, m)
				dirs++
			}
		}
		if dirs == 0 {
			return nil, fmt.Errorf("source %q matches no directory", pattern)
		}
	}
	return sources, nil
}

func merge(env *setup.Env, sources []string) (*reconcile.Report, error) {
	opts, err := setup.MergeOptions(env.Config, env.FS, env.Logger)
	if err != nil {
		return nil, err
	}
	report, err := reconcile.Merge(sources, env.Config.Mods.Destination, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge: %w", err)
	}
	return report, nil
}

func summary(r *reconcile.Report) string {
	s := fmt.Sprintf("linked %d files from %d sources into %s", r.Links, len(r.Sources), r.Destination)
	if r.Ignored > 0 {
		s += fmt.Sprintf(" (%d ignored)", r.Ignored)
	}
	for _, c := range r.Collisions {
		s += fmt.Sprintf("\ncollision: %s provided by %d sources, used %s", c.Path, len(c.Sources), c.Sources[len(c.Sources)-1])
	}
	return s
}
