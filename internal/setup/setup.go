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

// Package setup builds fhctl components from a loaded configuration.
package setup

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/factorio-headless/fhctl/catalog"
	"github.com/factorio-headless/fhctl/download"
	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/config"
	"github.com/factorio-headless/fhctl/internal/logging"
	"github.com/factorio-headless/fhctl/reconcile"
	"github.com/factorio-headless/fhctl/resolve"
	"github.com/factorio-headless/fhctl/server"
	"github.com/factorio-headless/fhctl/upgrade"
)

// Logger builds the command logger. verbose and quiet override the
// configured level.
func Logger(w io.Writer, cfg *config.Config, verbose, quiet bool) (*log.Logger, error) {
	level := cfg.Log.Level
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "warn"
	}
	return logging.New(w, logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Prefix: "fhctl",
	})
}

// CatalogClient builds a rate-limited portal client.
func CatalogClient(cfg *config.Config, logger logging.Logger) (*catalog.Client, error) {
	fetcher := catalog.NewLimitedFetcher(catalog.NewHTTPFetcher(), cfg.Catalog.RateLimit)
	client := catalog.NewClientWithURL(fetcher, cfg.Catalog.PortalURL).WithLogger(logger)
	if cfg.Catalog.Template != "" && cfg.Catalog.Template != catalog.DefaultModTemplate {
		var err error
		client, err = client.WithTemplate(cfg.Catalog.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog template: %w", err)
		}
	}
	return client, nil
}

// Resolver builds a dependency resolver over source.
func Resolver(cfg *config.Config, source catalog.ReleaseSource, logger logging.Logger) *resolve.Resolver {
	return resolve.New(source).
		WithLogger(logger).
		WithKeepOptional(cfg.Mods.KeepOptional).
		WithMaxDepth(cfg.Mods.Depth)
}

// Downloader builds an artifact downloader.
func Downloader(cfg *config.Config, cat download.Catalog, fsys fs.FileSystem, logger logging.Logger) *download.Downloader {
	return download.New(cat,
		download.WithFileSystem(fsys),
		download.WithChunkSize(cfg.Download.ChunkSize),
		download.WithConcurrency(cfg.Download.Concurrency),
		download.WithLogger(logger),
	)
}

// MergeOptions converts the mods settings into reconcile options.
func MergeOptions(cfg *config.Config, fsys fs.FileSystem, logger logging.Logger) ([]reconcile.Option, error) {
	policy, err := reconcile.ParseConflictPolicy(cfg.Mods.ConflictPolicy)
	if err != nil {
		return nil, err
	}
	return []reconcile.Option{
		reconcile.WithFileSystem(fsys),
		reconcile.WithPolicy(policy),
		reconcile.WithIgnore(cfg.Mods.Ignore...),
		reconcile.WithLogger(logger),
	}, nil
}

// Server wraps the configured server executable.
func Server(cfg *config.Config, logger logging.Logger) *server.Process {
	return server.New(cfg.Server.Executable).WithLogger(logger)
}

// Updater builds the update server client.
func Updater(cfg *config.Config, fsys fs.FileSystem) *upgrade.UpdaterClient {
	opts := []upgrade.ClientOption{
		upgrade.WithBaseURL(cfg.Updater.URL),
		upgrade.WithPackage(cfg.Server.Package),
		upgrade.WithFileSystem(fsys),
	}
	if cfg.Updater.WorkDir != "" {
		opts = append(opts, upgrade.WithWorkDir(cfg.Updater.WorkDir))
	}
	return upgrade.NewUpdaterClient(opts...)
}

// Executor builds an upgrade executor that verifies each step against proc.
func Executor(proc *server.Process, fsys fs.FileSystem, logger logging.Logger) *upgrade.Executor {
	return upgrade.NewExecutor(
		upgrade.WithVerifier(proc),
		upgrade.WithExecutorFileSystem(fsys),
		upgrade.WithExecutorLogger(logger),
	)
}
