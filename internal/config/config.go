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

// Package config loads fhctl settings from a JSON file, FHCTL_* environment
// variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/catalog"
	"github.com/factorio-headless/fhctl/download"
	"github.com/factorio-headless/fhctl/reconcile"
	"github.com/factorio-headless/fhctl/resolve"
	"github.com/factorio-headless/fhctl/upgrade"
)

// FileName is the config file name searched for without --config.
const FileName = "fhctl"

// Keys understood in the config file and as FHCTL_* variables
// (dots and dashes become underscores, e.g. FHCTL_MODS_SOURCE_ROOT).
const (
	KeyServerExecutable   = "server.executable"
	KeyServerPackage      = "server.package"
	KeyModsSourceRoot     = "mods.source_root"
	KeyModsDestination    = "mods.destination"
	KeyModsManagedDir     = "mods.managed_dir"
	KeyModsRequested      = "mods.requested"
	KeyModsKeepOptional   = "mods.keep_optional"
	KeyModsDepth          = "mods.depth"
	KeyModsIgnore         = "mods.ignore"
	KeyModsConflictPolicy = "mods.conflict_policy"
	KeyCatalogPortalURL   = "catalog.portal_url"
	KeyCatalogTemplate    = "catalog.template"
	KeyCatalogRateLimit   = "catalog.rate_limit"
	KeyDownloadChunkSize  = "download.chunk_size"
	KeyDownloadConcurrent = "download.concurrency"
	KeyUpdaterURL         = "updater.url"
	KeyUpdaterWorkDir     = "updater.work_dir"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
	KeyMetricsTextfile    = "metrics.textfile"
)

// Config is the typed view of every setting.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Mods     Mods     `mapstructure:"mods"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Download Download `mapstructure:"download"`
	Updater  Updater  `mapstructure:"updater"`
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

// Server locates the game server binary.
type Server struct {
	Executable string `mapstructure:"executable"`
	Package    string `mapstructure:"package"`
}

// Mods configures resolution, download and the merged mods directory.
type Mods struct {
	SourceRoot     string   `mapstructure:"source_root"`
	Destination    string   `mapstructure:"destination"`
	ManagedDir     string   `mapstructure:"managed_dir"`
	Requested      []string `mapstructure:"requested"`
	KeepOptional   bool     `mapstructure:"keep_optional"`
	Depth          int      `mapstructure:"depth"`
	Ignore         []string `mapstructure:"ignore"`
	ConflictPolicy string   `mapstructure:"conflict_policy"`
}

// ManagedPath is the provider directory downloaded mods are written to.
func (m Mods) ManagedPath() string {
	if filepath.IsAbs(m.ManagedDir) {
		return m.ManagedDir
	}
	return filepath.Join(m.SourceRoot, m.ManagedDir)
}

// Catalog configures the mod portal client.
type Catalog struct {
	PortalURL string  `mapstructure:"portal_url"`
	Template  string  `mapstructure:"template"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// Download configures artifact transfers.
type Download struct {
	ChunkSize   int `mapstructure:"chunk_size"`
	Concurrency int `mapstructure:"concurrency"`
}

// Updater configures the server update source.
type Updater struct {
	URL     string `mapstructure:"url"`
	WorkDir string `mapstructure:"work_dir"`
}

// Log configures the logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `mapstructure:"textfile"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Executable: "/opt/factorio/bin/x64/factorio",
			Package:    upgrade.DefaultPackage,
		},
		Mods: Mods{
			SourceRoot:     "/opt/factorio/mods-source",
			Destination:    "/opt/factorio/mods",
			ManagedDir:     "__managed_mods",
			Depth:          resolve.DefaultMaxDepth,
			ConflictPolicy: reconcile.FailOnConflict.String(),
		},
		Catalog: Catalog{
			PortalURL: catalog.DefaultPortalURL,
			Template:  catalog.DefaultModTemplate,
		},
		Download: Download{
			ChunkSize:   download.DefaultChunkSize,
			Concurrency: 1,
		},
		Updater: Updater{
			URL: upgrade.DefaultUpdaterURL,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables are visible to Load.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyServerExecutable, d.Server.Executable)
	v.SetDefault(KeyServerPackage, d.Server.Package)
	v.SetDefault(KeyModsSourceRoot, d.Mods.SourceRoot)
	v.SetDefault(KeyModsDestination, d.Mods.Destination)
	v.SetDefault(KeyModsManagedDir, d.Mods.ManagedDir)
	v.SetDefault(KeyModsRequested, d.Mods.Requested)
	v.SetDefault(KeyModsKeepOptional, d.Mods.KeepOptional)
	v.SetDefault(KeyModsDepth, d.Mods.Depth)
	v.SetDefault(KeyModsIgnore, d.Mods.Ignore)
	v.SetDefault(KeyModsConflictPolicy, d.Mods.ConflictPolicy)
	v.SetDefault(KeyCatalogPortalURL, d.Catalog.PortalURL)
	v.SetDefault(KeyCatalogTemplate, d.Catalog.Template)
	v.SetDefault(KeyCatalogRateLimit, d.Catalog.RateLimit)
	v.SetDefault(KeyDownloadChunkSize, d.Download.ChunkSize)
	v.SetDefault(KeyDownloadConcurrent, d.Download.Concurrency)
	v.SetDefault(KeyUpdaterURL, d.Updater.URL)
	v.SetDefault(KeyUpdaterWorkDir, d.Updater.WorkDir)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
	v.SetDefault(KeyMetricsTextfile, d.Metrics.Textfile)
}

// Init prepares v: defaults, FHCTL_* environment variables and the config
// file. With an empty path, ./fhctl.json and then
// $HOME/.config/fhctl/fhctl.json are tried and a missing file is not an
// error; an explicit path must exist.
func Init(v *viper.Viper, path string) error {
	SetDefaults(v)
	v.SetEnvPrefix("FHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigType("json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}

	for _, candidate := range SearchPaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

// SearchPaths lists the config files tried, in order, without --config.
func SearchPaths() []string {
	paths := []string{FileName + ".json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", FileName, FileName+".json"))
	}
	return paths
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Mods.Depth < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", KeyModsDepth, c.Mods.Depth))
	}
	if _, err := reconcile.ParseConflictPolicy(c.Mods.ConflictPolicy); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyModsConflictPolicy, err))
	}
	if c.Mods.ManagedDir == "" {
		errs = append(errs, fmt.Errorf("%s must be set", KeyModsManagedDir))
	}
	if c.Catalog.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyCatalogRateLimit))
	}
	if _, err := catalog.ParseTemplate(c.Catalog.Template); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyCatalogTemplate, err))
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyDownloadChunkSize, c.Download.ChunkSize))
	}
	if c.Download.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyDownloadConcurrent, c.Download.Concurrency))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("%s must be text, json or logfmt, got %q", KeyLogFormat, c.Log.Format))
	}
	return errors.Join(errs...)
}
