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

package setup

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/config"
)

// Env is what every command needs: settings, a logger and the filesystem.
type Env struct {
	Config *config.Config
	Logger *log.Logger
	FS     fs.FileSystem
}

// Load reads the global viper instance, which the root command has
// initialised and bound flags to, and builds an Env logging to stderr.
func Load(stderr io.Writer) (*Env, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger, err := Logger(stderr, cfg, viper.GetBool("verbose"), viper.GetBool("quiet"))
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Logger: logger, FS: fs.NewOSFileSystem()}, nil
}
