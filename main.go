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

// Command fhctl prepares a headless game server: it resolves, downloads and
// merges mods, and upgrades the server binary through published patches.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/factorio-headless/fhctl/cmd/mods"
	"github.com/factorio-headless/fhctl/cmd/upgrade"
	"github.com/factorio-headless/fhctl/cmd/version"
	"github.com/factorio-headless/fhctl/internal/config"
	"github.com/factorio-headless/fhctl/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "fhctl",
	Short: "Manage mods and upgrades for a headless game server",
	Long: `fhctl resolves mod dependencies against the mod portal, downloads mod
archives, merges mod providers into the server's mods directory, and applies
incremental server upgrades.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") && viper.GetBool("quiet") {
			return errors.New("--verbose and --quiet are mutually exclusive")
		}
		return config.Init(viper.GetViper(), viper.GetString("config"))
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if path := viper.GetString(config.KeyMetricsTextfile); path != "" {
			if err := metrics.WriteTextfile(path); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}
		return nil
	},
}

func init() {
	// Root flags (persistent across all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./fhctl.json, then ~/.config/fhctl/fhctl.json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Log warnings and errors only")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json, logfmt)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file (default: stdout)")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write Prometheus metrics to this file after the command")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag(config.KeyMetricsTextfile, rootCmd.PersistentFlags().Lookup("metrics-textfile"))

	// Add commands
	rootCmd.AddCommand(mods.Cmd)
	rootCmd.AddCommand(upgrade.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
