// Package cmd implements the CLI commands for tesla-tracker.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tesla-tracker",
	Short: "Track Tesla orders and inventory via Telegram",
	Long: "A Telegram bot that polls the Tesla owner API for order status " +
		"changes (delivery window, VIN assignment) and watches the public " +
		"inventory API for vehicles matching subscriber criteria.",
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "config.yaml", "config file path")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	viper.SetEnvPrefix("TESLA_TRACKER")
	viper.AutomaticEnv()
}

// configPath resolves the config file path from the flag or the
// TESLA_TRACKER_CONFIG environment variable.
func configPath() string {
	return viper.GetString("config")
}

// Root returns the root command, used by the docs generator.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
