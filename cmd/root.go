package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/parkpulse/cmd/catalogsync"
	"github.com/tphakala/parkpulse/cmd/config"
	"github.com/tphakala/parkpulse/cmd/crowd"
	"github.com/tphakala/parkpulse/cmd/sample"
	"github.com/tphakala/parkpulse/cmd/serve"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "parkpulse",
		Short:         "ParkPulse ride wait-time telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		logging.Error("Failed to set up flags", "error", err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		catalogsync.Command(settings),
		sample.Command(settings),
		crowd.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings)
	}

	return rootCmd
}

// initialize applies global flags once they have been parsed.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Database.Type, "dbtype", viper.GetString("database.type"), "Database type (sqlite, mysql or postgres)")
	rootCmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "sqlitepath", viper.GetString("database.sqlite.path"), "Path to the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&settings.Cache.Backend, "cache", viper.GetString("cache.backend"), "Cache backend (memory, badger or nats)")
	rootCmd.PersistentFlags().StringVar(&settings.Upstream.BaseURL, "upstream", viper.GetString("upstream.baseurl"), "Base URL of the queue-times feed")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
