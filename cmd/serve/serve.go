package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/parkpulse/internal/app"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/logging"
)

// Command creates the command that runs the scheduled jobs and the ops server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run catalog sync, sampling and the ops server",
		Long:  "Start the scheduler running catalog sync and queue-time sampling on their intervals, and serve crowd levels over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func run(parent context.Context, settings *conf.Settings) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error("Failed to close application", "error", err)
		}
	}()

	sched, err := a.Scheduler()
	if err != nil {
		return err
	}

	logging.Info("ParkPulse started",
		"catalog_interval", settings.Catalog.Interval,
		"sampler_interval", settings.Sampler.Interval,
		"server_enabled", settings.Server.Enabled,
		"listen", settings.Server.Listen)

	err = sched.Serve(ctx)
	logging.Info("ParkPulse stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Server.Listen, "listen", viper.GetString("server.listen"), "Listen address of the ops server")
	cmd.Flags().BoolVar(&settings.Server.Enabled, "server", viper.GetBool("server.enabled"), "Enable the ops HTTP server")
	cmd.Flags().DurationVar(&settings.Sampler.Interval, "interval", viper.GetDuration("sampler.interval"), "Interval between sampling runs")
	cmd.Flags().DurationVar(&settings.Catalog.Interval, "catalog-interval", viper.GetDuration("catalog.interval"), "Interval between catalog syncs")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
