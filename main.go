package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tphakala/parkpulse/cmd"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, "parkpulse@"+version); err != nil {
			logging.Warn("Failed to initialize Sentry", "error", err)
		}
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
