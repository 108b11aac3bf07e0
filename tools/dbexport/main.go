// Package main provides a CLI tool copying a ParkPulse SQLite database into
// another store, typically MySQL or PostgreSQL when an installation outgrows
// the embedded database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set via ldflags during build)
var version = "dev"

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbexport",
	Short: "Copy ParkPulse data from SQLite to MySQL or PostgreSQL",
	Long: `A tool for moving a ParkPulse database from SQLite to a server database.

Park groups, parks, theme areas, rides and queue-time samples are copied in
dependency order with their original ids. Rows already present in the target
are skipped, so an interrupted copy can be rerun.`,
	RunE: runExport,
}

var cfg Config

func init() {
	rootCmd.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", "", "Path to source SQLite database file")

	rootCmd.Flags().StringVar(&cfg.TargetType, "target", "", "Target database type (mysql, postgres or sqlite)")
	rootCmd.Flags().StringVar(&cfg.TargetSQLite, "target-sqlite-path", "", "Target SQLite file when --target=sqlite")
	rootCmd.Flags().StringVar(&cfg.Host, "host", "localhost", "Target database host")
	rootCmd.Flags().IntVar(&cfg.Port, "port", 0, "Target database port (default 3306 or 5432)")
	rootCmd.Flags().StringVar(&cfg.User, "user", "parkpulse", "Target database username")
	rootCmd.Flags().StringVar(&cfg.Pass, "pass", "", "Target database password")
	rootCmd.Flags().StringVar(&cfg.Database, "database", "parkpulse", "Target database name")
	rootCmd.Flags().StringVar(&cfg.SSLMode, "sslmode", "disable", "PostgreSQL sslmode")

	rootCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 1000, "Number of records per batch")
	rootCmd.Flags().BoolVar(&cfg.Clean, "clean", false, "Delete target rows before copying")
	rootCmd.Flags().BoolVar(&cfg.SkipVerify, "skip-verify", false, "Skip post-migration verification")
	rootCmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose output")

	rootCmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "Path to config.yaml (for connection fallback)")

	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

func runExport(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		fmt.Printf("dbexport version %s\n", version)
		return nil
	}

	if err := cfg.Load(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		fmt.Fprintf(out, "Source: %s\n", cfg.SQLitePath)
		fmt.Fprintf(out, "Target: %s\n", cfg.SanitizedTarget())
		fmt.Fprintf(out, "Batch size: %d\n", cfg.BatchSize)
		fmt.Fprintf(out, "Clean mode: %v\n", cfg.Clean)
	}

	migrator, err := NewMigrator(&cfg, out)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer migrator.Close()

	stats, err := migrator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	stats.Print(out)

	if !cfg.SkipVerify {
		fmt.Fprintln(out, "\n--- Verification ---")
		verifier := NewVerifier(migrator.source.DB, migrator.target.DB, out)
		if err := verifier.Verify(cmd.Context()); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintln(out, "Verification passed!")
	}

	return nil
}
