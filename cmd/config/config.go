package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/parkpulse/internal/conf"
)

// Command creates the command printing or saving the effective configuration.
func Command(settings *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, config file, environment and flags are applied. Credentials are masked unless written to a file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				if err := conf.SaveYAMLConfig(output, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
				return nil
			}
			return conf.WriteYAML(cmd.OutOrStdout(), settings)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the configuration to this file instead of stdout")

	return cmd
}
