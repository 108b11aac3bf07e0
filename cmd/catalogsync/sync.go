package catalogsync

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/parkpulse/internal/app"
	"github.com/tphakala/parkpulse/internal/conf"
)

// Command creates the one-shot catalog sync command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the park catalog once",
		Long:  "Fetch the park catalog from the feed and upsert park groups and parks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			groups, parks, err := a.Synchronizer.SyncCatalog(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog synchronized: %d groups, %d parks written\n", groups, parks)
			return nil
		},
	}
}
