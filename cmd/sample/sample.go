package sample

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/parkpulse/internal/app"
	"github.com/tphakala/parkpulse/internal/conf"
)

// Command creates the one-shot sampling command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample queue times for every park once",
		Long:  "Fetch current queue times for all parks in bounded batches and record new samples.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Sampler.SampleAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parks sampled:      %d\n", res.ParksSampled)
			fmt.Fprintf(out, "Parks failed:       %d\n", res.ParksFailed)
			fmt.Fprintf(out, "New samples:        %d\n", res.NewSamples)
			fmt.Fprintf(out, "Skipped duplicates: %d\n", res.SkippedDuplicates)
			fmt.Fprintf(out, "Rides deactivated:  %d\n", res.RidesDeactivated)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %v\n", e)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&settings.Sampler.BatchSize, "batch", viper.GetInt("sampler.batchsize"),
		fmt.Sprintf("Parks fetched concurrently (%d-%d)", conf.MinSamplerBatchSize, conf.MaxSamplerBatchSize))
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}

	return cmd
}
