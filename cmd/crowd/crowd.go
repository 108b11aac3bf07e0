package crowd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/tphakala/parkpulse/internal/app"
	"github.com/tphakala/parkpulse/internal/conf"
)

// Command creates the command computing the crowd level of one park.
func Command(settings *conf.Settings) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "crowd <park-id>",
		Short: "Compute the crowd level of a park",
		Long:  "Compute the current crowd level of a park from its latest samples and print it as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid park id %q", args[0])
			}

			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if timeout <= 0 {
				timeout = settings.Crowd.Timeout
			}
			res := a.Crowd.ComputeWithTimeout(cmd.Context(), uint(id), timeout)

			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Computation timeout, defaults to crowd.timeout")

	return cmd
}
