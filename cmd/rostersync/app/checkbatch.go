package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/internal/transport"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// checkBatchCommand looks up the state of a batch job that outlived its poll
// deadline, using the token a timed-out run reported.
func (a *App) checkBatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-batch <kind> <token>",
		Short: "Check the status of a previously submitted batch",
		Long: "Check the status of a batch job whose poll deadline elapsed during a\n" +
			"sync run. Kind is one of: students, staff, classrooms.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.config.Validate(); err != nil {
				return err
			}

			client := platform.New(a.config.Platform.URL,
				&transport.BearerAuth{Token: a.config.Platform.Token})

			message, done, err := client.CheckBatch(cmd.Context(), roster.Kind(args[0]), args[1])
			if err != nil {
				return err
			}
			if done {
				fmt.Fprintln(cmd.OutOrStdout(), "Batch complete:", message)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Batch still processing:", message)
			}
			return nil
		},
	}
}
