package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck/client"
	"github.com/vianscientific/apicheck/internal/output"
)

func newTriggerCommand(a *app) *cobra.Command {
	var (
		addr     string
		filter   string
		groups   []string
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a run on a monitor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client.New(addr, &http.Client{Timeout: 30 * time.Second})

			run, err := c.CreateRun(cmd.Context(), filter, groups)
			if err != nil {
				return fmt.Errorf("creating run: %w", err)
			}

			fmt.Fprintf(a.stdout, "run %d %s\n", run.ID, run.Result)

			if !wait {
				return nil
			}

			id := run.ID

			run, err = c.WaitForRun(cmd.Context(), id, interval)
			if err != nil {
				return fmt.Errorf("waiting for run %d: %w", id, err)
			}

			output.WriteRun(a.stdout, run)

			if run.Summary.Failed > 0 {
				return errChecksFailed
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:1337", "address of the monitor")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only run tests whose name matches the regular expression")
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "only run tests of the given groups")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the run to finish and print the result")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval while waiting")

	return cmd
}
