package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		host      string
		port      int
		schedules []string
		publicURL string
		queueSize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checks on a schedule and on demand via HTTP",
		Long: `Starts the monitor: runs are triggered by the given cron schedules or via
POST /runs and executed one at a time. Results are available via GET /runs/:id
and GET /runs/latest, metrics via GET /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			if queueSize < 1 {
				return fmt.Errorf("invalid queue size %d, at least one run must fit", queueSize)
			}

			if publicURL == "" {
				publicURL = fmt.Sprintf("http://%s:%d", host, port)
			}

			runner, err := a.newRunner(publicURL)
			if err != nil {
				return err
			}

			s, err := a.newSuite()
			if err != nil {
				return err
			}

			opts := []apicheck.ServerOption{
				apicheck.WithHost(host),
				apicheck.WithPort(port),
				apicheck.WithQueueSize(queueSize),
				apicheck.WithServerLogger(a.log),
			}

			for _, schedule := range schedules {
				if err := apicheck.ValidateSchedule(schedule); err != nil {
					return fmt.Errorf("invalid schedule %q: %w", schedule, err)
				}

				opts = append(opts, apicheck.WithScheduledRun(apicheck.ScheduledRun{
					Schedule: schedule,
					Params:   apicheck.RunParams{TriggeredBy: "scheduled"},
				}))
			}

			server, err := apicheck.NewServer(runner, s, a.newSession, opts...)
			if err != nil {
				return err
			}

			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "address the monitor listens on")
	cmd.Flags().IntVarP(&port, "port", "p", 1337, "port the monitor listens on")
	cmd.Flags().StringSliceVar(&schedules, "schedule", nil, "cron schedule of runs, e.g. `@every 15m`")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "url of the monitor used in notifications")
	cmd.Flags().IntVar(&queueSize, "queue-size", apicheck.DefaultQueueSize, "number of runs that can wait for execution")

	return cmd
}
