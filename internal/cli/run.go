package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/metric"
	"github.com/vianscientific/apicheck/internal/output"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		filter          string
		groups          []string
		report          string
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the checks once and print the report",
		Long: `Runs the selected checks in order against API_BASE_URL. Exits with 1 if any
check failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			runner, err := a.newRunner("")
			if err != nil {
				return err
			}

			s, err := a.newSuite()
			if err != nil {
				return err
			}

			run, err := runner.Execute(cmd.Context(), s, a.newSession(), apicheck.RunParams{
				TriggeredBy: "cli",
				TestFilter:  filter,
				Groups:      groups,
			})
			if err != nil {
				return err
			}

			output.WriteRun(a.stdout, run)

			if err := apicheck.WriteReport(a.stdout, run.Summary); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			if report != "" {
				if err := apicheck.WriteJSONReport(report, run); err != nil {
					return fmt.Errorf("writing json report: %w", err)
				}
			}

			if metricsTextfile != "" {
				if err := metric.WriteTextfile(metricsTextfile); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
			}

			if run.Summary.Failed > 0 {
				return errChecksFailed
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only run tests whose name matches the regular expression")
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "only run tests of the given groups")
	cmd.Flags().StringVar(&report, "report", "", "write the run as JSON to the given file")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write prometheus metrics to the given file")

	return cmd
}
