package cli

import (
	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck/internal/output"
	"github.com/vianscientific/apicheck/internal/suite"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tests of the suite in execution order",
		RunE: func(_ *cobra.Command, _ []string) error {
			output.WriteSuite(a.stdout, suite.New(suite.Options{Log: a.log}))
			return nil
		},
	}
}
