package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Display the current configuration",
		Long:  `Shows the configuration loaded from the config file, the env file and environment variables. Secrets are masked.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintln(a.stdout, a.cfg.String())
			return nil
		},
	}
}
