// Package cli contains the commands of the apicheck binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck/internal/config"
)

// errChecksFailed signals a completed run with failed outcomes, it maps to
// exit code 1 without printing an error.
var errChecksFailed = errors.New("checks failed")

type app struct {
	configFile string
	envFile    string
	verbose    bool
	noColor    bool

	cfg *config.Config
	log *logrus.Logger

	stdout io.Writer
}

// NewRootCommand returns the apicheck command with all subcommands.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	cmd := &cobra.Command{
		Use:   "apicheck",
		Short: "Black-box checks of the Vian Scientific API",
		Long: `apicheck runs an ordered suite of checks against a deployed Vian Scientific
backend and reports every passed and failed assertion. It can also diagnose the
SMTP account the backend sends email with.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "optional YAML config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "env file, ignored if missing")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(
		newRunCommand(a),
		newListCommand(a),
		newServeCommand(a),
		newTriggerCommand(a),
		newDiagnoseSMTPCommand(a),
		newShowConfigCommand(a),
	)

	return cmd
}

func (a *app) init(stderr io.Writer) error {
	a.log = logrus.New()
	a.log.SetOutput(stderr)

	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(a.configFile, a.envFile, a.log)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		a.log.Warnf("invalid LOG_LEVEL %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	if a.verbose {
		level = logrus.DebugLevel
	}
	a.log.SetLevel(level)

	return nil
}

// Execute runs the command line and returns the exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand(os.Stdout, os.Stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errChecksFailed):
		return 1
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}
