package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vianscientific/apicheck/internal/mail"
	"github.com/vianscientific/apicheck/internal/smtpprobe"
)

var errProbeFailed = errors.New("smtp probe failed")

func newDiagnoseSMTPCommand(a *app) *cobra.Command {
	var sendTestTo string

	cmd := &cobra.Command{
		Use:   "diagnose-smtp",
		Short: "Diagnose the SMTP account configured in EMAIL_*",
		Long: `Connects to EMAIL_HOST, upgrades the connection with STARTTLS and
authenticates with EMAIL_USERNAME and EMAIL_PASSWORD. Failures are classified
and explained. No message is sent unless --send-test-to is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email := a.cfg.Email

			result := smtpprobe.New(smtpprobe.Config{
				Host:     email.Host,
				Port:     email.Port,
				Username: email.Username,
				Password: email.Password,
				Timeout:  email.SMTPTimeout,
			}, smtpprobe.WithLogger(a.log)).Run(cmd.Context())

			if err := smtpprobe.WriteReport(a.stdout, result); err != nil {
				return err
			}

			if !result.Authenticated() {
				return fmt.Errorf("%w: %v", errProbeFailed, result.Failure)
			}

			if sendTestTo == "" {
				return nil
			}

			sender := mail.SMTPSender{
				Host:     email.Host,
				Port:     email.Port,
				Username: email.Username,
				Password: email.Password,
				From:     email.From,
				Timeout:  email.SMTPTimeout,
			}

			if err := sender.Send(cmd.Context(), sendTestTo, "apicheck SMTP diagnosis", "This is a test message sent by apicheck diagnose-smtp."); err != nil {
				return fmt.Errorf("sending test message: %w", err)
			}

			fmt.Fprintf(a.stdout, "Test message sent to %s\n", sendTestTo)

			return nil
		},
	}

	cmd.Flags().StringVar(&sendTestTo, "send-test-to", "", "send a test message to the address after a successful probe")

	return cmd
}
