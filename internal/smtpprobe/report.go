package smtpprobe

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// appPasswordLength is the length of a Gmail App Password without spaces.
const appPasswordLength = 16

// Hints returns remediation advice for a failed probe.
func Hints(r Result) []string {
	if r.Failure == nil {
		return nil
	}

	text := strings.ToLower(r.Failure.Err.Error())
	hints := []string{}

	switch r.Failure.Kind {
	case KindAuth:
		if authCode.MatchString(text) || strings.Contains(text, "badcredentials") {
			hints = append(hints,
				"The server rejects the credentials. Gmail requires an App Password if 2-step verification is enabled.",
				"Generate one under Google Account > Security > 2-Step Verification > App passwords and set it as EMAIL_PASSWORD.",
				fmt.Sprintf("App Passwords are %d characters without spaces.", appPasswordLength),
				fmt.Sprintf("Current password: %d characters, %s.", len(r.Config.Password), passwordFormat(r.Config.Password)),
			)
		} else {
			hints = append(hints, "Check EMAIL_USERNAME and EMAIL_PASSWORD.")
		}
	case KindProtocol:
		if protocolCode.MatchString(text) {
			hints = append(hints, "The server asks for the password but the authentication sequence fails. Check the AUTH mechanisms the server offers.")
		} else {
			hints = append(hints, "The server does not support the expected sequence (STARTTLS, AUTH PLAIN or LOGIN). Check EMAIL_PORT, 587 expects STARTTLS.")
		}
	case KindNetwork:
		hints = append(hints, "Check EMAIL_HOST, EMAIL_PORT and outbound firewall rules.")
	}

	return hints
}

func passwordFormat(password string) string {
	if strings.Contains(password, " ") {
		return "contains spaces, remove them"
	}

	if len(password) < appPasswordLength {
		return "looks like regular password"
	}

	return "could be App Password"
}

// MaskPassword replaces each character of password with `*`.
func MaskPassword(password string) string {
	if password == "" {
		return "NOT SET"
	}

	return strings.Repeat("*", len(password))
}

// WriteReport writes a human readable report of a probe.
func WriteReport(w io.Writer, r Result) error {
	b := strings.Builder{}

	b.WriteString("EMAIL SERVICE DIAGNOSIS\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("Configuration:\n")
	fmt.Fprintf(&b, "  Host: %s\n", r.Config.Host)
	fmt.Fprintf(&b, "  Port: %d\n", r.Config.Port)
	fmt.Fprintf(&b, "  Username: %s\n", r.Config.Username)
	fmt.Fprintf(&b, "  Password: %s\n", MaskPassword(r.Config.Password))
	fmt.Fprintf(&b, "  Password Length: %d\n\n", len(r.Config.Password))

	for _, s := range r.Steps {
		detail := ""
		if s.Detail != "" {
			detail = " (" + s.Detail + ")"
		}
		fmt.Fprintf(&b, "  [ok]     %-9s -> %s%s in %s\n", s.Stage, s.State, detail, s.Duration.Round(time.Millisecond))
	}

	if r.Failure != nil {
		fmt.Fprintf(&b, "  [failed] %-9s -> %s: %v\n", r.Failure.Stage, r.Failure.Kind, r.Failure.Err)
	}

	if hints := Hints(r); len(hints) > 0 {
		b.WriteString("\nDiagnosis:\n")
		for _, h := range hints {
			b.WriteString("  - " + h + "\n")
		}
	}

	b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	if r.Authenticated() {
		b.WriteString("SMTP authentication: WORKING\n")
	} else {
		fmt.Fprintf(&b, "SMTP probe: FAILED at %s\n", r.Failure.Stage)
	}

	_, err := io.WriteString(w, b.String())

	return err
}
