package suite

import (
	"net/http"
	"strings"
	"time"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/mail"
	"github.com/vianscientific/apicheck/internal/model"
	"golang.org/x/exp/slices"
)

const (
	smtpSubmissionPort = 587

	welcomePassword = "WelcomeTest@123"
	expiredCode     = "123456"

	// deliverySlack widens the observation window for clock skew between
	// this process and the backend.
	deliverySlack = 5 * time.Second
)

// EmailConfiguration checks the email settings the backend is deployed with.
func (c *Checks) EmailConfiguration(t apicheck.TB, _ *apicheck.Session) {
	const check = "Email configuration check"

	missing := []string{}
	for key, value := range map[string]string{
		"EMAIL_HOST":     c.email.Host,
		"EMAIL_USERNAME": c.email.Username,
		"EMAIL_PASSWORD": c.email.Password,
		"EMAIL_FROM":     c.email.From,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if c.email.Port == 0 {
		missing = append(missing, "EMAIL_PORT")
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		t.Check(check, "missing: %s", strings.Join(missing, ", "))
	} else {
		t.Pass(check, "all email settings present")
	}

	const hostCheck = "SMTP host configuration"
	if c.email.Host != "" {
		t.Pass(hostCheck, "host %s", c.email.Host)
	} else {
		t.Check(hostCheck, "no SMTP host configured")
	}

	const portCheck = "SMTP port configuration"
	if c.email.Port == smtpSubmissionPort {
		t.Pass(portCheck, "STARTTLS port %d", c.email.Port)
	} else {
		t.Check(portCheck, "expected port %d, got %d", smtpSubmissionPort, c.email.Port)
	}
}

// EmailServiceHealth triggers a password reset for an unknown address and
// checks that the backend reports no email errors meanwhile.
func (c *Checks) EmailServiceHealth(t apicheck.TB, _ *apicheck.Session) {
	since := time.Now().Add(-deliverySlack)

	if !c.forgotPassword(t, "Email service health", "nonexistent@fakeemail.com") {
		return
	}

	const check = "Email error log"

	if c.observer == nil {
		t.Log("no delivery observer configured, skipping email error check")
		return
	}

	errs, err := c.observer.Errors(t.Context(), since)
	if err != nil {
		t.Record(check, false, model.FailureNetwork, "observer: "+err.Error())
		return
	}

	if len(errs) > 0 {
		t.Check(check, "%d email errors, first: %s", len(errs), errs[0])
		return
	}

	t.Pass(check, "no email errors")
}

// ForgotPasswordEmail requests a reset code for the session user and checks
// that a reset email was sent.
func (c *Checks) ForgotPasswordEmail(t apicheck.TB, s *apicheck.Session) {
	since := time.Now().Add(-deliverySlack)

	if !c.forgotPassword(t, "Forgot password email", s.UserEmail) {
		return
	}

	c.expectDelivery(t, "Password reset email delivery", s.UserEmail, mail.KindPasswordReset, since)
}

// WelcomeEmail registers a new user and checks that a welcome email was sent.
// The user is removed in teardown.
func (c *Checks) WelcomeEmail(t apicheck.TB, s *apicheck.Session) {
	const check = "Welcome email registration"

	email := uniqueEmail("welcometest")
	since := time.Now().Add(-deliverySlack)

	ex, ok := c.post(t, check, "/auth/register", map[string]string{
		"email":     email,
		"password":  welcomePassword,
		"full_name": "Welcome Test User",
	})
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	if id := apicheck.String(obj, "id"); id != "" {
		s.SetID(entityWelcomeUser, id)
	}

	if got := apicheck.String(obj, "email"); got != email {
		t.Check(check, "expected email %s, got %q", email, got)
		return
	}

	t.Pass(check, "registered %s", email)

	c.expectDelivery(t, "Welcome email delivery", email, mail.KindWelcome, since)
}

// ExpiredResetCode checks that an unknown reset code is rejected with a
// message naming the code as invalid or expired.
func (c *Checks) ExpiredResetCode(t apicheck.TB, s *apicheck.Session) {
	const check = "Expired reset code rejection"

	ex, ok := c.post(t, check, "/auth/reset-password", map[string]string{
		"email":        s.UserEmail,
		"reset_code":   expiredCode,
		"new_password": "NewPassword@123",
	})
	if !ok {
		return
	}

	if !apicheck.ExpectStatus(t, check, ex, http.StatusBadRequest) {
		return
	}

	detail := strings.ToLower(ex.ErrorHint())
	if !strings.Contains(detail, "expired") && !strings.Contains(detail, "invalid") {
		t.Check(check, "unexpected error detail: %q", ex.ErrorHint())
		return
	}

	t.Pass(check, "rejected with %q", ex.ErrorHint())
}

// expectDelivery checks with the observer that an email of kind was sent to
// recipient. The check is skipped without an observer.
func (c *Checks) expectDelivery(t apicheck.TB, check, recipient string, kind mail.Kind, since time.Time) {
	if c.observer == nil {
		t.Logf("no delivery observer configured, skipping %q", check)
		return
	}

	deliveries, err := c.observer.Deliveries(t.Context(), recipient, since)
	if err != nil {
		t.Record(check, false, model.FailureNetwork, "observer: "+err.Error())
		return
	}

	if sent := mail.Sent(deliveries, kind); len(sent) > 0 {
		t.Pass(check, "%s email sent to %s", kind, recipient)
		return
	}

	for _, d := range deliveries {
		if d.Error != "" {
			t.Check(check, "delivery to %s failed: %s", recipient, d.Error)
			return
		}
	}

	t.Check(check, "no %s email sent to %s", kind, recipient)
}
