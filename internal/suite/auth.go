package suite

import (
	"net/http"
	"strings"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
)

const (
	forgotPasswordMessage = "If the email exists, a reset code has been sent"
	changedPassword       = "ChangedPassword@123"
	weakPassword          = "123"
)

// UserRegistration registers the session user and checks that duplicate
// emails and weak passwords are rejected.
//
// Writes: the id of the registered user, if returned.
func (c *Checks) UserRegistration(t apicheck.TB, s *apicheck.Session) {
	user := map[string]string{
		"email":     s.UserEmail,
		"password":  s.UserPassword,
		"full_name": s.UserName,
	}

	c.register(t, s, user)
	c.duplicateRegistration(t, user)
	c.weakPasswordRegistration(t)
}

func (c *Checks) register(t apicheck.TB, s *apicheck.Session, user map[string]string) {
	const check = "User registration"

	ex, ok := c.post(t, check, "/auth/register", user)
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	if apicheck.String(obj, "email") != s.UserEmail {
		t.Check(check, "unexpected response: %s", ex.Text())
		return
	}

	if id := apicheck.String(obj, "id"); id != "" {
		s.SetID(model.EntityUser, id)
	}

	t.Pass(check, "user created: %s", s.UserEmail)
}

func (c *Checks) duplicateRegistration(t apicheck.TB, user map[string]string) {
	const check = "Duplicate email prevention"

	ex, ok := c.post(t, check, "/auth/register", user)
	if !ok {
		return
	}

	if !apicheck.ExpectStatus(t, check, ex, http.StatusBadRequest) {
		return
	}

	if c.strict && !strings.Contains(strings.ToLower(ex.ErrorHint()), "already registered") {
		t.Check(check, "duplicate email rejected without an `already registered` detail: %s", ex.Text())
		return
	}

	t.Pass(check, "correctly rejected duplicate email")
}

func (c *Checks) weakPasswordRegistration(t apicheck.TB) {
	const check = "Weak password rejection"

	user := map[string]string{
		"email":     uniqueEmail("weakuser"),
		"password":  weakPassword,
		"full_name": "Weak User",
	}

	ex, ok := c.post(t, check, "/auth/register", user)
	if !ok {
		return
	}

	if apicheck.ExpectStatus(t, check, ex, http.StatusBadRequest) {
		t.Pass(check, "correctly rejected weak password")
	}
}

// UserLogin logs in the session user and checks that a wrong password is
// rejected.
//
// Requires: UserRegistration. Writes: Session.UserToken.
func (c *Checks) UserLogin(t apicheck.TB, s *apicheck.Session) {
	c.userLogin(t, s)
	c.invalidLogin(t, s)
}

func (c *Checks) userLogin(t apicheck.TB, s *apicheck.Session) {
	const check = "User login"

	token, email, ok := c.login(t, check, s.UserEmail, s.UserPassword)
	if !ok {
		return
	}

	s.UserToken = token

	t.Pass(check, "token received for %s", email)
}

func (c *Checks) invalidLogin(t apicheck.TB, s *apicheck.Session) {
	const check = "Invalid login rejection"

	ex, ok := c.post(t, check, "/auth/login", map[string]string{
		"email":    s.UserEmail,
		"password": "wrongpassword",
	})
	if !ok {
		return
	}

	if apicheck.ExpectStatus(t, check, ex, http.StatusUnauthorized) {
		t.Pass(check, "correctly rejected invalid credentials")
	}
}

// AdminLogin logs in the configured admin.
//
// Writes: Session.AdminToken.
func (c *Checks) AdminLogin(t apicheck.TB, s *apicheck.Session) {
	const check = "Admin login"

	ex, ok := c.post(t, check, "/auth/login", map[string]string{
		"email":    s.AdminEmail,
		"password": s.AdminPassword,
	})
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	user, _ := obj["user"].(map[string]any)
	token := apicheck.String(obj, "access_token")

	if token == "" || user == nil || apicheck.String(user, "role") != "admin" {
		t.Check(check, "missing admin token or role: %s", ex.Text())
		return
	}

	s.AdminToken = token

	t.Pass(check, "admin token received for %s", apicheck.String(user, "email"))
}

// login returns the access token and the email of the logged in user.
func (c *Checks) login(t apicheck.TB, check, email, password string) (string, string, bool) {
	ex, ok := c.post(t, check, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if !ok {
		return "", "", false
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return "", "", false
	}

	user, _ := obj["user"].(map[string]any)
	token := apicheck.String(obj, "access_token")

	if token == "" || user == nil {
		t.Check(check, "missing token or user data: %s", ex.Text())
		return "", "", false
	}

	return token, apicheck.String(user, "email"), true
}

// CurrentUser checks that the token belongs to the session user.
//
// Requires: Session.UserToken. Writes: the user id.
func (c *Checks) CurrentUser(t apicheck.TB, s *apicheck.Session) {
	const check = "Get current user"

	requireUserToken(t, s, check)

	ex, ok := c.get(t, check, "/auth/me", apiclient.WithBearer(s.UserToken))
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	if apicheck.String(obj, "email") != s.UserEmail {
		t.Check(check, "unexpected user data: %s", ex.Text())
		return
	}

	if id := apicheck.String(obj, "id"); id != "" {
		s.SetID(model.EntityUser, id)
	}

	t.Pass(check, "retrieved user: %s", s.UserEmail)
}

// PasswordResetFlow requests a reset code and checks that an invalid code is
// rejected.
func (c *Checks) PasswordResetFlow(t apicheck.TB, s *apicheck.Session) {
	c.forgotPassword(t, "Password reset request", s.UserEmail)
	c.invalidResetCode(t, s)
}

// forgotPassword requests a reset code for email and checks the generic
// response message.
func (c *Checks) forgotPassword(t apicheck.TB, check, email string) bool {
	ex, ok := c.post(t, check, "/auth/forgot-password", map[string]string{"email": email})
	if !ok {
		return false
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return false
	}

	if !c.textMatches(apicheck.String(obj, "message"), forgotPasswordMessage) {
		t.Check(check, "unexpected message: %q", apicheck.String(obj, "message"))
		return false
	}

	t.Pass(check, "reset request processed")

	return true
}

func (c *Checks) invalidResetCode(t apicheck.TB, s *apicheck.Session) {
	const check = "Invalid reset code rejection"

	ex, ok := c.post(t, check, "/auth/reset-password", map[string]string{
		"email":        s.UserEmail,
		"reset_code":   "000000",
		"new_password": "NewPassword@123",
	})
	if !ok {
		return
	}

	if !apicheck.ExpectStatus(t, check, ex, http.StatusBadRequest) {
		return
	}

	if c.strict {
		detail := ex.ErrorHint()
		if !strings.Contains(detail, "Invalid reset code") && !strings.Contains(detail, "Reset code expired") {
			t.Check(check, "unexpected error detail: %q", detail)
			return
		}
	}

	t.Pass(check, "correctly rejected invalid reset code")
}

// ChangePassword changes the password of the session user.
//
// Requires: Session.UserToken. Writes: Session.UserPassword.
func (c *Checks) ChangePassword(t apicheck.TB, s *apicheck.Session) {
	const check = "Change password"

	requireUserToken(t, s, check)

	ex, ok := c.post(t, check, "/user/change-password", map[string]string{
		"current_password": s.UserPassword,
		"new_password":     changedPassword,
	}, apiclient.WithBearer(s.UserToken))
	if !ok {
		return
	}

	if apicheck.ExpectStatus(t, check, ex, http.StatusOK) {
		s.UserPassword = changedPassword
		t.Pass(check, "password changed")
	}
}
