package suite

import (
	"net/http"
	"strings"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
)

// RootEndpoint checks that the API is up and identifies itself.
func (c *Checks) RootEndpoint(t apicheck.TB, _ *apicheck.Session) {
	const check = "Root endpoint"

	ex, ok := c.get(t, check, "/")
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	msg := apicheck.String(obj, "message")
	if !strings.Contains(msg, c.rootMessage) {
		t.Check(check, "unexpected response: %s", ex.Text())
		return
	}

	t.Pass(check, "%s", msg)
}

// Regression is a quick pass over the main features. It needs both tokens
// and sends no request without them.
func (c *Checks) Regression(t apicheck.TB, s *apicheck.Session) {
	const authCheck = "Authentication endpoints"
	requireUserToken(t, s, authCheck)
	requireAdminToken(t, s, authCheck)
	t.Pass(authCheck, "user and admin authentication working")

	const productCheck = "Product listing regression"
	if list, ok := c.getList(t, productCheck, "/products"); ok {
		t.Pass(productCheck, "product listing working (%d products)", len(list))
	}

	const quoteCheck = "Quote management regression"
	ex, ok := c.get(t, quoteCheck, "/quotes/my", apiclient.WithBearer(s.UserToken))
	if ok && apicheck.ExpectStatus(t, quoteCheck, ex, http.StatusOK) {
		t.Pass(quoteCheck, "quote system working")
	}

	const usersCheck = "Admin user management regression"
	if list, ok := c.getList(t, usersCheck, "/admin/users", apiclient.WithBearer(s.AdminToken)); ok {
		t.Pass(usersCheck, "user management working (%d users)", len(list))
	}

	const emailCheck = "Email service regression"
	ex, ok = c.post(t, emailCheck, "/auth/forgot-password", map[string]string{"email": "test@example.com"})
	if ok && apicheck.ExpectStatus(t, emailCheck, ex, http.StatusOK) {
		t.Pass(emailCheck, "forgot password endpoint working")
	}
}
