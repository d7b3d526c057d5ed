package suite

import (
	"net/http"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
)

var adminEndpoints = []string{
	"/admin/users",
	"/admin/content",
	"/admin/quotes",
	"/admin/audit-logs",
}

// AdminEndpointsWithoutToken checks that admin endpoints reject anonymous
// requests.
func (c *Checks) AdminEndpointsWithoutToken(t apicheck.TB, _ *apicheck.Session) {
	for _, path := range adminEndpoints {
		check := "Unauthorized access " + path

		ex, ok := c.get(t, check, path)
		if !ok {
			continue
		}

		if apicheck.ExpectStatus(t, check, ex, http.StatusUnauthorized, http.StatusForbidden) {
			t.Pass(check, "blocked anonymous access (status %d)", ex.StatusCode)
		}
	}
}

// AdminEndpointsWithUserToken checks that a regular user cannot reach admin
// endpoints. User management must answer with 403 exactly.
//
// Requires: Session.UserToken.
func (c *Checks) AdminEndpointsWithUserToken(t apicheck.TB, s *apicheck.Session) {
	requireUserToken(t, s, "Non-admin access")

	auth := apiclient.WithBearer(s.UserToken)

	const usersCheck = "Non-admin access /admin/users"

	if ex, ok := c.get(t, usersCheck, "/admin/users", auth); ok {
		if apicheck.ExpectStatus(t, usersCheck, ex, http.StatusForbidden) {
			t.Pass(usersCheck, "correctly blocked non-admin access")
		}
	}

	for _, path := range adminEndpoints[1:] {
		check := "Non-admin access " + path

		ex, ok := c.get(t, check, path, auth)
		if !ok {
			continue
		}

		if apicheck.ExpectStatus(t, check, ex, http.StatusUnauthorized, http.StatusForbidden) {
			t.Pass(check, "blocked non-admin access (status %d)", ex.StatusCode)
		}
	}
}
