package suite

import (
	"github.com/google/uuid"
	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
)

// ProfileUserID checks that the profile of the user carries a UUID.
//
// Requires: Session.UserToken.
func (c *Checks) ProfileUserID(t apicheck.TB, s *apicheck.Session) {
	const check = "User profile UUID"

	requireUserToken(t, s, check)

	c.profileID(t, check, s.UserToken)
}

// ProfileAdminID checks that the profile of the admin carries a UUID.
//
// Requires: Session.AdminToken.
func (c *Checks) ProfileAdminID(t apicheck.TB, s *apicheck.Session) {
	const check = "Admin profile UUID"

	requireAdminToken(t, s, check)

	c.profileID(t, check, s.AdminToken)
}

func (c *Checks) profileID(t apicheck.TB, check, token string) {
	ex, ok := c.get(t, check, "/auth/me", apiclient.WithBearer(token))
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	id := apicheck.String(obj, "id")
	if !isUUID(id) {
		t.Check(check, "id %q is not a UUID", id)
		return
	}

	t.Pass(check, "id %s", id)
}

// isUUID accepts the canonical 36 character form only.
func isUUID(id string) bool {
	if len(id) != 36 {
		return false
	}

	_, err := uuid.Parse(id)

	return err == nil
}
