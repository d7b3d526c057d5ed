package suite

import (
	"net/http"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
)

const (
	testContent    = "Test Content for API Testing"
	updatedContent = "Updated Test Content for API Testing"
)

// PublicContent checks that site content is readable without a token.
func (c *Checks) PublicContent(t apicheck.TB, _ *apicheck.Session) {
	const check = "Public content listing"

	if list, ok := c.getList(t, check, "/content"); ok {
		t.Pass(check, "retrieved %d content items", len(list))
	}
}

// AdminContentManagement lists, creates, updates and deletes site content.
// The created content is removed even if a later step fails.
//
// Requires: Session.AdminToken.
func (c *Checks) AdminContentManagement(t apicheck.TB, s *apicheck.Session) {
	requireAdminToken(t, s, "Admin content management")

	auth := apiclient.WithBearer(s.AdminToken)

	const listCheck = "Admin content listing"
	if list, ok := c.getList(t, listCheck, "/admin/content", auth); ok {
		t.Pass(listCheck, "retrieved %d content items", len(list))
	}

	const filterCheck = "Admin content page filter"
	if list, ok := c.getList(t, filterCheck, "/admin/content", auth, apiclient.WithQuery("page", "about")); ok {
		t.Pass(filterCheck, "retrieved %d `about` page content items", len(list))
	}

	if !c.createContent(t, s) {
		return
	}

	c.updateContent(t, s)
	c.deleteContent(t, s)
}

func (c *Checks) createContent(t apicheck.TB, s *apicheck.Session) bool {
	const check = "Create content"

	want := map[string]string{
		"page":    "about",
		"section": "hero_title",
		"content": testContent,
	}

	ex, ok := c.post(t, check, "/admin/content", want, apiclient.WithBearer(s.AdminToken))
	if !ok {
		return false
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return false
	}

	id := apicheck.String(obj, "id")
	if id == "" {
		t.Check(check, "no id in response: %s", ex.Text())
		return false
	}

	s.SetID(model.EntityContent, id)
	c.trackEntity(t, s, model.EntityContent, "/admin/content/")

	if fields := mismatchedFields(obj, want); len(fields) > 0 {
		t.Check(check, "fields not echoed: %v", fields)
		return true
	}

	t.Pass(check, "content created with id %s", id)

	return true
}

func (c *Checks) updateContent(t apicheck.TB, s *apicheck.Session) {
	const check = "Update content"

	id, _ := s.ID(model.EntityContent)

	ex, ok := c.put(t, check, "/admin/content/"+id, map[string]string{"content": updatedContent}, apiclient.WithBearer(s.AdminToken))
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	if apicheck.String(obj, "content") != updatedContent {
		t.Check(check, "update not reflected: %s", ex.Text())
		return
	}

	t.Pass(check, "content updated")
}

func (c *Checks) deleteContent(t apicheck.TB, s *apicheck.Session) {
	const check = "Delete content"

	id, _ := s.ID(model.EntityContent)

	ex, ok := c.delete(t, check, "/admin/content/"+id, apiclient.WithBearer(s.AdminToken))
	if !ok {
		return
	}

	if apicheck.ExpectStatus(t, check, ex, http.StatusOK, http.StatusNoContent) {
		s.ForgetID(model.EntityContent)
		t.Pass(check, "content %s deleted", id)
	}
}

// ContentAuthorization checks that a regular user cannot manage content.
//
// Requires: Session.UserToken.
func (c *Checks) ContentAuthorization(t apicheck.TB, s *apicheck.Session) {
	const check = "Content authorization (non-admin)"

	requireUserToken(t, s, check)

	ex, ok := c.get(t, check, "/admin/content", apiclient.WithBearer(s.UserToken))
	if !ok {
		return
	}

	if apicheck.ExpectStatus(t, check, ex, http.StatusUnauthorized, http.StatusForbidden) {
		t.Pass(check, "blocked non-admin access (status %d)", ex.StatusCode)
	}
}

// ContentAuditLog checks that content changes are audited.
//
// Requires: Session.AdminToken, AdminContentManagement.
func (c *Checks) ContentAuditLog(t apicheck.TB, s *apicheck.Session) {
	requireAdminToken(t, s, "Content audit log")

	list, ok := c.getList(t, "Content audit log", "/admin/audit-logs", apiclient.WithBearer(s.AdminToken))
	if !ok {
		return
	}

	for _, action := range []string{"CONTENT_CREATED", "CONTENT_UPDATED"} {
		check := "Audit log " + action

		if n := countWhere(list, "action", action); n > 0 {
			t.Pass(check, "found %d entries", n)
		} else {
			t.Check(check, "no %s entries found", action)
		}
	}
}
