package suite

import (
	"context"
	"net/http"
	"strings"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
	"golang.org/x/exp/slices"
)

func (c *Checks) send(t apicheck.TB, check, method, path string, opts ...apiclient.RequestOption) (*apicheck.Exchange, bool) {
	return apicheck.Send(t, check, c.client, method, path, opts...)
}

func (c *Checks) get(t apicheck.TB, check, path string, opts ...apiclient.RequestOption) (*apicheck.Exchange, bool) {
	return c.send(t, check, "GET", path, opts...)
}

func (c *Checks) post(t apicheck.TB, check, path string, body any, opts ...apiclient.RequestOption) (*apicheck.Exchange, bool) {
	return c.send(t, check, "POST", path, append(opts, apiclient.WithJSON(body))...)
}

func (c *Checks) put(t apicheck.TB, check, path string, body any, opts ...apiclient.RequestOption) (*apicheck.Exchange, bool) {
	return c.send(t, check, "PUT", path, append(opts, apiclient.WithJSON(body))...)
}

func (c *Checks) delete(t apicheck.TB, check, path string, opts ...apiclient.RequestOption) (*apicheck.Exchange, bool) {
	return c.send(t, check, "DELETE", path, opts...)
}

// getList fetches a list and records a failed outcome for a non 200 status,
// a non list body or a network error.
func (c *Checks) getList(t apicheck.TB, check, path string, opts ...apiclient.RequestOption) ([]any, bool) {
	ex, ok := c.get(t, check, path, opts...)
	if !ok {
		return nil, false
	}

	return apicheck.ExpectList(t, check, ex)
}

// statusOK is a shorthand for checks that only judge the status code.
func (c *Checks) statusOK(t apicheck.TB, check string, ex *apicheck.Exchange, format string, args ...any) {
	if apicheck.ExpectStatus(t, check, ex, http.StatusOK) {
		t.Pass(check, format, args...)
	}
}

func requireUserToken(t apicheck.TB, s *apicheck.Session, check string) {
	if !s.HasUserToken() {
		t.Prerequisite(check, "user token")
	}
}

func requireAdminToken(t apicheck.TB, s *apicheck.Session, check string) {
	if !s.HasAdminToken() {
		t.Prerequisite(check, "admin token")
	}
}

// trackEntity registers a best effort delete of a created entity. It is
// skipped if the entity was deleted by the test itself, see Session.ForgetID.
func (c *Checks) trackEntity(t apicheck.TB, s *apicheck.Session, kind model.EntityKind, pathPrefix string) {
	t.Cleanup(func() {
		id, ok := s.ID(kind)
		if !ok {
			return
		}

		c.deleteBestEffort(context.Background(), pathPrefix+id, s.AdminToken, string(kind))
		s.ForgetID(kind)
	})
}

// textMatches compares response texts. Strict mode requires an exact match,
// otherwise want must be contained in got.
func (c *Checks) textMatches(got, want string) bool {
	if c.strict {
		return got == want
	}

	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

func objects(list []any) []map[string]any {
	res := make([]map[string]any, 0, len(list))

	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			res = append(res, obj)
		}
	}

	return res
}

// findBy returns the first object in list whose key equals value.
func findBy(list []any, key, value string) map[string]any {
	for _, obj := range objects(list) {
		if apicheck.String(obj, key) == value {
			return obj
		}
	}

	return nil
}

func countWhere(list []any, key, value string) int {
	n := 0

	for _, obj := range objects(list) {
		if apicheck.String(obj, key) == value {
			n++
		}
	}

	return n
}

// mismatchedFields returns the fields of want whose value differs in got.
func mismatchedFields(got map[string]any, want map[string]string) []string {
	fields := []string{}

	for k, v := range want {
		if apicheck.String(got, k) != v {
			fields = append(fields, k)
		}
	}

	slices.Sort(fields)

	return fields
}
