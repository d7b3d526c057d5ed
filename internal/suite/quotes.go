package suite

import (
	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
)

// QuoteManagement creates a quote request and reads it back.
//
// Requires: Session.UserToken. Writes: the quote id.
func (c *Checks) QuoteManagement(t apicheck.TB, s *apicheck.Session) {
	requireUserToken(t, s, "Quote management")

	auth := apiclient.WithBearer(s.UserToken)

	c.createQuote(t, s)

	const listCheck = "Get user quotes"
	if list, ok := c.getList(t, listCheck, "/quotes/my", auth); ok {
		t.Pass(listCheck, "retrieved %d quotes", len(list))
	}

	id, ok := s.ID(model.EntityQuote)
	if !ok {
		return
	}

	const getCheck = "Get specific quote"

	ex, ok := c.get(t, getCheck, "/quotes/"+id, auth)
	if !ok {
		return
	}

	if obj, ok := apicheck.ExpectObject(t, getCheck, ex); ok {
		items, _ := obj["items"].([]any)
		t.Pass(getCheck, "retrieved quote with %d items", len(items))
	}
}

func (c *Checks) createQuote(t apicheck.TB, s *apicheck.Session) {
	const check = "Create quote"

	quote := map[string]any{
		"items": []map[string]any{
			{
				"product_id":   "test-product-id",
				"cat_no":       "VN-CV09-100",
				"product_name": "9 mm Clear Screw Vials W/O Patch",
				"quantity":     5,
				"pack_size":    "100",
			},
		},
		"message": "Test quote request for laboratory supplies",
	}

	ex, ok := c.post(t, check, "/quotes", quote, apiclient.WithBearer(s.UserToken))
	if !ok {
		return
	}

	obj, ok := apicheck.ExpectObject(t, check, ex)
	if !ok {
		return
	}

	id := apicheck.String(obj, "id")
	if id == "" {
		t.Check(check, "no id in response: %s", ex.Text())
		return
	}

	s.SetID(model.EntityQuote, id)

	t.Pass(check, "quote created with id %s", id)
}
