package apicheck

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
)

// Send performs a single request. If the backend cannot be reached a failed
// outcome of kind network-error is recorded for check and ok is false.
// An unsupported method is a bug in the calling test and panics.
func Send(t TB, check string, c *apiclient.Client, method, path string, opts ...apiclient.RequestOption) (ex *Exchange, ok bool) {
	ctx := t.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ex, err := c.Do(ctx, method, path, opts...)
	if err == nil {
		return ex, true
	}

	var unsupported apiclient.UnsupportedMethodError
	if errors.As(err, &unsupported) {
		panic(unsupported)
	}

	t.Record(check, false, model.FailureNetwork, err.Error())

	return nil, false
}

// ExpectStatus records a failed outcome if the status code of ex is none of
// codes. Nothing is recorded on a match.
func ExpectStatus(t TB, check string, ex *Exchange, codes ...int) bool {
	for _, code := range codes {
		if ex.StatusCode == code {
			return true
		}
	}

	t.Check(check, "expected status %s, got %d%s", joinCodes(codes), ex.StatusCode, detail(ex))

	return false
}

// ExpectObject expects a 200 response with a JSON object body.
func ExpectObject(t TB, check string, ex *Exchange) (map[string]any, bool) {
	if !ExpectStatus(t, check, ex, 200) {
		return nil, false
	}

	obj, err := ex.Object()
	if err != nil {
		t.Check(check, "malformed body: %v", err)
		return nil, false
	}

	return obj, true
}

// ExpectList expects a 200 response with a JSON list body. A non list body
// fails with a message distinct from a status mismatch.
func ExpectList(t TB, check string, ex *Exchange) ([]any, bool) {
	if !ExpectStatus(t, check, ex, 200) {
		return nil, false
	}

	list, err := ex.List()
	if err != nil {
		t.Check(check, "response is not a list: %v", err)
		return nil, false
	}

	return list, true
}

// ExpectFields records a failed outcome naming every missing field.
func ExpectFields(t TB, check string, obj map[string]any, fields ...string) bool {
	missing := []string{}

	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}

	if len(missing) > 0 {
		t.Check(check, "missing fields: %s", strings.Join(missing, ", "))
		return false
	}

	return true
}

// String returns obj[key] if it is a string, or the JSON number rendered
// as a string, e.g. for numeric identifiers.
func String(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func detail(ex *Exchange) string {
	if hint := ex.ErrorHint(); hint != "" {
		return ": " + hint
	}

	if text := strings.TrimSpace(ex.Text()); text != "" {
		return ": " + text
	}

	return ""
}

func joinCodes(codes []int) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = strconv.Itoa(c)
	}

	if len(s) == 1 {
		return s[0]
	}

	return "one of " + strings.Join(s, "/")
}
