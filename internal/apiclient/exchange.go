package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Exchange is one request together with its response. It is only meant to
// live as long as the assertions that inspect it.
type Exchange struct {
	Method          string
	URL             string
	RequestHeaders  http.Header
	RequestBody     []byte
	StatusCode      int
	ResponseHeaders http.Header
	ResponseBody    []byte
	Duration        time.Duration
}

// Text returns the response body, truncated for use in messages.
func (e *Exchange) Text() string {
	return truncate(string(e.ResponseBody), 500)
}

// Decode unmarshals the response body into v.
func (e *Exchange) Decode(v any) error {
	if err := json.Unmarshal(e.ResponseBody, v); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", e.Method, e.URL, err)
	}

	return nil
}

// Object returns the response body as a JSON object.
func (e *Exchange) Object() (map[string]any, error) {
	var v any
	if err := e.Decode(&v); err != nil {
		return nil, err
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", jsonType(v))
	}

	return obj, nil
}

// List returns the response body as a JSON array.
func (e *Exchange) List() ([]any, error) {
	var v any
	if err := e.Decode(&v); err != nil {
		return nil, err
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", jsonType(v))
	}

	return list, nil
}

// ErrorHint extracts a human readable error from a JSON error body, e.g. the
// `detail` field of a 400 response. It returns "" if nothing was found.
func (e *Exchange) ErrorHint() string {
	if strings.TrimSpace(string(e.ResponseBody)) == "" {
		return ""
	}

	var v any
	if err := json.Unmarshal(e.ResponseBody, &v); err != nil {
		return ""
	}

	return extractErrorHint(v)
}

func extractErrorHint(v any) string {
	switch obj := v.(type) {
	case map[string]any:
		priorityKeys := []string{"detail", "error", "errors", "message", "msg", "reason", "title"}
		for _, key := range priorityKeys {
			if val, ok := obj[key]; ok {
				if s, ok := val.(string); ok {
					return s
				}
				return compact(val)
			}
		}
	case []any:
		for _, item := range obj {
			if hint := extractErrorHint(item); hint != "" {
				return hint
			}
		}
	}

	return ""
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(b)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}
