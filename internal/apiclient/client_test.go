package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vianscientific/apicheck/internal/apiclient"
)

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

func echoServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()

	c := &captured{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, c
}

func TestPostSendsJSONAndBearer(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `{"id":"42","email":"a@x.com"}`)

	client := apiclient.New(srv.URL + "/")

	ex, err := client.Post(context.Background(), "/auth/register",
		apiclient.WithJSON(map[string]string{"email": "a@x.com"}),
		apiclient.WithBearer("secret"),
	)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "/auth/register", c.path)
	assert.Equal(t, "application/json", c.header.Get("Content-Type"))
	assert.Equal(t, "application/json", c.header.Get("Accept"))
	assert.Equal(t, "Bearer secret", c.header.Get("Authorization"))
	assert.JSONEq(t, `{"email":"a@x.com"}`, string(c.body))

	assert.Equal(t, http.StatusOK, ex.StatusCode)

	obj, err := ex.Object()
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", obj["email"])
}

func TestEmptyTokenSendsNoAuthorization(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `[]`)

	_, err := apiclient.New(srv.URL).Get(context.Background(), "/products", apiclient.WithBearer(""))
	require.NoError(t, err)

	assert.Empty(t, c.header.Get("Authorization"))
}

func TestGetAndDeleteSendNoBody(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `{}`)
	client := apiclient.New(srv.URL)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		_, err := client.Do(context.Background(), method, "/x", apiclient.WithJSON(map[string]int{"a": 1}))
		require.NoError(t, err)

		assert.Equal(t, method, c.method)
		assert.Empty(t, c.body, "%s must not send a body", method)
	}
}

func TestQueryParameters(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `[]`)

	_, err := apiclient.New(srv.URL).Get(context.Background(), "/admin/audit-logs", apiclient.WithQuery("action", "LOGIN_SUCCESS"))
	require.NoError(t, err)

	assert.Equal(t, "action=LOGIN_SUCCESS", c.query)
}

func TestErrorStatusIsNotAnError(t *testing.T) {
	srv, _ := echoServer(t, http.StatusBadRequest, `{"detail":"Email already registered"}`)

	ex, err := apiclient.New(srv.URL).Post(context.Background(), "/auth/register")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, ex.StatusCode)
	assert.Equal(t, "Email already registered", ex.ErrorHint())
}

func TestUnsupportedMethodFailsBeforeIO(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `{}`)

	_, err := apiclient.New(srv.URL).Do(context.Background(), "PATCH", "/products/1")

	var unsupported apiclient.UnsupportedMethodError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "PATCH", unsupported.Method)
	assert.Empty(t, c.method, "no request must be sent")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := apiclient.New(url).Get(context.Background(), "/")

	var netErr apiclient.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.MethodGet, netErr.Method)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	_, err := apiclient.New(srv.URL, apiclient.WithTimeout(50*time.Millisecond)).Get(context.Background(), "/")

	assert.ErrorAs(t, err, &apiclient.NetworkError{})
}

func TestTimeoutSurvivesOtherOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(600 * time.Millisecond):
		}
	}))
	t.Cleanup(srv.Close)

	orders := map[string][]apiclient.Option{
		"timeout first": {
			apiclient.WithTimeout(100 * time.Millisecond),
			apiclient.WithDefaultHeader("X-Test-Run", "1"),
			apiclient.WithLogger(logrus.StandardLogger()),
		},
		"timeout last": {
			apiclient.WithLogger(logrus.StandardLogger()),
			apiclient.WithDefaultHeader("X-Test-Run", "1"),
			apiclient.WithTimeout(100 * time.Millisecond),
		},
	}

	for name, opts := range orders {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, err := apiclient.New(srv.URL, opts...).Get(context.Background(), "/")

			assert.ErrorAs(t, err, &apiclient.NetworkError{})
			assert.Less(t, time.Since(start), 500*time.Millisecond)
		})
	}
}

func TestDefaultHeader(t *testing.T) {
	srv, c := echoServer(t, http.StatusOK, `{}`)

	_, err := apiclient.New(srv.URL, apiclient.WithDefaultHeader("X-Test-Run", "1")).Get(context.Background(), "/")
	require.NoError(t, err)

	assert.Equal(t, "1", c.header.Get("X-Test-Run"))
}

func TestExchangeShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantObj bool
		wantErr string
	}{
		{name: "object", body: `{"a":1}`, wantObj: true},
		{name: "list", body: `[1,2]`, wantErr: "expected JSON object, got list"},
		{name: "string", body: `"x"`, wantErr: "expected JSON object, got string"},
		{name: "invalid", body: `<html>`, wantErr: "decoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &apiclient.Exchange{Method: "GET", URL: "/x", ResponseBody: []byte(tt.body)}

			_, err := ex.Object()
			if tt.wantObj {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	ex := &apiclient.Exchange{ResponseBody: []byte(`{"a":1}`)}
	_, err := ex.List()
	assert.EqualError(t, err, "expected list, got object")
}

func TestErrorHint(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Invalid reset code"}`, "Invalid reset code"},
		{`{"message":"nope","detail":"first"}`, "first"},
		{`{"detail":[{"msg":"field required"}]}`, `[{"msg":"field required"}]`},
		{`[{"error":"in list"}]`, "in list"},
		{`{"other":1}`, ""},
		{``, ""},
		{`not json`, ""},
	}

	for _, tt := range tests {
		ex := &apiclient.Exchange{ResponseBody: []byte(tt.body)}
		assert.Equal(t, tt.want, ex.ErrorHint(), "body %s", tt.body)
	}
}

func TestTextIsTruncated(t *testing.T) {
	long, err := json.Marshal(make([]int, 400))
	require.NoError(t, err)

	ex := &apiclient.Exchange{ResponseBody: long}

	assert.Len(t, ex.Text(), 503)
}

func TestTextKeepsRunesIntact(t *testing.T) {
	// 499 ASCII bytes followed by a two byte rune straddle the limit.
	body := strings.Repeat("a", 499) + "ü" + strings.Repeat("b", 10)

	ex := &apiclient.Exchange{ResponseBody: []byte(body)}

	text := ex.Text()
	assert.True(t, utf8.ValidString(text), "truncated text must be valid UTF-8")
	assert.Equal(t, strings.Repeat("a", 499)+"...", text)
}
