package mail_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vianscientific/apicheck/internal/mail"
)

func TestOutboxFiltersByRecipientAndTime(t *testing.T) {
	o := mail.NewOutbox()

	before := time.Now().Add(-time.Minute)
	o.Add(mail.Delivery{Recipient: "old@x.com", Kind: mail.KindWelcome, Sent: true, Time: before})
	o.Add(mail.Delivery{Recipient: "User@X.com", Kind: mail.KindWelcome, Sent: true})
	o.Add(mail.Delivery{Recipient: "user@x.com", Kind: mail.KindPasswordReset, Error: "SMTP error: 535"})

	since := time.Now().Add(-time.Second)

	got, err := o.Deliveries(context.Background(), "user@x.com", since)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	assert.Len(t, mail.Sent(got, mail.KindWelcome), 1)
	assert.Empty(t, mail.Sent(got, mail.KindPasswordReset))
	assert.Len(t, mail.Sent(got, ""), 1)

	old, err := o.Deliveries(context.Background(), "old@x.com", since)
	require.NoError(t, err)
	assert.Empty(t, old)

	errs, err := o.Errors(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []string{"user@x.com: SMTP error: 535"}, errs)
}

func fakeElasticsearch(t *testing.T, hits []map[string]any) (*httptest.Server, *[]string) {
	t.Helper()

	queries := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		queries = append(queries, r.URL.Path+" "+string(body))

		source := []map[string]any{}
		for _, h := range hits {
			source = append(source, map[string]any{"_source": h})
		}

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"hits": source},
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &queries
}

func newObserver(t *testing.T, url string) *mail.ElasticObserver {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	o, err := mail.NewElasticObserver([]string{url}, "backend-logs-*", log)
	require.NoError(t, err)

	return o
}

func TestElasticObserverParsesDeliveries(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	srv, queries := fakeElasticsearch(t, []map[string]any{
		{"@timestamp": ts.Format(time.RFC3339Nano), "message": "Email sent successfully to a@x.com: Welcome to Vian Scientific"},
		{"@timestamp": ts.Format(time.RFC3339Nano), "message": "Password reset for a@x.com failed: SMTP error (535)"},
	})

	got, err := newObserver(t, srv.URL).Deliveries(context.Background(), "a@x.com", ts.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, mail.KindWelcome, got[0].Kind)
	assert.True(t, got[0].Sent)
	assert.Equal(t, ts, got[0].Time)

	assert.Equal(t, mail.KindPasswordReset, got[1].Kind)
	assert.False(t, got[1].Sent)
	assert.NotEmpty(t, got[1].Error)

	require.Len(t, *queries, 1)
	assert.True(t, strings.HasPrefix((*queries)[0], "/backend-logs-*/_search"))
	assert.Contains(t, (*queries)[0], `"match_phrase":{"message":"a@x.com"}`)
}

func TestElasticObserverErrors(t *testing.T) {
	srv, queries := fakeElasticsearch(t, []map[string]any{
		{"message": "SMTPAuthenticationError: (535, b'5.7.8 Username and Password not accepted')"},
	})

	errs, err := newObserver(t, srv.URL).Errors(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)

	assert.Len(t, errs, 1)
	assert.Contains(t, (*queries)[0], `"minimum_should_match":1`)
}

func TestElasticObserverReportsSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newObserver(t, srv.URL).Errors(context.Background(), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}
