package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

const (
	sentMarker = "Email sent successfully"

	defaultTimestampField = "@timestamp"
	defaultMessageField   = "message"
)

// errorPatterns are matched against backend log lines to detect failing
// email delivery.
var errorPatterns = []string{
	"smtp error",
	"authentication failed",
	"connection failed",
	"smtpauthenticationerror",
}

// ElasticObserver finds email deliveries in the backend logs shipped to
// elasticsearch.
type ElasticObserver struct {
	client *elasticsearch.Client
	index  string

	timestampField string
	messageField   string

	log logrus.FieldLogger
}

var _ DeliveryObserver = &ElasticObserver{}

func NewElasticObserver(addresses []string, index string, log logrus.FieldLogger) (*ElasticObserver, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	return &ElasticObserver{
		client:         client,
		index:          index,
		timestampField: defaultTimestampField,
		messageField:   defaultMessageField,
		log:            log.WithField("component", "elastic-observer"),
	}, nil
}

func (o *ElasticObserver) Deliveries(ctx context.Context, recipient string, since time.Time) ([]Delivery, error) {
	query := map[string]any{
		"size": 50,
		"sort": []any{map[string]any{o.timestampField: "asc"}},
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match_phrase": map[string]any{o.messageField: recipient}},
					o.sinceFilter(since),
				},
			},
		},
	}

	hits, err := o.search(ctx, query)
	if err != nil {
		return nil, err
	}

	deliveries := make([]Delivery, 0, len(hits))

	for _, h := range hits {
		deliveries = append(deliveries, parseDelivery(recipient, h.message, h.timestamp))
	}

	return deliveries, nil
}

func (o *ElasticObserver) Errors(ctx context.Context, since time.Time) ([]string, error) {
	should := make([]any, 0, len(errorPatterns))
	for _, p := range errorPatterns {
		should = append(should, map[string]any{"match_phrase": map[string]any{o.messageField: p}})
	}

	query := map[string]any{
		"size": 50,
		"query": map[string]any{
			"bool": map[string]any{
				"must":                 []any{o.sinceFilter(since)},
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}

	hits, err := o.search(ctx, query)
	if err != nil {
		return nil, err
	}

	errs := make([]string, 0, len(hits))
	for _, h := range hits {
		errs = append(errs, h.message)
	}

	return errs, nil
}

func (o *ElasticObserver) sinceFilter(since time.Time) map[string]any {
	return map[string]any{
		"range": map[string]any{
			o.timestampField: map[string]any{"gte": since.UTC().Format(time.RFC3339Nano)},
		},
	}
}

type logHit struct {
	message   string
	timestamp time.Time
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (o *ElasticObserver) search(ctx context.Context, query map[string]any) ([]logHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	es := o.client

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(o.index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("searching elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]any
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, fmt.Errorf("searching elasticsearch: %s", res.Status())
		}

		return nil, fmt.Errorf("searching elasticsearch [%s]: %v", res.Status(), e["error"])
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("parsing elasticsearch response: %w", err)
	}

	hits := make([]logHit, 0, len(r.Hits.Hits))

	for _, h := range r.Hits.Hits {
		msg, _ := h.Source[o.messageField].(string)

		var ts time.Time
		if raw, ok := h.Source[o.timestampField].(string); ok {
			ts, _ = time.Parse(time.RFC3339Nano, raw)
		}

		hits = append(hits, logHit{message: msg, timestamp: ts})
	}

	o.log.WithField("hits", len(hits)).Debug("searched backend logs")

	return hits, nil
}

func parseDelivery(recipient, message string, ts time.Time) Delivery {
	lower := strings.ToLower(message)

	d := Delivery{
		Recipient: recipient,
		Kind:      KindOther,
		Sent:      strings.Contains(lower, strings.ToLower(sentMarker)),
		Time:      ts,
	}

	switch {
	case strings.Contains(lower, "welcome"):
		d.Kind = KindWelcome
	case strings.Contains(lower, "reset"):
		d.Kind = KindPasswordReset
	}

	for _, p := range errorPatterns {
		if strings.Contains(lower, p) {
			d.Error = message
			d.Sent = false
			break
		}
	}

	return d
}
