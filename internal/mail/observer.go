// Package mail confirms email delivery of the backend under test without
// scraping log files, and sends test messages through an SMTP server.
package mail

import (
	"context"
	"strings"
	"sync"
	"time"
)

type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password-reset"
	KindOther         Kind = "other"
)

// Delivery is a single email the backend attempted to send.
type Delivery struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject,omitempty"`
	Kind      Kind      `json:"kind"`
	Sent      bool      `json:"sent"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// DeliveryObserver reports emails sent by the backend under test.
type DeliveryObserver interface {
	// Deliveries returns the delivery attempts to recipient since the given time.
	Deliveries(ctx context.Context, recipient string, since time.Time) ([]Delivery, error)
	// Errors returns the email errors (e.g. SMTP authentication failures)
	// observed since the given time.
	Errors(ctx context.Context, since time.Time) ([]string, error)
}

// Outbox is an in-memory DeliveryObserver. Whatever sends email on behalf of
// the backend adds its attempts to it.
type Outbox struct {
	mu         sync.Mutex
	deliveries []Delivery
}

var _ DeliveryObserver = &Outbox{}

func NewOutbox() *Outbox {
	return &Outbox{deliveries: []Delivery{}}
}

// Add records a delivery attempt. A zero Time is set to now.
func (o *Outbox) Add(d Delivery) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.deliveries = append(o.deliveries, d)
}

func (o *Outbox) Deliveries(_ context.Context, recipient string, since time.Time) ([]Delivery, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	res := []Delivery{}

	for _, d := range o.deliveries {
		if d.Time.Before(since) || !strings.EqualFold(d.Recipient, recipient) {
			continue
		}
		res = append(res, d)
	}

	return res, nil
}

func (o *Outbox) Errors(_ context.Context, since time.Time) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	res := []string{}

	for _, d := range o.deliveries {
		if d.Time.Before(since) || d.Error == "" {
			continue
		}
		res = append(res, d.Recipient+": "+d.Error)
	}

	return res, nil
}

// Sent returns the successful deliveries of the given kind.
func Sent(deliveries []Delivery, kind Kind) []Delivery {
	res := []Delivery{}

	for _, d := range deliveries {
		if d.Sent && (kind == "" || d.Kind == kind) {
			res = append(res, d)
		}
	}

	return res
}
