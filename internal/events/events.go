// Package events publishes alert lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
)

// Subjects published by the service.
const (
	SubjectAlertRun     = "alerts.run"
	SubjectAlertCreated = "alerts.created"
	SubjectAlertUpdated = "alerts.updated"
	SubjectAlertDeleted = "alerts.deleted"
)

// Event is the envelope written to every subject.
type Event struct {
	ID      string          `json:"id"`
	Subject string          `json:"subject"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Drain() error
	Close()
}

// Config holds NATS settings.
type Config struct {
	URL    string
	Prefix string
	Name   string
}

// NATSPublisher publishes JSON events to NATS.
type NATSPublisher struct {
	conn   conn
	prefix string
}

// NewNATSPublisher connects to the server at cfg.URL.
func NewNATSPublisher(cfg Config) (*NATSPublisher, error) {
	name := cfg.Name
	if name == "" {
		name = "reportwatch"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: nc, prefix: cfg.Prefix}, nil
}

func newPublisherWithConn(c conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix}
}

// Publish wraps payload in an Event and sends it on prefix+subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(subject, payload, time.Now())
	if err != nil {
		return err
	}
	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}
	if err := p.conn.Publish(full, data); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "failure").Inc()
		return fmt.Errorf("publish %s: %w", full, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "success").Inc()
	return nil
}

// Ping reports whether the NATS connection is up.
func (p *NATSPublisher) Ping(_ context.Context) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}

// Encode builds the wire form of an event.
func Encode(subject string, payload any, at time.Time) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return json.Marshal(Event{
		ID:      uuid.New().String(),
		Subject: subject,
		Time:    at.UTC(),
		Data:    body,
	})
}

// Noop discards every event. It is used when NATS is not configured.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, string, any) error { return nil }

// Close does nothing.
func (Noop) Close() {}
