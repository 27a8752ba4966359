// Package events publishes committed intake changes to downstream systems
// (notification delivery, recommendation services).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Event kinds.
const (
	IntakeCreated = "intake.created"
	IntakeUpdated = "intake.updated"
	IntakeDeleted = "intake.deleted"
	LedgerRebuilt = "ledger.rebuilt"
)

// Event describes one committed mutation.
type Event struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	UserID         string     `json:"user_id"`
	IntakeID       int64      `json:"intake_id,omitempty"`
	IntakeTime     *time.Time `json:"intake_time,omitempty"`
	DoseMg         float64    `json:"dose_mg,omitempty"`
	PrevIntakeTime *time.Time `json:"prev_intake_time,omitempty"`
	PrevDoseMg     *float64   `json:"prev_dose_mg,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Publisher delivers events. Publish is called after commit; an error is
// logged by the caller and never undoes the mutation.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// NATS publishes events as JSON on <prefix>.<kind>.
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// ConnectNATS dials url. Reconnects are unlimited so a broker restart does
// not take the API down.
func ConnectNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("halflife"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "halflife"
	}
	return &NATS{nc: nc, prefix: prefix}, nil
}

// Subject returns the subject an event of kind is published on.
func (n *NATS) Subject(kind string) string {
	return n.prefix + "." + kind
}

func (n *NATS) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(n.Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.nc.Drain()
}
