package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Kind: IntakeCreated}))
	assert.NoError(t, p.Close())
}

func TestSubject(t *testing.T) {
	n := &NATS{prefix: "halflife"}
	assert.Equal(t, "halflife.intake.created", n.Subject(IntakeCreated))
	assert.Equal(t, "halflife.ledger.rebuilt", n.Subject(LedgerRebuilt))
}

func TestEventJSON(t *testing.T) {
	at := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	prev := 150.0
	data, err := json.Marshal(Event{
		ID:         "op-1",
		Kind:       IntakeUpdated,
		UserID:     "u1",
		IntakeID:   7,
		IntakeTime: &at,
		DoseMg:     100,
		PrevDoseMg: &prev,
		OccurredAt: at,
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "intake.updated", m["kind"])
	assert.Equal(t, 150.0, m["prev_dose_mg"])
	assert.NotContains(t, m, "prev_intake_time")
}

func TestConnectNATSFails(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1", "")
	assert.Error(t, err)
}
