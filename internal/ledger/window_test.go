package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAlwaysFull(t *testing.T) {
	l, db := testLedger(t, ClampRead)
	ctx := context.Background()

	// No data at all.
	points, err := l.Window(ctx, db.Q(), "u1", at(12), DefaultRadiusHours)
	require.NoError(t, err)
	require.Len(t, points, 35)
	for _, p := range points {
		assert.Equal(t, 0.0, p.ResidualMg)
	}
	assert.True(t, points[0].At.Equal(at(12-17)))
	assert.True(t, points[34].At.Equal(at(12+17)))
}

func TestWindowSparse(t *testing.T) {
	l, db := testLedger(t, ClampRead)
	ctx := context.Background()

	_, err := l.Apply(ctx, db.Q(), "u1", at(8), 150)
	require.NoError(t, err)

	points, err := l.Window(ctx, db.Q(), "u1", at(12).Add(40*time.Minute), DefaultRadiusHours)
	require.NoError(t, err)
	require.Len(t, points, 35)

	for i, p := range points {
		if i > 0 {
			assert.Equal(t, time.Hour, p.At.Sub(points[i-1].At))
		}
		switch {
		case p.At.Before(at(8)):
			assert.Equal(t, 0.0, p.ResidualMg, "before intake at %s", p.At)
		case p.At.Equal(at(13)):
			assert.InDelta(t, 75.0, p.ResidualMg, 1e-9)
		}
	}
}

func TestWindowRadius(t *testing.T) {
	l, db := testLedger(t, ClampRead)
	ctx := context.Background()

	points, err := l.Window(ctx, db.Q(), "u1", at(12), 0)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, err = l.Window(ctx, db.Q(), "u1", at(12), -1)
	assert.Error(t, err)
}
