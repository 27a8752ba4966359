// Package ledger maintains the hourly residual-caffeine ledger.
//
// Each intake superposes its decay curve onto the hourly buckets inside the
// decay horizon; edits and deletes retract the same curve. Buckets hold the
// signed running sum, so retraction is exact up to float rounding; every read
// clamps at zero. ClampWrite restores the legacy behavior of clamping the
// stored sum on retraction, which can erase residual owed to other intakes
// sharing the bucket.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/decay"
	"github.com/lazypower/halflife/internal/store"
	"github.com/sirupsen/logrus"
)

// ClampMode selects where negative residuals are cut to zero.
type ClampMode string

const (
	ClampRead  ClampMode = "read"
	ClampWrite ClampMode = "write"
)

// ParseClampMode accepts "read", "write" or "" (read).
func ParseClampMode(s string) (ClampMode, error) {
	switch ClampMode(s) {
	case "", ClampRead:
		return ClampRead, nil
	case ClampWrite:
		return ClampWrite, nil
	}
	return "", fmt.Errorf("unknown clamp mode %q", s)
}

// Point is the residual at the start of one hour.
type Point struct {
	At         time.Time `json:"at"`
	ResidualMg float64   `json:"residual_mg"`
}

// Ledger applies and retracts intake contributions. It holds no state of its
// own; every call runs against the Queries it is given so callers control the
// transaction boundary.
type Ledger struct {
	model *decay.Model
	loc   *time.Location
	clamp ClampMode
	log   logrus.FieldLogger
}

// New builds a Ledger. loc defines calendar hours and dates for buckets.
func New(model *decay.Model, loc *time.Location, clamp ClampMode, log logrus.FieldLogger) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	if clamp == "" {
		clamp = ClampRead
	}
	return &Ledger{model: model, loc: loc, clamp: clamp, log: log}
}

// Location returns the calendar location buckets are keyed in.
func (l *Ledger) Location() *time.Location { return l.loc }

// HourOf returns the start of the local wall-clock hour containing t.
func (l *Ledger) HourOf(t time.Time) time.Time {
	_, offset := t.In(l.loc).Zone()
	shift := time.Duration(offset) * time.Second
	return t.Add(shift).Truncate(time.Hour).Add(-shift).In(l.loc)
}

func (l *Ledger) key(userID string, at time.Time) store.ResidualBucket {
	local := at.In(l.loc)
	return store.ResidualBucket{
		UserID: userID,
		At:     at,
		Date:   local.Format("2006-01-02"),
		Hour:   local.Hour(),
	}
}

// Apply superposes a dose onto the buckets at offsets 0..horizon from the
// intake hour. The contribution at offset k is the dose decayed for k hours.
// It returns the number of buckets written.
func (l *Ledger) Apply(ctx context.Context, q *store.Queries, userID string, intakeTime time.Time, doseMg float64) (int, error) {
	anchor := l.HourOf(intakeTime)
	horizon := l.model.HorizonHours()
	for k := 0; k <= horizon; k++ {
		at := anchor.Add(time.Duration(k) * time.Hour)
		contribution := l.model.Contribution(doseMg, float64(k))
		if err := q.AddToBucket(ctx, l.key(userID, at), contribution); err != nil {
			return k, fmt.Errorf("apply offset %d: %w", k, err)
		}
	}
	return horizon + 1, nil
}

// Retract removes a previously applied dose. It walks the existing buckets in
// the dose's horizon and subtracts the contribution each one received.
// It returns the number of buckets written.
func (l *Ledger) Retract(ctx context.Context, q *store.Queries, userID string, prevTime time.Time, prevDoseMg float64) (int, error) {
	anchor := l.HourOf(prevTime)
	end := anchor.Add(time.Duration(l.model.HorizonHours()) * time.Hour)

	buckets, err := q.ListBuckets(ctx, userID, anchor, end)
	if err != nil {
		return 0, fmt.Errorf("retract scan: %w", err)
	}

	written := 0
	for _, b := range buckets {
		offset := b.At.Sub(anchor).Hours()
		contribution := l.model.Contribution(prevDoseMg, offset)
		if contribution == 0 {
			continue
		}
		next := b.ResidualMg - contribution
		if l.clamp == ClampWrite && next < 0 {
			if l.log != nil {
				l.log.WithFields(logrus.Fields{
					"user_id":   userID,
					"bucket_at": b.At,
					"stored":    b.ResidualMg,
					"retracted": contribution,
				}).Warn("ledger: clamped bucket on retract")
			}
			next = 0
		}
		if err := q.SetBucketResidual(ctx, b.ID, next); err != nil {
			return written, fmt.Errorf("retract bucket %s: %w", b.At.Format(time.RFC3339), err)
		}
		written++
	}
	return written, nil
}

// At returns the residual in the bucket for the hour containing t.
// A missing bucket means nothing has decayed into that hour: zero.
func (l *Ledger) At(ctx context.Context, q *store.Queries, userID string, t time.Time) (float64, error) {
	b, err := q.GetBucket(ctx, userID, l.HourOf(t))
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return clamp(b.ResidualMg), nil
}

// Latest returns the most recent bucket starting at or before now.
// ok is false when the user has no bucket that early.
func (l *Ledger) Latest(ctx context.Context, q *store.Queries, userID string, now time.Time) (p Point, ok bool, err error) {
	b, err := q.LatestBucket(ctx, userID, now)
	if err != nil {
		return Point{}, false, err
	}
	if b == nil {
		return Point{}, false, nil
	}
	return Point{At: b.At.In(l.loc), ResidualMg: clamp(b.ResidualMg)}, true, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
