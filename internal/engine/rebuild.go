package engine

import (
	"context"
	"time"

	"github.com/lazypower/halflife/internal/events"
	"github.com/lazypower/halflife/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RebuildResult summarizes a replay.
type RebuildResult struct {
	UserID         string `json:"user_id"`
	Intakes        int    `json:"intakes"`
	BucketsDropped int    `json:"buckets_dropped"`
	BucketWrites   int    `json:"bucket_writes"`
}

// Rebuild discards a user's residual buckets and statistics and replays every
// stored intake in intake-time order. It repairs ledgers that drifted under
// the write-clamp mode or an interrupted import.
func (e *Engine) Rebuild(ctx context.Context, userID string) (res *RebuildResult, err error) {
	start := time.Now()
	defer func() { e.finish("rebuild", start, err) }()

	opID := newOpID()
	log := e.Log.WithFields(logrus.Fields{"op_id": opID, "user_id": userID})

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res = &RebuildResult{UserID: userID}
	err = e.DB.InTx(ctx, func(q *store.Queries) error {
		if err := e.requireUser(ctx, q, userID); err != nil {
			return err
		}
		dropped, err := q.DeleteUserBuckets(ctx, userID)
		if err != nil {
			return err
		}
		res.BucketsDropped = dropped
		if err := q.DeleteUserStatistics(ctx, userID); err != nil {
			return err
		}

		intakes, err := q.AllIntakes(ctx, userID)
		if err != nil {
			return err
		}
		for _, ev := range intakes {
			n, err := e.Ledger.Apply(ctx, q, userID, ev.IntakeTime, ev.DoseMg)
			if err != nil {
				return err
			}
			res.BucketWrites += n
			if err := e.Rollup.Delta(ctx, q, userID, ev.IntakeTime, decimal.NewFromFloat(ev.DoseMg)); err != nil {
				return err
			}
		}
		res.Intakes = len(intakes)
		return nil
	})
	if err = classify("rebuild", err); err != nil {
		log.WithError(err).Warn("rebuild failed")
		return nil, err
	}

	e.Metrics.BucketWrites.WithLabelValues("apply").Add(float64(res.BucketWrites))
	log.WithFields(logrus.Fields{
		"intakes":         res.Intakes,
		"buckets_dropped": res.BucketsDropped,
	}).Info("ledger rebuilt")

	e.publish(ctx, opID, events.Event{Kind: events.LedgerRebuilt, UserID: userID})
	return res, nil
}
