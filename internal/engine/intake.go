package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/lazypower/halflife/internal/events"
	"github.com/lazypower/halflife/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateIntakeInput is a new intake. ServingCount defaults to 1.
type CreateIntakeInput struct {
	UserID       string    `validate:"required"`
	DrinkID      string    `validate:"required"`
	IntakeTime   time.Time `validate:"required"`
	DoseMg       *float64  `validate:"required,gte=0"`
	ServingCount int       `validate:"omitempty,gte=1"`
}

// UpdateIntakeInput is a partial edit. Nil fields are left unchanged.
type UpdateIntakeInput struct {
	DrinkID      *string `validate:"omitempty,min=1"`
	IntakeTime   *time.Time
	DoseMg       *float64 `validate:"omitempty,gte=0"`
	ServingCount *int     `validate:"omitempty,gte=1"`
}

// Empty reports whether the edit changes nothing.
func (in UpdateIntakeInput) Empty() bool {
	return in.DrinkID == nil && in.IntakeTime == nil && in.DoseMg == nil && in.ServingCount == nil
}

// CreateIntake records an intake, superposes it onto the residual ledger and
// adds its dose to the rollups.
func (e *Engine) CreateIntake(ctx context.Context, in CreateIntakeInput) (ev *store.IntakeEvent, err error) {
	start := time.Now()
	defer func() { e.finish("create", start, err) }()

	if err := e.validate.Struct(in); err != nil {
		return nil, &ValidationError{Fields: validationFields(err)}
	}
	if in.ServingCount == 0 {
		in.ServingCount = 1
	}

	opID := newOpID()
	log := e.Log.WithFields(logrus.Fields{"op_id": opID, "user_id": in.UserID})

	unlock, err := e.lockUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	applied := 0
	err = e.DB.InTx(ctx, func(q *store.Queries) error {
		if err := e.requireUser(ctx, q, in.UserID); err != nil {
			return err
		}
		if err := e.requireDrink(ctx, q, in.DrinkID); err != nil {
			return err
		}

		ev = &store.IntakeEvent{
			UserID:       in.UserID,
			DrinkID:      in.DrinkID,
			IntakeTime:   in.IntakeTime.UTC(),
			DoseMg:       *in.DoseMg,
			ServingCount: in.ServingCount,
		}
		if err := q.CreateIntake(ctx, ev); err != nil {
			return err
		}

		n, err := e.Ledger.Apply(ctx, q, ev.UserID, ev.IntakeTime, ev.DoseMg)
		if err != nil {
			return err
		}
		applied = n
		return e.Rollup.Delta(ctx, q, ev.UserID, ev.IntakeTime, decimal.NewFromFloat(ev.DoseMg))
	})
	if err = classify("create intake", err); err != nil {
		log.WithError(err).Warn("create intake failed")
		return nil, err
	}

	e.Metrics.BucketWrites.WithLabelValues("apply").Add(float64(applied))
	log.WithFields(logrus.Fields{
		"intake_id": ev.ID,
		"dose_mg":   ev.DoseMg,
		"buckets":   applied,
	}).Info("intake created")

	at := ev.IntakeTime
	e.publish(ctx, opID, events.Event{
		Kind:       events.IntakeCreated,
		UserID:     ev.UserID,
		IntakeID:   ev.ID,
		IntakeTime: &at,
		DoseMg:     ev.DoseMg,
	})
	return ev, nil
}

// UpdateIntake applies a partial edit. The pre-edit contribution is retracted
// from the ledger and the rollups, then the edited one is applied.
func (e *Engine) UpdateIntake(ctx context.Context, id int64, in UpdateIntakeInput) (ev *store.IntakeEvent, err error) {
	start := time.Now()
	defer func() { e.finish("update", start, err) }()

	if err := e.validate.Struct(in); err != nil {
		return nil, &ValidationError{Fields: validationFields(err)}
	}

	// Find the owner first so the lock is taken before the transactional re-read.
	owner, err := e.DB.Q().GetIntake(ctx, id)
	if err != nil {
		return nil, classify("update intake", err)
	}
	if owner == nil {
		return nil, &NotFoundError{Kind: "intake", ID: strconv.FormatInt(id, 10)}
	}

	opID := newOpID()
	log := e.Log.WithFields(logrus.Fields{"op_id": opID, "user_id": owner.UserID, "intake_id": id})

	unlock, err := e.lockUser(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var prevTime time.Time
	var prevDose float64
	retracted, applied := 0, 0
	err = e.DB.InTx(ctx, func(q *store.Queries) error {
		cur, err := q.GetIntake(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return &NotFoundError{Kind: "intake", ID: strconv.FormatInt(id, 10)}
		}
		prevTime, prevDose = cur.IntakeTime, cur.DoseMg

		if in.DrinkID != nil {
			if err := e.requireDrink(ctx, q, *in.DrinkID); err != nil {
				return err
			}
			cur.DrinkID = *in.DrinkID
		}
		if in.IntakeTime != nil {
			cur.IntakeTime = in.IntakeTime.UTC()
		}
		if in.DoseMg != nil {
			cur.DoseMg = *in.DoseMg
		}
		if in.ServingCount != nil {
			cur.ServingCount = *in.ServingCount
		}
		if err := q.UpdateIntake(ctx, cur); err != nil {
			return err
		}

		if retracted, err = e.Ledger.Retract(ctx, q, cur.UserID, prevTime, prevDose); err != nil {
			return err
		}
		if applied, err = e.Ledger.Apply(ctx, q, cur.UserID, cur.IntakeTime, cur.DoseMg); err != nil {
			return err
		}
		if err := e.Rollup.Delta(ctx, q, cur.UserID, prevTime, decimal.NewFromFloat(prevDose).Neg()); err != nil {
			return err
		}
		if err := e.Rollup.Delta(ctx, q, cur.UserID, cur.IntakeTime, decimal.NewFromFloat(cur.DoseMg)); err != nil {
			return err
		}
		ev = cur
		return nil
	})
	if err = classify("update intake", err); err != nil {
		log.WithError(err).Warn("update intake failed")
		return nil, err
	}

	e.Metrics.BucketWrites.WithLabelValues("retract").Add(float64(retracted))
	e.Metrics.BucketWrites.WithLabelValues("apply").Add(float64(applied))
	log.WithFields(logrus.Fields{
		"prev_dose_mg": prevDose,
		"dose_mg":      ev.DoseMg,
		"buckets":      retracted + applied,
	}).Info("intake updated")

	at := ev.IntakeTime
	e.publish(ctx, opID, events.Event{
		Kind:           events.IntakeUpdated,
		UserID:         ev.UserID,
		IntakeID:       ev.ID,
		IntakeTime:     &at,
		DoseMg:         ev.DoseMg,
		PrevIntakeTime: &prevTime,
		PrevDoseMg:     &prevDose,
	})
	return ev, nil
}

// DeleteIntake retracts an intake from the ledger and rollups and removes it.
func (e *Engine) DeleteIntake(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { e.finish("delete", start, err) }()

	owner, err := e.DB.Q().GetIntake(ctx, id)
	if err != nil {
		return classify("delete intake", err)
	}
	if owner == nil {
		return &NotFoundError{Kind: "intake", ID: strconv.FormatInt(id, 10)}
	}

	opID := newOpID()
	log := e.Log.WithFields(logrus.Fields{"op_id": opID, "user_id": owner.UserID, "intake_id": id})

	unlock, err := e.lockUser(ctx, owner.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	var gone *store.IntakeEvent
	retracted := 0
	err = e.DB.InTx(ctx, func(q *store.Queries) error {
		cur, err := q.GetIntake(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return &NotFoundError{Kind: "intake", ID: strconv.FormatInt(id, 10)}
		}
		if retracted, err = e.Ledger.Retract(ctx, q, cur.UserID, cur.IntakeTime, cur.DoseMg); err != nil {
			return err
		}
		if err := e.Rollup.Delta(ctx, q, cur.UserID, cur.IntakeTime, decimal.NewFromFloat(cur.DoseMg).Neg()); err != nil {
			return err
		}
		gone = cur
		return q.DeleteIntake(ctx, id)
	})
	if err = classify("delete intake", err); err != nil {
		log.WithError(err).Warn("delete intake failed")
		return err
	}

	e.Metrics.BucketWrites.WithLabelValues("retract").Add(float64(retracted))
	log.WithFields(logrus.Fields{"dose_mg": gone.DoseMg, "buckets": retracted}).Info("intake deleted")

	at := gone.IntakeTime
	e.publish(ctx, opID, events.Event{
		Kind:       events.IntakeDeleted,
		UserID:     gone.UserID,
		IntakeID:   gone.ID,
		IntakeTime: &at,
		DoseMg:     gone.DoseMg,
	})
	return nil
}

// GetIntake returns one intake.
func (e *Engine) GetIntake(ctx context.Context, id int64) (*store.IntakeEvent, error) {
	ev, err := e.DB.Q().GetIntake(ctx, id)
	if err != nil {
		return nil, classify("get intake", err)
	}
	if ev == nil {
		return nil, &NotFoundError{Kind: "intake", ID: strconv.FormatInt(id, 10)}
	}
	return ev, nil
}

// ListIntakes returns a user's intakes in [from, to).
func (e *Engine) ListIntakes(ctx context.Context, userID string, from, to time.Time) ([]store.IntakeEvent, error) {
	q := e.DB.Q()
	if err := e.requireUser(ctx, q, userID); err != nil {
		return nil, classify("list intakes", err)
	}
	list, err := q.ListIntakes(ctx, userID, from, to)
	if err != nil {
		return nil, classify("list intakes", err)
	}
	return list, nil
}
