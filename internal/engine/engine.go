package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lazypower/halflife/internal/events"
	"github.com/lazypower/halflife/internal/ledger"
	"github.com/lazypower/halflife/internal/lock"
	"github.com/lazypower/halflife/internal/logging"
	"github.com/lazypower/halflife/internal/metrics"
	"github.com/lazypower/halflife/internal/rollup"
	"github.com/lazypower/halflife/internal/store"
	"github.com/sirupsen/logrus"
)

// Engine owns the intake write path. Each create, update or delete holds the
// user's lock and runs its event row, ledger and rollup writes in a single
// transaction, so a failure leaves nothing half-applied.
type Engine struct {
	DB      *store.DB
	Ledger  *ledger.Ledger
	Rollup  *rollup.Rollup
	Locker  lock.Locker
	Events  events.Publisher
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger

	validate *validator.Validate
}

// New creates an Engine with an in-process lock, no event publishing and a
// private metrics registry.
func New(db *store.DB, l *ledger.Ledger, r *rollup.Rollup, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		DB:       db,
		Ledger:   l,
		Rollup:   r,
		Locker:   lock.NewLocal(),
		Events:   events.Noop{},
		Metrics:  metrics.New(),
		Log:      log,
		validate: validator.New(),
	}
}

// SetLocker replaces the per-user lock, e.g. with a Redis-backed one.
func (e *Engine) SetLocker(l lock.Locker) {
	e.Locker = l
}

// SetPublisher configures where committed changes are announced.
func (e *Engine) SetPublisher(p events.Publisher) {
	e.Events = p
}

// SetMetrics shares a registry with the HTTP server.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.Metrics = m
}

// lockUser takes the user's write lock and records the wait.
func (e *Engine) lockUser(ctx context.Context, userID string) (func(), error) {
	start := time.Now()
	unlock, err := e.Locker.Lock(ctx, lock.UserKey(userID))
	e.Metrics.LockWait.Observe(time.Since(start).Seconds())
	return unlock, err
}

// finish records the outcome of one mutation.
func (e *Engine) finish(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	case IsValidation(err):
		result = "invalid"
	default:
		result = "error"
	}
	e.Metrics.IntakeOps.WithLabelValues(op, result).Inc()
	e.Metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// publish announces a committed change. Failures are logged and counted only.
func (e *Engine) publish(ctx context.Context, opID string, ev events.Event) {
	ev.ID = opID
	ev.OccurredAt = time.Now().UTC()
	if err := e.Events.Publish(ctx, ev); err != nil {
		logging.LogError(e.Log, "engine", "publish", "event not delivered", ev.Kind, err)
		e.Metrics.Published.WithLabelValues("error").Inc()
		return
	}
	e.Metrics.Published.WithLabelValues("ok").Inc()
}

func newOpID() string {
	return uuid.New().String()
}

func (e *Engine) requireUser(ctx context.Context, q *store.Queries, userID string) error {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return &NotFoundError{Kind: "user", ID: userID}
	}
	return nil
}

func (e *Engine) requireDrink(ctx context.Context, q *store.Queries, drinkID string) error {
	d, err := q.GetDrink(ctx, drinkID)
	if err != nil {
		return err
	}
	if d == nil {
		return &NotFoundError{Kind: "drink", ID: drinkID}
	}
	return nil
}
