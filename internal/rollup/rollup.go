// Package rollup keeps additive intake aggregates per day, ISO week, month
// and year. Every intake create, edit or delete feeds the same signed amount
// through Delta; no row is ever recomputed from the event log except by an
// explicit rebuild.
package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultDailyLimitMg is the recommended adult daily maximum.
const DefaultDailyLimitMg = 400.0

const averagePlaces = 4

var (
	daysPerWeek   = decimal.NewFromInt(7)
	weeksPerMonth = decimal.NewFromInt(4)
	monthsPerYear = decimal.NewFromInt(12)
)

// Rollup applies intake deltas to the statistics tables.
type Rollup struct {
	loc   *time.Location
	limit decimal.Decimal
	log   logrus.FieldLogger
}

// New builds a Rollup. Dates are taken in loc; a day counts against the
// weekly over-limit counter when its total exceeds dailyLimitMg.
func New(loc *time.Location, dailyLimitMg float64, log logrus.FieldLogger) *Rollup {
	if loc == nil {
		loc = time.UTC
	}
	return &Rollup{loc: loc, limit: decimal.NewFromFloat(dailyLimitMg), log: log}
}

// DateOf returns the calendar date of t in the rollup's location.
func (r *Rollup) DateOf(t time.Time) time.Time {
	return civil(t.In(r.loc))
}

// Delta adds amount (negative on edit or delete) to the day containing t and
// to that day's week, month and year.
func (r *Rollup) Delta(ctx context.Context, q *store.Queries, userID string, t time.Time, amount decimal.Decimal) error {
	date := r.DateOf(t)
	day := date.Format(dateLayout)

	if _, err := q.AddDaily(ctx, userID, day, amount); err != nil {
		return fmt.Errorf("daily delta: %w", err)
	}
	if err := r.bumpWeek(ctx, q, userID, date, amount); err != nil {
		return err
	}
	if err := r.bump(ctx, q, userID, store.KindMonth, MonthKey(date), YearKey(date), amount, weeksPerMonth); err != nil {
		return err
	}
	if err := r.bump(ctx, q, userID, store.KindYear, YearKey(date), "", amount, monthsPerYear); err != nil {
		return err
	}

	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"user_id": userID,
			"date":    day,
			"amount":  amount.String(),
		}).Debug("rollup: applied delta")
	}
	return nil
}

func (r *Rollup) bump(ctx context.Context, q *store.Queries, userID, kind, key, parent string, amount, divisor decimal.Decimal) error {
	row, err := q.GetRollup(ctx, userID, kind, key)
	if err != nil {
		return err
	}
	if row == nil {
		row = &store.PeriodRollup{UserID: userID, Kind: kind, Key: key, ParentKey: parent}
	}
	row.TotalMg = row.TotalMg.Add(amount)
	row.AverageMg = row.TotalMg.Div(divisor).Round(averagePlaces)
	if err := q.SaveRollup(ctx, row); err != nil {
		return fmt.Errorf("%s delta: %w", kind, err)
	}
	return nil
}

func (r *Rollup) bumpWeek(ctx context.Context, q *store.Queries, userID string, date time.Time, amount decimal.Decimal) error {
	key := WeekKey(date)
	row, err := q.GetRollup(ctx, userID, store.KindWeek, key)
	if err != nil {
		return err
	}
	if row == nil {
		row = &store.PeriodRollup{UserID: userID, Kind: store.KindWeek, Key: key, ParentKey: weekParent(date)}
	}
	row.TotalMg = row.TotalMg.Add(amount)
	row.AverageMg = row.TotalMg.Div(daysPerWeek).Round(averagePlaces)

	start := WeekStart(date)
	days, err := q.ListDaily(ctx, userID, start.Format(dateLayout), start.AddDate(0, 0, 6).Format(dateLayout))
	if err != nil {
		return fmt.Errorf("week over-limit scan: %w", err)
	}
	row.OverLimitDays = 0
	for _, d := range days {
		if d.TotalMg.GreaterThan(r.limit) {
			row.OverLimitDays++
		}
	}

	if err := q.SaveRollup(ctx, row); err != nil {
		return fmt.Errorf("week delta: %w", err)
	}
	return nil
}
