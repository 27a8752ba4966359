package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/store"
	"github.com/shopspring/decimal"
)

// DayTotal is one day of intake.
type DayTotal struct {
	Date    string
	TotalMg decimal.Decimal
}

// PeriodTotal is a week, month or year aggregate. Periods with no stored row
// come back zero-valued rather than missing.
type PeriodTotal struct {
	Key           string
	TotalMg       decimal.Decimal
	AverageMg     decimal.Decimal
	OverLimitDays int
}

// WeekSummary covers one ISO week with all seven days.
type WeekSummary struct {
	PeriodTotal
	Start time.Time
	Days  []DayTotal
}

// MonthSummary covers one calendar month and every ISO week touching it.
type MonthSummary struct {
	PeriodTotal
	Weeks []PeriodTotal
}

// YearSummary covers one calendar year and all twelve months.
type YearSummary struct {
	PeriodTotal
	Months []PeriodTotal
}

// Day returns the total for the calendar date containing t.
func (r *Rollup) Day(ctx context.Context, q *store.Queries, userID string, t time.Time) (decimal.Decimal, error) {
	d, err := q.GetDaily(ctx, userID, r.DateOf(t).Format(dateLayout))
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, nil
	}
	return d.TotalMg, nil
}

// Week returns the ISO week containing t.
func (r *Rollup) Week(ctx context.Context, q *store.Queries, userID string, t time.Time) (*WeekSummary, error) {
	date := r.DateOf(t)
	start := WeekStart(date)
	total, err := r.period(ctx, q, userID, store.KindWeek, WeekKey(date))
	if err != nil {
		return nil, err
	}

	stats, err := q.ListDaily(ctx, userID, start.Format(dateLayout), start.AddDate(0, 0, 6).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("week days: %w", err)
	}
	byDate := make(map[string]decimal.Decimal, len(stats))
	for _, s := range stats {
		byDate[s.Date] = s.TotalMg
	}

	days := make([]DayTotal, 7)
	for i := range days {
		d := start.AddDate(0, 0, i).Format(dateLayout)
		days[i] = DayTotal{Date: d, TotalMg: byDate[d]}
	}
	return &WeekSummary{PeriodTotal: total, Start: start, Days: days}, nil
}

// Month returns the given calendar month.
func (r *Rollup) Month(ctx context.Context, q *store.Queries, userID string, year int, month time.Month) (*MonthSummary, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	total, err := r.period(ctx, q, userID, store.KindMonth, MonthKey(first))
	if err != nil {
		return nil, err
	}

	var weeks []PeriodTotal
	last := first.AddDate(0, 1, -1)
	for w := WeekStart(first); !w.After(last); w = w.AddDate(0, 0, 7) {
		pt, err := r.period(ctx, q, userID, store.KindWeek, WeekKey(w))
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, pt)
	}
	return &MonthSummary{PeriodTotal: total, Weeks: weeks}, nil
}

// Year returns the given calendar year with all twelve months.
func (r *Rollup) Year(ctx context.Context, q *store.Queries, userID string, year int) (*YearSummary, error) {
	total, err := r.period(ctx, q, userID, store.KindYear, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, err
	}

	months := make([]PeriodTotal, 12)
	for i := range months {
		key := MonthKey(time.Date(year, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC))
		if months[i], err = r.period(ctx, q, userID, store.KindMonth, key); err != nil {
			return nil, err
		}
	}
	return &YearSummary{PeriodTotal: total, Months: months}, nil
}

func (r *Rollup) period(ctx context.Context, q *store.Queries, userID, kind, key string) (PeriodTotal, error) {
	row, err := q.GetRollup(ctx, userID, kind, key)
	if err != nil {
		return PeriodTotal{}, err
	}
	if row == nil {
		return PeriodTotal{Key: key}, nil
	}
	return PeriodTotal{
		Key:           key,
		TotalMg:       row.TotalMg,
		AverageMg:     row.AverageMg,
		OverLimitDays: row.OverLimitDays,
	}, nil
}
