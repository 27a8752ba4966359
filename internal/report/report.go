// Package report assembles user-facing reports from the residual ledger and
// the intake rollups.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/ledger"
	"github.com/lazypower/halflife/internal/rollup"
	"github.com/lazypower/halflife/internal/store"
	"github.com/shopspring/decimal"
)

// Assembler builds reports. It only reads, so it runs outside the per-user
// write lock and may observe a write in progress.
type Assembler struct {
	db     *store.DB
	ledger *ledger.Ledger
	rollup *rollup.Rollup
	th     Thresholds
	radius int
}

// New builds an Assembler. radiusHours sizes the daily residual window.
func New(db *store.DB, l *ledger.Ledger, r *rollup.Rollup, th Thresholds, radiusHours int) *Assembler {
	if radiusHours <= 0 {
		radiusHours = ledger.DefaultRadiusHours
	}
	return &Assembler{db: db, ledger: l, rollup: r, th: th, radius: radiusHours}
}

// Thresholds returns the thresholds in use.
func (a *Assembler) Thresholds() Thresholds { return a.th }

// Radius returns the default residual window radius in hours.
func (a *Assembler) Radius() int { return a.radius }

// Location returns the calendar location reports are built in.
func (a *Assembler) Location() *time.Location { return a.ledger.Location() }

// Window returns the hourly residual curve from center-radius to
// center+radius, zero-filled.
func (a *Assembler) Window(ctx context.Context, userID string, center time.Time, radiusHours int) ([]ledger.Point, error) {
	return a.ledger.Window(ctx, a.db.Q(), userID, center, radiusHours)
}

// Current is the latest-known residual and its guidance.
type Current struct {
	At         *time.Time `json:"at,omitempty"`
	ResidualMg float64    `json:"residual_mg"`
	Guide      Guide      `json:"guide"`
}

// Daily is the day report: intake against the limit, the residual curve
// around the day, and guidance for right now.
type Daily struct {
	UserID                string         `json:"user_id"`
	Date                  string         `json:"date"`
	DailyCaffeineIntakeMg float64        `json:"daily_caffeine_intake_mg"`
	DailyLimitMg          float64        `json:"daily_limit_mg"`
	IntakeRate            float64        `json:"intake_rate"`
	OverLimit             bool           `json:"over_limit"`
	SleepSensitiveMg      float64        `json:"sleep_sensitive_mg"`
	Residuals             []ledger.Point `json:"residuals"`
	Current               Current        `json:"current"`
}

// DayEntry is one day of a weekly report.
type DayEntry struct {
	Date       string  `json:"date"`
	TotalMg    float64 `json:"total_mg"`
	IntakeRate float64 `json:"intake_rate"`
	OverLimit  bool    `json:"over_limit"`
}

// PeriodEntry is one week or month inside a coarser report.
type PeriodEntry struct {
	Key           string  `json:"key"`
	TotalMg       float64 `json:"total_mg"`
	AverageMg     float64 `json:"average_mg"`
	OverLimitDays int     `json:"over_limit_days,omitempty"`
}

type Weekly struct {
	UserID         string     `json:"user_id"`
	Week           string     `json:"week"`
	Start          string     `json:"start"`
	TotalMg        float64    `json:"total_mg"`
	DailyAverageMg float64    `json:"daily_average_mg"`
	OverLimitDays  int        `json:"over_limit_days"`
	DailyLimitMg   float64    `json:"daily_limit_mg"`
	Days           []DayEntry `json:"days"`
}

type Monthly struct {
	UserID          string        `json:"user_id"`
	Month           string        `json:"month"`
	TotalMg         float64       `json:"total_mg"`
	WeeklyAverageMg float64       `json:"weekly_average_mg"`
	Weeks           []PeriodEntry `json:"weeks"`
}

type Yearly struct {
	UserID           string        `json:"user_id"`
	Year             string        `json:"year"`
	TotalMg          float64       `json:"total_mg"`
	MonthlyAverageMg float64       `json:"monthly_average_mg"`
	Months           []PeriodEntry `json:"months"`
}

// Current returns the latest-known residual at now: the most recent bucket
// that starts no later than now.
func (a *Assembler) Current(ctx context.Context, userID string, now time.Time) (*Current, error) {
	p, ok, err := a.ledger.Latest(ctx, a.db.Q(), userID, now)
	if err != nil {
		return nil, fmt.Errorf("latest residual: %w", err)
	}
	c := &Current{Guide: a.th.GuideFor(0)}
	if ok {
		at := p.At
		c.At = &at
		c.ResidualMg = p.ResidualMg
		c.Guide = a.th.GuideFor(p.ResidualMg)
	}
	return c, nil
}

// Daily builds the report for the calendar day containing day. The residual
// window is centered on noon of that day.
func (a *Assembler) Daily(ctx context.Context, userID string, day, now time.Time) (*Daily, error) {
	date := a.rollup.DateOf(day)
	loc := a.ledger.Location()
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc)

	total, err := a.rollup.Day(ctx, a.db.Q(), userID, noon)
	if err != nil {
		return nil, fmt.Errorf("daily total: %w", err)
	}
	points, err := a.ledger.Window(ctx, a.db.Q(), userID, noon, a.radius)
	if err != nil {
		return nil, fmt.Errorf("residual window: %w", err)
	}
	cur, err := a.Current(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	intake := total.InexactFloat64()
	return &Daily{
		UserID:                userID,
		Date:                  date.Format("2006-01-02"),
		DailyCaffeineIntakeMg: intake,
		DailyLimitMg:          a.th.DailyLimitMg,
		IntakeRate:            a.rate(intake),
		OverLimit:             intake > a.th.DailyLimitMg,
		SleepSensitiveMg:      a.th.SleepSensitiveMg,
		Residuals:             points,
		Current:               *cur,
	}, nil
}

// Weekly builds the report for the ISO week containing day.
func (a *Assembler) Weekly(ctx context.Context, userID string, day time.Time) (*Weekly, error) {
	w, err := a.rollup.Week(ctx, a.db.Q(), userID, day)
	if err != nil {
		return nil, fmt.Errorf("week rollup: %w", err)
	}
	days := make([]DayEntry, len(w.Days))
	for i, d := range w.Days {
		v := d.TotalMg.InexactFloat64()
		days[i] = DayEntry{Date: d.Date, TotalMg: v, IntakeRate: a.rate(v), OverLimit: v > a.th.DailyLimitMg}
	}
	return &Weekly{
		UserID:         userID,
		Week:           w.Key,
		Start:          w.Start.Format("2006-01-02"),
		TotalMg:        w.TotalMg.InexactFloat64(),
		DailyAverageMg: w.AverageMg.InexactFloat64(),
		OverLimitDays:  w.OverLimitDays,
		DailyLimitMg:   a.th.DailyLimitMg,
		Days:           days,
	}, nil
}

// Monthly builds the report for a calendar month.
func (a *Assembler) Monthly(ctx context.Context, userID string, year int, month time.Month) (*Monthly, error) {
	m, err := a.rollup.Month(ctx, a.db.Q(), userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("month rollup: %w", err)
	}
	return &Monthly{
		UserID:          userID,
		Month:           m.Key,
		TotalMg:         m.TotalMg.InexactFloat64(),
		WeeklyAverageMg: m.AverageMg.InexactFloat64(),
		Weeks:           entries(m.Weeks),
	}, nil
}

// Yearly builds the report for a calendar year.
func (a *Assembler) Yearly(ctx context.Context, userID string, year int) (*Yearly, error) {
	y, err := a.rollup.Year(ctx, a.db.Q(), userID, year)
	if err != nil {
		return nil, fmt.Errorf("year rollup: %w", err)
	}
	return &Yearly{
		UserID:           userID,
		Year:             y.Key,
		TotalMg:          y.TotalMg.InexactFloat64(),
		MonthlyAverageMg: y.AverageMg.InexactFloat64(),
		Months:           entries(y.Months),
	}, nil
}

// rate is intake as a percentage of the daily limit, to one decimal place.
func (a *Assembler) rate(intakeMg float64) float64 {
	if a.th.DailyLimitMg <= 0 {
		return 0
	}
	return decimal.NewFromFloat(intakeMg * 100 / a.th.DailyLimitMg).Round(1).InexactFloat64()
}

func entries(periods []rollup.PeriodTotal) []PeriodEntry {
	out := make([]PeriodEntry, len(periods))
	for i, p := range periods {
		out[i] = PeriodEntry{
			Key:           p.Key,
			TotalMg:       p.TotalMg.InexactFloat64(),
			AverageMg:     p.AverageMg.InexactFloat64(),
			OverLimitDays: p.OverLimitDays,
		}
	}
	return out
}
