package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DailyStatistic is a user's total intake for one calendar date.
type DailyStatistic struct {
	ID        int64
	UserID    string
	Date      string
	TotalMg   decimal.Decimal
	UpdatedAt int64
}

// Rollup kinds.
const (
	KindWeek  = "week"
	KindMonth = "month"
	KindYear  = "year"
)

// PeriodRollup is a week, month or year aggregate.
type PeriodRollup struct {
	ID            int64
	UserID        string
	Kind          string
	Key           string // 2026-W42, 2026-10, 2026
	ParentKey     string
	TotalMg       decimal.Decimal
	AverageMg     decimal.Decimal
	OverLimitDays int
	UpdatedAt     int64
}

// AddDaily adds delta to the daily total for (user, date), creating the row
// on first touch, and returns the updated row.
func (q *Queries) AddDaily(ctx context.Context, userID, date string, delta decimal.Decimal) (*DailyStatistic, error) {
	current, err := q.GetDaily(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	if current == nil {
		result, err := q.q.ExecContext(ctx, `
			INSERT INTO daily_statistics (user_id, date, total_mg, updated_at) VALUES (?, ?, ?, ?)
		`, userID, date, delta.String(), now)
		if err != nil {
			return nil, fmt.Errorf("insert daily %s: %w", date, err)
		}
		id, _ := result.LastInsertId()
		return &DailyStatistic{ID: id, UserID: userID, Date: date, TotalMg: delta, UpdatedAt: now}, nil
	}

	current.TotalMg = current.TotalMg.Add(delta)
	current.UpdatedAt = now
	if _, err := q.q.ExecContext(ctx, `
		UPDATE daily_statistics SET total_mg = ?, updated_at = ? WHERE id = ?
	`, current.TotalMg.String(), now, current.ID); err != nil {
		return nil, fmt.Errorf("update daily %s: %w", date, err)
	}
	return current, nil
}

// GetDaily returns the daily statistic for (user, date), or nil if none exists.
func (q *Queries) GetDaily(ctx context.Context, userID, date string) (*DailyStatistic, error) {
	var d DailyStatistic
	err := q.q.QueryRowContext(ctx, `
		SELECT id, user_id, date, total_mg, updated_at FROM daily_statistics WHERE user_id = ? AND date = ?
	`, userID, date).Scan(&d.ID, &d.UserID, &d.Date, &d.TotalMg, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily: %w", err)
	}
	return &d, nil
}

// ListDaily returns daily statistics with fromDate <= date <= toDate, by date.
func (q *Queries) ListDaily(ctx context.Context, userID, fromDate, toDate string) ([]DailyStatistic, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, user_id, date, total_mg, updated_at FROM daily_statistics
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("list daily: %w", err)
	}
	defer rows.Close()

	var stats []DailyStatistic
	for rows.Next() {
		var d DailyStatistic
		if err := rows.Scan(&d.ID, &d.UserID, &d.Date, &d.TotalMg, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// GetRollup returns the rollup for (user, kind, key), or nil if none exists.
func (q *Queries) GetRollup(ctx context.Context, userID, kind, key string) (*PeriodRollup, error) {
	var r PeriodRollup
	var parent sql.NullString
	err := q.q.QueryRowContext(ctx, `
		SELECT id, user_id, kind, period_key, parent_key, total_mg, average_mg, over_limit_days, updated_at
		FROM period_rollups WHERE user_id = ? AND kind = ? AND period_key = ?
	`, userID, kind, key).Scan(&r.ID, &r.UserID, &r.Kind, &r.Key, &parent,
		&r.TotalMg, &r.AverageMg, &r.OverLimitDays, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rollup %s %s: %w", kind, key, err)
	}
	r.ParentKey = parent.String
	return &r, nil
}

// SaveRollup inserts or fully overwrites a rollup row keyed by (user, kind, key).
func (q *Queries) SaveRollup(ctx context.Context, r *PeriodRollup) error {
	now := time.Now().UnixMilli()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO period_rollups (user_id, kind, period_key, parent_key, total_mg, average_mg, over_limit_days, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)
		ON CONFLICT(user_id, kind, period_key) DO UPDATE SET
			parent_key = excluded.parent_key,
			total_mg = excluded.total_mg,
			average_mg = excluded.average_mg,
			over_limit_days = excluded.over_limit_days,
			updated_at = excluded.updated_at
	`, r.UserID, r.Kind, r.Key, r.ParentKey, r.TotalMg.String(), r.AverageMg.String(), r.OverLimitDays, now)
	if err != nil {
		return fmt.Errorf("save rollup %s %s: %w", r.Kind, r.Key, err)
	}
	r.UpdatedAt = now
	return nil
}

// DeleteUserStatistics drops a user's daily statistics and rollups. Only used by rebuild.
func (q *Queries) DeleteUserStatistics(ctx context.Context, userID string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM daily_statistics WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete daily for %s: %w", userID, err)
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM period_rollups WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete rollups for %s: %w", userID, err)
	}
	return nil
}
