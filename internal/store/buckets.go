package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResidualBucket is one hourly slot of a user's residual ledger.
// ResidualMg is the raw stored sum and may dip slightly below zero after
// retractions; readers clamp.
type ResidualBucket struct {
	ID         int64
	UserID     string
	At         time.Time // start of the hour
	Date       string    // calendar date of At, YYYY-MM-DD
	Hour       int
	ResidualMg float64
	UpdatedAt  int64
}

const bucketColumns = `id, user_id, bucket_at, date, hour, residual_mg, updated_at`

// AddToBucket adds delta to the bucket at b.At, creating it on first touch.
func (q *Queries) AddToBucket(ctx context.Context, b ResidualBucket, delta float64) error {
	now := time.Now().UnixMilli()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO residual_buckets (user_id, bucket_at, date, hour, residual_mg, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, bucket_at) DO UPDATE SET
			residual_mg = residual_mg + excluded.residual_mg,
			updated_at = excluded.updated_at
	`, b.UserID, b.At.UnixMilli(), b.Date, b.Hour, delta, now)
	if err != nil {
		return fmt.Errorf("add to bucket %s %s: %w", b.UserID, b.At.Format(time.RFC3339), err)
	}
	return nil
}

// SetBucketResidual overwrites a bucket's stored residual.
func (q *Queries) SetBucketResidual(ctx context.Context, id int64, residualMg float64) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE residual_buckets SET residual_mg = ?, updated_at = ? WHERE id = ?
	`, residualMg, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("set bucket %d: %w", id, err)
	}
	return nil
}

// GetBucket returns the bucket starting at the given hour, or nil if none exists.
func (q *Queries) GetBucket(ctx context.Context, userID string, at time.Time) (*ResidualBucket, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+bucketColumns+` FROM residual_buckets WHERE user_id = ? AND bucket_at = ?
	`, userID, at.UnixMilli())
	b, err := scanBucket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket: %w", err)
	}
	return b, nil
}

// ListBuckets returns a user's buckets with from <= bucket start <= to, in time order.
func (q *Queries) ListBuckets(ctx context.Context, userID string, from, to time.Time) ([]ResidualBucket, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+bucketColumns+` FROM residual_buckets
		WHERE user_id = ? AND bucket_at >= ? AND bucket_at <= ?
		ORDER BY bucket_at
	`, userID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []ResidualBucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, *b)
	}
	return buckets, rows.Err()
}

// LatestBucket returns the most recent bucket starting at or before notAfter,
// or nil if the user has none.
func (q *Queries) LatestBucket(ctx context.Context, userID string, notAfter time.Time) (*ResidualBucket, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+bucketColumns+` FROM residual_buckets
		WHERE user_id = ? AND bucket_at <= ?
		ORDER BY bucket_at DESC LIMIT 1
	`, userID, notAfter.UnixMilli())
	b, err := scanBucket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest bucket: %w", err)
	}
	return b, nil
}

// DeleteUserBuckets drops a user's whole ledger. Only used by rebuild.
func (q *Queries) DeleteUserBuckets(ctx context.Context, userID string) (int, error) {
	result, err := q.q.ExecContext(ctx, `DELETE FROM residual_buckets WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete buckets for %s: %w", userID, err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanBucket(row rowScanner) (*ResidualBucket, error) {
	var b ResidualBucket
	var at int64
	if err := row.Scan(&b.ID, &b.UserID, &at, &b.Date, &b.Hour, &b.ResidualMg, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.At = time.UnixMilli(at).UTC()
	return &b, nil
}
