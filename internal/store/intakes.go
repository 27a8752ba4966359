package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IntakeEvent is one recorded caffeine intake.
type IntakeEvent struct {
	ID           int64
	UserID       string
	DrinkID      string
	IntakeTime   time.Time
	DoseMg       float64
	ServingCount int
	CreatedAt    int64
	UpdatedAt    int64
}

const intakeColumns = `id, user_id, drink_id, intake_at, dose_mg, serving_count, created_at, updated_at`

// CreateIntake inserts a new intake event and sets its ID.
func (q *Queries) CreateIntake(ctx context.Context, e *IntakeEvent) error {
	now := time.Now().UnixMilli()
	result, err := q.q.ExecContext(ctx, `
		INSERT INTO intake_events (user_id, drink_id, intake_at, dose_mg, serving_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.UserID, e.DrinkID, e.IntakeTime.UnixMilli(), e.DoseMg, e.ServingCount, now, now)
	if err != nil {
		return fmt.Errorf("create intake: %w", err)
	}
	id, _ := result.LastInsertId()
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// GetIntake returns an intake event by ID, or nil if not found.
func (q *Queries) GetIntake(ctx context.Context, id int64) (*IntakeEvent, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+intakeColumns+` FROM intake_events WHERE id = ?`, id)
	e, err := scanIntake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intake: %w", err)
	}
	return e, nil
}

// UpdateIntake overwrites the mutable fields of an intake event.
func (q *Queries) UpdateIntake(ctx context.Context, e *IntakeEvent) error {
	now := time.Now().UnixMilli()
	result, err := q.q.ExecContext(ctx, `
		UPDATE intake_events SET drink_id = ?, intake_at = ?, dose_mg = ?, serving_count = ?, updated_at = ?
		WHERE id = ?
	`, e.DrinkID, e.IntakeTime.UnixMilli(), e.DoseMg, e.ServingCount, now, e.ID)
	if err != nil {
		return fmt.Errorf("update intake: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update intake %d: %w", e.ID, sql.ErrNoRows)
	}
	e.UpdatedAt = now
	return nil
}

// DeleteIntake removes an intake event by ID.
func (q *Queries) DeleteIntake(ctx context.Context, id int64) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM intake_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete intake %d: %w", id, err)
	}
	return nil
}

// ListIntakes returns a user's intakes with from <= intake time < to, oldest first.
func (q *Queries) ListIntakes(ctx context.Context, userID string, from, to time.Time) ([]IntakeEvent, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+intakeColumns+` FROM intake_events
		WHERE user_id = ? AND intake_at >= ? AND intake_at < ?
		ORDER BY intake_at, id
	`, userID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list intakes: %w", err)
	}
	defer rows.Close()
	return scanIntakes(rows)
}

// AllIntakes returns every intake a user has recorded, oldest first.
func (q *Queries) AllIntakes(ctx context.Context, userID string) ([]IntakeEvent, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+intakeColumns+` FROM intake_events
		WHERE user_id = ?
		ORDER BY intake_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("all intakes: %w", err)
	}
	defer rows.Close()
	return scanIntakes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntake(row rowScanner) (*IntakeEvent, error) {
	var e IntakeEvent
	var intakeAt int64
	if err := row.Scan(&e.ID, &e.UserID, &e.DrinkID, &intakeAt, &e.DoseMg, &e.ServingCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.IntakeTime = time.UnixMilli(intakeAt).UTC()
	return &e, nil
}

func scanIntakes(rows *sql.Rows) ([]IntakeEvent, error) {
	var events []IntakeEvent
	for rows.Next() {
		e, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
