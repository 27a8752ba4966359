package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a referenced account. Identity and auth live elsewhere; the engine
// only needs to know the ID exists.
type User struct {
	ID        string
	Name      string
	CreatedAt int64
}

// Drink is a referenced catalog entry.
type Drink struct {
	ID         string
	Name       string
	CaffeineMg float64
	CreatedAt  int64
}

// UpsertUser registers a user or renames an existing one.
func (q *Queries) UpsertUser(ctx context.Context, u *User) error {
	now := time.Now().UnixMilli()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, u.ID, u.Name, now)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	return nil
}

// GetUser returns a user by ID, or nil if not found.
func (q *Queries) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := q.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpsertDrink registers a drink or updates its name and caffeine content.
func (q *Queries) UpsertDrink(ctx context.Context, d *Drink) error {
	now := time.Now().UnixMilli()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO drinks (id, name, caffeine_mg, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, caffeine_mg = excluded.caffeine_mg
	`, d.ID, d.Name, d.CaffeineMg, now)
	if err != nil {
		return fmt.Errorf("upsert drink: %w", err)
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	return nil
}

// GetDrink returns a drink by ID, or nil if not found.
func (q *Queries) GetDrink(ctx context.Context, id string) (*Drink, error) {
	var d Drink
	err := q.q.QueryRowContext(ctx, `SELECT id, name, caffeine_mg, created_at FROM drinks WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.CaffeineMg, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get drink: %w", err)
	}
	return &d, nil
}
