package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users and drinks: referenced entities",
		SQL: `
CREATE TABLE users (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE TABLE drinks (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    caffeine_mg  REAL NOT NULL DEFAULT 0 CHECK (caffeine_mg >= 0),
    created_at   INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "intake_events: source-of-truth intake log",
		SQL: `
CREATE TABLE intake_events (
    id             INTEGER PRIMARY KEY,
    user_id        TEXT NOT NULL,
    drink_id       TEXT NOT NULL,
    intake_at      INTEGER NOT NULL,
    dose_mg        REAL NOT NULL CHECK (dose_mg >= 0),
    serving_count  INTEGER NOT NULL DEFAULT 1 CHECK (serving_count >= 1),
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL,

    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (drink_id) REFERENCES drinks(id)
);

CREATE INDEX idx_intakes_user_time ON intake_events(user_id, intake_at);
`,
	},
	{
		Version:     3,
		Description: "residual_buckets: hourly materialized residual per user",
		SQL: `
CREATE TABLE residual_buckets (
    id           INTEGER PRIMARY KEY,
    user_id      TEXT NOT NULL,
    bucket_at    INTEGER NOT NULL,
    date         TEXT NOT NULL,
    hour         INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
    residual_mg  REAL NOT NULL DEFAULT 0,
    updated_at   INTEGER NOT NULL,

    UNIQUE (user_id, bucket_at)
);

CREATE INDEX idx_buckets_user_date ON residual_buckets(user_id, date, hour);
`,
	},
	{
		Version:     4,
		Description: "daily_statistics and period_rollups: intake aggregates",
		SQL: `
CREATE TABLE daily_statistics (
    id          INTEGER PRIMARY KEY,
    user_id     TEXT NOT NULL,
    date        TEXT NOT NULL,
    total_mg    TEXT NOT NULL DEFAULT '0',
    updated_at  INTEGER NOT NULL,

    UNIQUE (user_id, date)
);

CREATE TABLE period_rollups (
    id               INTEGER PRIMARY KEY,
    user_id          TEXT NOT NULL,
    kind             TEXT NOT NULL CHECK (kind IN ('week', 'month', 'year')),
    period_key       TEXT NOT NULL,
    parent_key       TEXT,
    total_mg         TEXT NOT NULL DEFAULT '0',
    average_mg       TEXT NOT NULL DEFAULT '0',
    over_limit_days  INTEGER NOT NULL DEFAULT 0,
    updated_at       INTEGER NOT NULL,

    UNIQUE (user_id, kind, period_key)
);

CREATE INDEX idx_rollups_parent ON period_rollups(user_id, kind, parent_key);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
