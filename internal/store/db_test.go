package store

import (
	"context"
	"errors"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRefs(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	if err := db.Q().UpsertUser(ctx, &User{ID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := db.Q().UpsertDrink(ctx, &Drink{ID: "americano", Name: "Americano", CaffeineMg: 150}); err != nil {
		t.Fatalf("UpsertDrink: %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "users", "drinks", "intake_events", "residual_buckets", "daily_statistics", "period_rollups"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestIntakeConstraints(t *testing.T) {
	db := testDB(t)
	seedRefs(t, db)

	// Negative dose
	_, err := db.Exec(`
		INSERT INTO intake_events (user_id, drink_id, intake_at, dose_mg, serving_count, created_at, updated_at)
		VALUES ('u1', 'americano', 1000, -5, 1, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for negative dose, got nil")
	}

	// Unknown user
	_, err = db.Exec(`
		INSERT INTO intake_events (user_id, drink_id, intake_at, dose_mg, serving_count, created_at, updated_at)
		VALUES ('ghost', 'americano', 1000, 5, 1, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected foreign key error for unknown user, got nil")
	}
}

func TestInTxRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.InTx(ctx, func(q *Queries) error {
		if err := q.UpsertUser(ctx, &User{ID: "u2"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	u, err := db.Q().GetUser(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u != nil {
		t.Errorf("user committed despite rollback: %+v", u)
	}
}

func TestRegistry(t *testing.T) {
	db := testDB(t)
	seedRefs(t, db)
	ctx := context.Background()

	d, err := db.Q().GetDrink(ctx, "americano")
	if err != nil {
		t.Fatalf("GetDrink: %v", err)
	}
	if d == nil || d.CaffeineMg != 150 {
		t.Fatalf("GetDrink = %+v, want caffeine 150", d)
	}

	missing, err := db.Q().GetDrink(ctx, "nope")
	if err != nil {
		t.Fatalf("GetDrink missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing drink, got %+v", missing)
	}

	if err := db.Q().UpsertUser(ctx, &User{ID: "u1", Name: "Grace"}); err != nil {
		t.Fatalf("UpsertUser rename: %v", err)
	}
	u, _ := db.Q().GetUser(ctx, "u1")
	if u.Name != "Grace" {
		t.Errorf("Name = %q, want Grace", u.Name)
	}
}
