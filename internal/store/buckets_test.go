package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func bucketAt(user string, at time.Time) ResidualBucket {
	return ResidualBucket{UserID: user, At: at, Date: at.Format("2006-01-02"), Hour: at.Hour()}
}

func TestAddToBucketAccumulates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	if err := db.Q().AddToBucket(ctx, bucketAt("u1", at), 40); err != nil {
		t.Fatalf("AddToBucket: %v", err)
	}
	if err := db.Q().AddToBucket(ctx, bucketAt("u1", at), 2.5); err != nil {
		t.Fatalf("AddToBucket: %v", err)
	}

	b, err := db.Q().GetBucket(ctx, "u1", at)
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if b == nil {
		t.Fatal("expected bucket")
	}
	if math.Abs(b.ResidualMg-42.5) > 1e-9 {
		t.Errorf("ResidualMg = %v, want 42.5", b.ResidualMg)
	}
	if b.Date != "2026-10-18" || b.Hour != 9 {
		t.Errorf("Date/Hour = %s/%d", b.Date, b.Hour)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM residual_buckets").Scan(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestGetBucketMissing(t *testing.T) {
	db := testDB(t)
	b, err := db.Q().GetBucket(context.Background(), "u1", time.Now())
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil, got %+v", b)
	}
}

func TestListAndLatestBuckets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	for _, h := range []int{2, 5, 9} {
		if err := db.Q().AddToBucket(ctx, bucketAt("u1", base.Add(time.Duration(h)*time.Hour)), float64(h)); err != nil {
			t.Fatalf("AddToBucket: %v", err)
		}
	}
	db.Q().AddToBucket(ctx, bucketAt("u2", base.Add(4*time.Hour)), 99)

	buckets, err := db.Q().ListBuckets(ctx, "u1", base.Add(2*time.Hour), base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("ListBuckets: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("len = %d, want 2 (inclusive bounds)", len(buckets))
	}

	latest, err := db.Q().LatestBucket(ctx, "u1", base.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("LatestBucket: %v", err)
	}
	if latest == nil || latest.Hour != 5 {
		t.Errorf("LatestBucket = %+v, want hour 5", latest)
	}

	none, _ := db.Q().LatestBucket(ctx, "u1", base.Add(time.Hour))
	if none != nil {
		t.Errorf("expected nil before first bucket, got %+v", none)
	}

	n, err := db.Q().DeleteUserBuckets(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteUserBuckets: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
}

func TestSetBucketResidual(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	db.Q().AddToBucket(ctx, bucketAt("u1", at), 10)
	b, _ := db.Q().GetBucket(ctx, "u1", at)
	if err := db.Q().SetBucketResidual(ctx, b.ID, 0); err != nil {
		t.Fatalf("SetBucketResidual: %v", err)
	}
	b, _ = db.Q().GetBucket(ctx, "u1", at)
	if b.ResidualMg != 0 {
		t.Errorf("ResidualMg = %v, want 0", b.ResidualMg)
	}
}

func TestDailyStatistics(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.Q().AddDaily(ctx, "u1", "2026-10-18", decimal.NewFromFloat(80.1)); err != nil {
			t.Fatalf("AddDaily: %v", err)
		}
	}
	d, err := db.Q().AddDaily(ctx, "u1", "2026-10-18", decimal.NewFromFloat(-80.1))
	if err != nil {
		t.Fatalf("AddDaily negative: %v", err)
	}
	if !d.TotalMg.Equal(decimal.RequireFromString("160.2")) {
		t.Errorf("TotalMg = %s, want 160.2", d.TotalMg)
	}

	stored, _ := db.Q().GetDaily(ctx, "u1", "2026-10-18")
	if !stored.TotalMg.Equal(d.TotalMg) {
		t.Errorf("stored = %s, want %s", stored.TotalMg, d.TotalMg)
	}

	db.Q().AddDaily(ctx, "u1", "2026-10-20", decimal.NewFromInt(10))
	list, err := db.Q().ListDaily(ctx, "u1", "2026-10-18", "2026-10-19")
	if err != nil {
		t.Fatalf("ListDaily: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListDaily len = %d, want 1", len(list))
	}
}

func TestRollupUpsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	r := &PeriodRollup{UserID: "u1", Kind: KindWeek, Key: "2026-W42", ParentKey: "2026-10",
		TotalMg: decimal.NewFromInt(700), AverageMg: decimal.NewFromInt(100), OverLimitDays: 1}
	if err := db.Q().SaveRollup(ctx, r); err != nil {
		t.Fatalf("SaveRollup: %v", err)
	}
	r.TotalMg = decimal.NewFromInt(1400)
	if err := db.Q().SaveRollup(ctx, r); err != nil {
		t.Fatalf("SaveRollup overwrite: %v", err)
	}

	got, err := db.Q().GetRollup(ctx, "u1", KindWeek, "2026-W42")
	if err != nil {
		t.Fatalf("GetRollup: %v", err)
	}
	if !got.TotalMg.Equal(decimal.NewFromInt(1400)) || got.ParentKey != "2026-10" || got.OverLimitDays != 1 {
		t.Errorf("GetRollup = %+v", got)
	}

	if err := db.Q().DeleteUserStatistics(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUserStatistics: %v", err)
	}
	gone, _ := db.Q().GetRollup(ctx, "u1", KindWeek, "2026-W42")
	if gone != nil {
		t.Errorf("expected nil after delete, got %+v", gone)
	}
}
