package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lazypower/halflife/internal/decay"
	"github.com/lazypower/halflife/internal/engine"
	"github.com/lazypower/halflife/internal/ledger"
	"github.com/lazypower/halflife/internal/report"
	"github.com/lazypower/halflife/internal/rollup"
	"github.com/lazypower/halflife/internal/server"
	"github.com/lazypower/halflife/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
)

func testAPI(t *testing.T) *Client {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	l := ledger.New(decay.Default(), time.UTC, ledger.ClampRead, logger)
	r := rollup.New(time.UTC, rollup.DefaultDailyLimitMg, logger)
	e := engine.New(db, l, r, logger)

	ctx := context.Background()
	if _, err := e.RegisterUser(ctx, engine.RegisterUserInput{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	mg := 150.0
	if _, err := e.RegisterDrink(ctx, engine.RegisterDrinkInput{ID: "americano", Name: "Americano", CaffeineMg: &mg}); err != nil {
		t.Fatal(err)
	}

	srv := server.New(e, report.New(db, l, r, report.DefaultThresholds(), 0), server.Options{Version: "test", Log: logger})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func TestCreateIntakeAndGuide(t *testing.T) {
	c := testAPI(t)
	ctx := context.Background()

	if !c.Healthy(ctx) {
		t.Fatal("server should be healthy")
	}

	now := time.Now().UTC().Truncate(time.Second)
	in, err := c.CreateIntake(ctx, "u1", NewIntake{DrinkID: "americano", IntakeTime: now, DoseMg: 150})
	if err != nil {
		t.Fatalf("CreateIntake: %v", err)
	}
	if in.ID == 0 || in.DoseMg != 150 || !in.IntakeTime.Equal(now) {
		t.Errorf("unexpected intake: %+v", in)
	}

	g, err := c.Guide(ctx, "u1")
	if err != nil {
		t.Fatalf("Guide: %v", err)
	}
	if g.At == nil || g.ResidualMg <= 100 {
		t.Errorf("residual right after a 150 mg drink = %v", g.ResidualMg)
	}
	if g.Guide.Tier != "avoid" {
		t.Errorf("tier = %q, want avoid", g.Guide.Tier)
	}
}

func TestAPIErrors(t *testing.T) {
	c := testAPI(t)
	ctx := context.Background()

	_, err := c.CreateIntake(ctx, "ghost", NewIntake{DrinkID: "americano", IntakeTime: time.Now(), DoseMg: 10})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("unknown user: err = %v, want 404", err)
	}

	_, err = c.CreateIntake(ctx, "u1", NewIntake{DrinkID: "americano", IntakeTime: time.Now(), DoseMg: -1})
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("negative dose: err = %v, want 400", err)
	}
}

func TestUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1")
	if c.Healthy(context.Background()) {
		t.Error("nothing listens on port 1")
	}
}

func TestDefaultURL(t *testing.T) {
	t.Setenv("HALFLIFE_URL", "")
	if c := New(""); c.serverURL != defaultServerURL {
		t.Errorf("serverURL = %q", c.serverURL)
	}
	t.Setenv("HALFLIFE_URL", "http://api.internal:9000")
	if c := New(""); c.serverURL != "http://api.internal:9000" {
		t.Errorf("serverURL = %q", c.serverURL)
	}
}
