package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lazypower/halflife/internal/config"
	"github.com/lazypower/halflife/internal/decay"
	"github.com/lazypower/halflife/internal/engine"
	"github.com/lazypower/halflife/internal/events"
	"github.com/lazypower/halflife/internal/ledger"
	"github.com/lazypower/halflife/internal/lock"
	"github.com/lazypower/halflife/internal/logging"
	"github.com/lazypower/halflife/internal/report"
	"github.com/lazypower/halflife/internal/rollup"
	"github.com/lazypower/halflife/internal/store"
	"github.com/sirupsen/logrus"
)

// app is everything a command needs, wired from config.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	db      *store.DB
	engine  *engine.Engine
	reports *report.Assembler
	closers []func() error
}

// loadApp reads config, opens the database and builds the engine. With
// remote set it also connects the Redis lock and NATS publisher when they
// are configured; read-only commands skip them.
func loadApp(ctx context.Context, remote bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db}
	a.closers = append(a.closers, db.Close)

	model, err := decay.New(cfg.Decay.HalfLifeHours, cfg.Decay.HorizonHours)
	if err != nil {
		a.close()
		return nil, err
	}
	clamp, err := ledger.ParseClampMode(cfg.Ledger.Clamp)
	if err != nil {
		a.close()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		a.close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"half_life_hours": model.HalfLifeHours(),
		"horizon_hours":   model.HorizonHours(),
		"clamp":           clamp,
	}).Debug("decay model")

	l := ledger.New(model, loc, clamp, log)
	r := rollup.New(loc, cfg.Limits.DailyLimitMg, log)
	a.engine = engine.New(db, l, r, log)
	a.reports = report.New(db, l, r, report.Thresholds{
		DailyLimitMg:     cfg.Limits.DailyLimitMg,
		SleepSensitiveMg: cfg.Limits.SleepSensitiveMg,
		MinorImpactMg:    cfg.Limits.MinorImpactMg,
	}, cfg.Report.WindowRadiusHours)

	if clamp == ledger.ClampWrite {
		log.Warn("ledger clamp=write: retractions clamp stored buckets; run `halflife rebuild` to repair drift")
	}
	if !remote {
		return a, nil
	}

	if cfg.Lock.Backend == "redis" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rl, err := lock.NewRedis(dialCtx, cfg.Lock.RedisAddr, cfg.Lock.TTL, log)
		cancel()
		if err != nil {
			a.close()
			return nil, err
		}
		a.engine.SetLocker(rl)
		a.closers = append(a.closers, rl.Close)
		log.WithField("addr", cfg.Lock.RedisAddr).Info("using redis user locks")
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.Events.Prefix)
		if err != nil {
			a.close()
			return nil, err
		}
		a.engine.SetPublisher(pub)
		a.closers = append(a.closers, pub.Close)
		log.WithField("url", cfg.Events.NATSURL).Info("publishing change events to nats")
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}
