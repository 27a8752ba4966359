package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/halflife/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(a.engine, a.reports, server.Options{
		Version:     VersionString(),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Log:         a.log,
	})
	addr := a.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{
			"addr":      addr,
			"db":        a.db.Path,
			"half_life": a.cfg.Decay.HalfLifeHours,
			"timezone":  a.cfg.Report.Timezone,
			"clamp":     a.cfg.Ledger.Clamp,
		}).Info("halflife serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-done:
		a.log.Info("shutting down")
	case err := <-errc:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
