package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lazypower/halflife/internal/engine"
	"github.com/lazypower/halflife/internal/logging"
	"github.com/lazypower/halflife/internal/report"
	"github.com/sirupsen/logrus"
)

// Options configures a Server.
type Options struct {
	Version     string
	CORSOrigins []string
	Log         logrus.FieldLogger
}

// Server is the halflife HTTP API server.
type Server struct {
	engine  *engine.Engine
	reports *report.Assembler
	log     logrus.FieldLogger
	router  chi.Router
	version string
	cors    []string
	started time.Time
	now     func() time.Time
}

// New creates a new Server over the engine and report assembler.
func New(e *engine.Engine, reports *report.Assembler, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = e.Log
	}
	s := &Server{
		engine:  e,
		reports: reports,
		log:     log,
		version: opts.Version,
		cors:    opts.CORSOrigins,
		started: time.Now(),
		now:     time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	if len(s.cors) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cors,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Handle("/metrics", s.engine.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/users", s.handleRegisterUser)
		r.Post("/drinks", s.handleRegisterDrink)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/intakes", s.handleCreateIntake)
			r.Get("/intakes", s.handleListIntakes)
			r.Get("/residuals", s.handleResiduals)
			r.Get("/guide", s.handleGuide)
			r.Get("/reports/daily", s.handleDailyReport)
			r.Get("/reports/weekly", s.handleWeeklyReport)
			r.Get("/reports/monthly", s.handleMonthlyReport)
			r.Get("/reports/yearly", s.handleYearlyReport)
		})

		r.Patch("/intakes/{intakeID}", s.handleUpdateIntake)
		r.Delete("/intakes/{intakeID}", s.handleDeleteIntake)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.engine.DB.Path,
	})
}

// logRequests writes one entry per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *engine.ValidationError
	var nf *engine.NotFoundError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid input",
			"fields": ve.Fields,
		})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timed out")
	default:
		logging.LogError(s.log, "server", r.Method+" "+r.URL.Path, "request failed", nil, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
