package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/halflife/internal/rollup"
)

const maxRadiusHours = 24 * 7

var errDate = errors.New("date must be YYYY-MM-DD")

// reportUser resolves the path user and checks it is registered.
func (s *Server) reportUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if err := s.engine.CheckUser(r.Context(), userID); err != nil {
		s.fail(w, r, err)
		return "", false
	}
	return userID, true
}

func (s *Server) handleResiduals(w http.ResponseWriter, r *http.Request) {
	center, err := parseTime(r, "at", s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius := s.reports.Radius()
	if v := r.URL.Query().Get("radius"); v != "" {
		radius, err = strconv.Atoi(v)
		if err != nil || radius < 0 || radius > maxRadiusHours {
			writeError(w, http.StatusBadRequest, "radius must be an integer between 0 and 168")
			return
		}
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	points, err := s.reports.Window(r.Context(), userID, center, radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"center":    center,
		"radius":    radius,
		"residuals": points,
	})
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	now, err := parseTime(r, "now", s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	cur, err := s.reports.Current(r.Context(), userID, now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	now, err := parseTime(r, "now", s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := s.parseDate(r, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	rep, err := s.reports.Daily(r.Context(), userID, day, now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	day, err := s.parseDate(r, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	rep, err := s.reports.Weekly(r.Context(), userID, day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	month := s.now().In(s.reports.Location())
	if v := r.URL.Query().Get("month"); v != "" {
		t, err := time.Parse("2006-01", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = t
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	rep, err := s.reports.Monthly(r.Context(), userID, month.Year(), month.Month())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year := s.now().In(s.reports.Location()).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			writeError(w, http.StatusBadRequest, "year must be YYYY")
			return
		}
		year = y
	}
	userID, ok := s.reportUser(w, r)
	if !ok {
		return
	}

	rep, err := s.reports.Yearly(r.Context(), userID, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// parseDate reads ?date=YYYY-MM-DD as noon of that day in the report
// location, defaulting to the day containing def.
func (s *Server) parseDate(r *http.Request, def time.Time) (time.Time, error) {
	loc := s.reports.Location()
	v := r.URL.Query().Get("date")
	if v == "" {
		return def.In(loc), nil
	}
	d, err := rollup.ParseDate(v, loc)
	if err != nil {
		return time.Time{}, errDate
	}
	return d, nil
}
