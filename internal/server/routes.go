package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/halflife/internal/engine"
	"github.com/lazypower/halflife/internal/store"
)

type intakeJSON struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	DrinkID      string    `json:"drink_id"`
	IntakeTime   time.Time `json:"intake_time"`
	DoseMg       float64   `json:"dose_mg"`
	ServingCount int       `json:"serving_count"`
}

func toIntakeJSON(ev *store.IntakeEvent) intakeJSON {
	return intakeJSON{
		ID:           ev.ID,
		UserID:       ev.UserID,
		DrinkID:      ev.DrinkID,
		IntakeTime:   ev.IntakeTime,
		DoseMg:       ev.DoseMg,
		ServingCount: ev.ServingCount,
	}
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := s.engine.RegisterUser(r.Context(), engine.RegisterUserInput{ID: req.ID, Name: req.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "name": u.Name})
}

func (s *Server) handleRegisterDrink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		CaffeineMg *float64 `json:"caffeine_mg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	d, err := s.engine.RegisterDrink(r.Context(), engine.RegisterDrinkInput{
		ID:         req.ID,
		Name:       req.Name,
		CaffeineMg: req.CaffeineMg,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": d.ID, "name": d.Name, "caffeine_mg": d.CaffeineMg})
}

func (s *Server) handleCreateIntake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrinkID      string    `json:"drink_id"`
		IntakeTime   time.Time `json:"intake_time"`
		DoseMg       *float64  `json:"dose_mg"`
		ServingCount int       `json:"serving_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ev, err := s.engine.CreateIntake(r.Context(), engine.CreateIntakeInput{
		UserID:       chi.URLParam(r, "userID"),
		DrinkID:      req.DrinkID,
		IntakeTime:   req.IntakeTime,
		DoseMg:       req.DoseMg,
		ServingCount: req.ServingCount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIntakeJSON(ev))
}

func (s *Server) handleListIntakes(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	to, err := parseTime(r, "to", now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseTime(r, "from", to.Add(-24*time.Hour))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.engine.ListIntakes(r.Context(), chi.URLParam(r, "userID"), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]intakeJSON, len(list))
	for i := range list {
		out[i] = toIntakeJSON(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"intakes": out, "count": len(out)})
}

func (s *Server) handleUpdateIntake(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "intakeID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid intake id")
		return
	}

	var req struct {
		DrinkID      *string    `json:"drink_id"`
		IntakeTime   *time.Time `json:"intake_time"`
		DoseMg       *float64   `json:"dose_mg"`
		ServingCount *int       `json:"serving_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	in := engine.UpdateIntakeInput{
		DrinkID:      req.DrinkID,
		IntakeTime:   req.IntakeTime,
		DoseMg:       req.DoseMg,
		ServingCount: req.ServingCount,
	}
	if in.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	ev, err := s.engine.UpdateIntake(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntakeJSON(ev))
}

func (s *Server) handleDeleteIntake(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "intakeID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid intake id")
		return
	}

	if err := s.engine.DeleteIntake(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTime reads an RFC 3339 query parameter, falling back to def.
func parseTime(r *http.Request, key string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339", key)
	}
	return t, nil
}
