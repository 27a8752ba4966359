package server

import (
	"fmt"
	"math"
	"net/http"
	"testing"
)

func seed(t *testing.T, srv *Server) {
	t.Helper()
	if w := do(t, srv, "POST", "/api/users", `{"id":"u1","name":"Ada"}`); w.Code != http.StatusCreated {
		t.Fatalf("register user: status = %d; body: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "POST", "/api/drinks", `{"id":"americano","name":"Americano","caffeine_mg":150}`); w.Code != http.StatusCreated {
		t.Fatalf("register drink: status = %d; body: %s", w.Code, w.Body.String())
	}
}

func createIntake(t *testing.T, srv *Server, at string, mg float64) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"drink_id":"americano","intake_time":%q,"dose_mg":%v}`, at, mg)
	w := do(t, srv, "POST", "/api/users/u1/intakes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create intake: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp intakeJSON
	decode(t, w, &resp)
	return resp.ID
}

func TestCreateIntake(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)

	w := do(t, srv, "POST", "/api/users/u1/intakes", `{"drink_id":"americano","intake_time":"2026-10-18T08:00:00Z","dose_mg":150,"serving_count":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp intakeJSON
	decode(t, w, &resp)
	if resp.ID == 0 {
		t.Error("expected an intake id")
	}
	if resp.DoseMg != 150 || resp.UserID != "u1" || resp.ServingCount != 1 {
		t.Errorf("unexpected intake: %+v", resp)
	}
}

func TestCreateIntakeErrors(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/api/users/u1/intakes", `not json`, http.StatusBadRequest},
		{"negative dose", "/api/users/u1/intakes", `{"drink_id":"americano","intake_time":"2026-10-18T08:00:00Z","dose_mg":-1}`, http.StatusBadRequest},
		{"missing dose", "/api/users/u1/intakes", `{"drink_id":"americano","intake_time":"2026-10-18T08:00:00Z"}`, http.StatusBadRequest},
		{"missing time", "/api/users/u1/intakes", `{"drink_id":"americano","dose_mg":10}`, http.StatusBadRequest},
		{"unknown user", "/api/users/ghost/intakes", `{"drink_id":"americano","intake_time":"2026-10-18T08:00:00Z","dose_mg":10}`, http.StatusNotFound},
		{"unknown drink", "/api/users/u1/intakes", `{"drink_id":"mate","intake_time":"2026-10-18T08:00:00Z","dose_mg":10}`, http.StatusNotFound},
	}
	for _, c := range cases {
		w := do(t, srv, "POST", c.path, c.body)
		if w.Code != c.want {
			t.Errorf("%s: status = %d, want %d; body: %s", c.name, w.Code, c.want, w.Body.String())
		}
	}

	w := do(t, srv, "POST", "/api/users/u1/intakes", `{"drink_id":"americano","intake_time":"2026-10-18T08:00:00Z","dose_mg":-1}`)
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &resp)
	if resp.Fields["DoseMg"] != "gte" {
		t.Errorf("fields = %v, want DoseMg: gte", resp.Fields)
	}
}

func TestUpdateAndDeleteIntake(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	id := createIntake(t, srv, "2026-10-18T08:00:00Z", 150)

	w := do(t, srv, "PATCH", fmt.Sprintf("/api/intakes/%d", id), `{"dose_mg":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp intakeJSON
	decode(t, w, &resp)
	if resp.DoseMg != 100 {
		t.Errorf("dose = %v, want 100", resp.DoseMg)
	}

	if w := do(t, srv, "PATCH", fmt.Sprintf("/api/intakes/%d", id), `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch: status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "PATCH", "/api/intakes/abc", `{"dose_mg":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "PATCH", "/api/intakes/9999", `{"dose_mg":1}`); w.Code != http.StatusNotFound {
		t.Errorf("missing intake: status = %d, want 404", w.Code)
	}

	if w := do(t, srv, "DELETE", fmt.Sprintf("/api/intakes/%d", id), ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d; body: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "DELETE", fmt.Sprintf("/api/intakes/%d", id), ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestListIntakes(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	createIntake(t, srv, "2026-10-18T08:00:00Z", 150)
	createIntake(t, srv, "2026-10-17T08:00:00Z", 80)

	w := do(t, srv, "GET", "/api/users/u1/intakes?from=2026-10-18T00:00:00Z&to=2026-10-19T00:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Intakes []intakeJSON `json:"intakes"`
		Count   int          `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.Intakes[0].DoseMg != 150 {
		t.Errorf("unexpected list: %+v", resp)
	}

	if w := do(t, srv, "GET", "/api/users/u1/intakes?from=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad from: status = %d, want 400", w.Code)
	}
}

func TestDailyReport(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	createIntake(t, srv, "2026-10-18T08:00:00Z", 150)

	w := do(t, srv, "GET", "/api/users/u1/reports/daily?date=2026-10-18&now=2026-10-18T13:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Date       string  `json:"date"`
		IntakeMg   float64 `json:"daily_caffeine_intake_mg"`
		IntakeRate float64 `json:"intake_rate"`
		Residuals  []struct {
			ResidualMg float64 `json:"residual_mg"`
		} `json:"residuals"`
		Current struct {
			ResidualMg float64 `json:"residual_mg"`
			Guide      struct {
				Tier string `json:"tier"`
			} `json:"guide"`
		} `json:"current"`
	}
	decode(t, w, &resp)

	if resp.Date != "2026-10-18" {
		t.Errorf("date = %q", resp.Date)
	}
	if resp.IntakeMg != 150 {
		t.Errorf("intake = %v, want 150", resp.IntakeMg)
	}
	if resp.IntakeRate != 37.5 {
		t.Errorf("rate = %v, want 37.5", resp.IntakeRate)
	}
	if len(resp.Residuals) != 35 {
		t.Errorf("residuals = %d points, want 35", len(resp.Residuals))
	}
	if math.Abs(resp.Current.ResidualMg-75) > 1e-9 {
		t.Errorf("current residual = %v, want 75", resp.Current.ResidualMg)
	}
	if resp.Current.Guide.Tier != "minor" {
		t.Errorf("tier = %q, want minor", resp.Current.Guide.Tier)
	}
}

func TestReportDefaultsToClock(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	createIntake(t, srv, "2026-10-18T08:00:00Z", 150)

	w := do(t, srv, "GET", "/api/users/u1/guide", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ResidualMg float64 `json:"residual_mg"`
	}
	decode(t, w, &resp)
	if math.Abs(resp.ResidualMg-75) > 1e-9 {
		t.Errorf("guide residual = %v, want 75 at the fixed clock", resp.ResidualMg)
	}
}

func TestResidualWindow(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	createIntake(t, srv, "2026-10-18T08:00:00Z", 150)

	w := do(t, srv, "GET", "/api/users/u1/residuals?at=2026-10-18T10:00:00Z&radius=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Residuals []struct {
			ResidualMg float64 `json:"residual_mg"`
		} `json:"residuals"`
	}
	decode(t, w, &resp)
	if len(resp.Residuals) != 5 {
		t.Fatalf("points = %d, want 5", len(resp.Residuals))
	}
	if resp.Residuals[0].ResidualMg != 150 {
		t.Errorf("first point = %v, want 150", resp.Residuals[0].ResidualMg)
	}

	for _, q := range []string{"radius=-1", "radius=abc", "radius=1000", "at=noon"} {
		if w := do(t, srv, "GET", "/api/users/u1/residuals?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestPeriodReports(t *testing.T) {
	srv := testServer(t)
	seed(t, srv)
	createIntake(t, srv, "2026-10-12T09:00:00Z", 450)
	createIntake(t, srv, "2026-10-14T09:00:00Z", 200)

	w := do(t, srv, "GET", "/api/users/u1/reports/weekly?date=2026-10-18", "")
	if w.Code != http.StatusOK {
		t.Fatalf("weekly: status = %d; body: %s", w.Code, w.Body.String())
	}
	var week struct {
		Week          string  `json:"week"`
		TotalMg       float64 `json:"total_mg"`
		OverLimitDays int     `json:"over_limit_days"`
		Days          []any   `json:"days"`
	}
	decode(t, w, &week)
	if week.Week != "2026-W42" || week.TotalMg != 650 || week.OverLimitDays != 1 || len(week.Days) != 7 {
		t.Errorf("unexpected week: %+v", week)
	}

	w = do(t, srv, "GET", "/api/users/u1/reports/monthly?month=2026-10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("monthly: status = %d; body: %s", w.Code, w.Body.String())
	}
	var month struct {
		Month           string  `json:"month"`
		TotalMg         float64 `json:"total_mg"`
		WeeklyAverageMg float64 `json:"weekly_average_mg"`
		Weeks           []any   `json:"weeks"`
	}
	decode(t, w, &month)
	if month.Month != "2026-10" || month.TotalMg != 650 || month.WeeklyAverageMg != 162.5 || len(month.Weeks) != 5 {
		t.Errorf("unexpected month: %+v", month)
	}

	w = do(t, srv, "GET", "/api/users/u1/reports/yearly", "")
	if w.Code != http.StatusOK {
		t.Fatalf("yearly: status = %d; body: %s", w.Code, w.Body.String())
	}
	var year struct {
		Year    string  `json:"year"`
		TotalMg float64 `json:"total_mg"`
		Months  []any   `json:"months"`
	}
	decode(t, w, &year)
	if year.Year != "2026" || year.TotalMg != 650 || len(year.Months) != 12 {
		t.Errorf("unexpected year: %+v", year)
	}

	bad := []string{
		"/api/users/u1/reports/weekly?date=18-10-2026",
		"/api/users/u1/reports/monthly?month=october",
		"/api/users/u1/reports/yearly?year=twenty",
		"/api/users/u1/reports/daily?now=soon",
	}
	for _, path := range bad {
		if w := do(t, srv, "GET", path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestReportsUnknownUser(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{
		"/api/users/ghost/guide",
		"/api/users/ghost/residuals",
		"/api/users/ghost/reports/daily",
		"/api/users/ghost/reports/weekly",
		"/api/users/ghost/reports/monthly",
		"/api/users/ghost/reports/yearly",
		"/api/users/ghost/intakes",
	} {
		if w := do(t, srv, "GET", path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := testServer(t)

	if w := do(t, srv, "POST", "/api/users", `{"name":"nobody"}`); w.Code != http.StatusBadRequest {
		t.Errorf("user without id: status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "POST", "/api/drinks", `{"id":"x","name":"X"}`); w.Code != http.StatusBadRequest {
		t.Errorf("drink without caffeine: status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "POST", "/api/drinks", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", w.Code)
	}
}
