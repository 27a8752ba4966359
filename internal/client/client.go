// Package client talks to a running halflife server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 5 * time.Second
)

// Client is a thin JSON client for the halflife API.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL uses HALFLIFE_URL,
// then http://127.0.0.1:37780.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("HALFLIFE_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// Intake is an intake as the API returns it.
type Intake struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	DrinkID      string    `json:"drink_id"`
	IntakeTime   time.Time `json:"intake_time"`
	DoseMg       float64   `json:"dose_mg"`
	ServingCount int       `json:"serving_count"`
}

// NewIntake is the body of a create request.
type NewIntake struct {
	DrinkID      string    `json:"drink_id"`
	IntakeTime   time.Time `json:"intake_time"`
	DoseMg       float64   `json:"dose_mg"`
	ServingCount int       `json:"serving_count,omitempty"`
}

// Guide is the latest-known residual and its recommendation.
type Guide struct {
	At         *time.Time `json:"at"`
	ResidualMg float64    `json:"residual_mg"`
	Guide      struct {
		Tier    string `json:"tier"`
		Message string `json:"message"`
	} `json:"guide"`
}

// CreateIntake records an intake for userID.
func (c *Client) CreateIntake(ctx context.Context, userID string, in NewIntake) (*Intake, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out Intake
	if err := c.do(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/intakes", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Guide returns the user's current guidance.
func (c *Client) Guide(ctx context.Context, userID string) (*Guide, error) {
	var out Guide
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/guide", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
