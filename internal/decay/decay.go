// Package decay models first-order caffeine elimination.
//
// A dose decays as dose * exp(-k * t) with k = ln(2) / half-life. Doses are
// linear, so the residual of several intakes is the sum of their
// contributions. Contributions are tracked only inside a fixed horizon after
// intake; anything later is treated as zero and never persisted.
package decay

import (
	"fmt"
	"math"
)

const (
	DefaultHalfLifeHours = 5.0
	DefaultHorizonHours  = 24
)

// Model is an immutable single-exponential decay curve.
type Model struct {
	halfLife float64
	k        float64
	horizon  int
}

// New builds a Model. halfLifeHours must be positive and horizonHours at least 1.
func New(halfLifeHours float64, horizonHours int) (*Model, error) {
	if halfLifeHours <= 0 || math.IsNaN(halfLifeHours) || math.IsInf(halfLifeHours, 0) {
		return nil, fmt.Errorf("half-life must be positive, got %v", halfLifeHours)
	}
	if horizonHours < 1 {
		return nil, fmt.Errorf("horizon must be at least 1 hour, got %d", horizonHours)
	}
	return &Model{
		halfLife: halfLifeHours,
		k:        math.Ln2 / halfLifeHours,
		horizon:  horizonHours,
	}, nil
}

// Default returns the 5 h half-life, 24 h horizon model.
func Default() *Model {
	m, _ := New(DefaultHalfLifeHours, DefaultHorizonHours)
	return m
}

// Contribution returns the residual of dose after elapsedHours.
// Negative elapsed time (before intake) contributes nothing.
func (m *Model) Contribution(dose, elapsedHours float64) float64 {
	if elapsedHours < 0 || dose == 0 {
		return 0
	}
	return dose * math.Exp(-m.k*elapsedHours)
}

// K is the elimination rate constant per hour.
func (m *Model) K() float64 { return m.k }

// HalfLifeHours is the configured half-life.
func (m *Model) HalfLifeHours() float64 { return m.halfLife }

// HorizonHours is the number of whole hours after intake that are tracked.
// A dose touches HorizonHours+1 hourly points, offsets 0 through HorizonHours.
func (m *Model) HorizonHours() int { return m.horizon }
