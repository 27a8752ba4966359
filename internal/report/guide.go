package report

// Guidance tiers.
const (
	TierAvoid = "avoid"
	TierMinor = "minor"
	TierFine  = "fine"
)

// Thresholds drive report flags and guidance messages.
type Thresholds struct {
	DailyLimitMg     float64
	SleepSensitiveMg float64
	MinorImpactMg    float64
}

// DefaultThresholds: 400 mg/day limit, 100 mg sleep-sensitive residual,
// 50 mg below which another drink is fine.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DailyLimitMg:     400,
		SleepSensitiveMg: 100,
		MinorImpactMg:    50,
	}
}

// Guide is a human-readable recommendation for a residual level.
type Guide struct {
	Tier    string `json:"tier"`
	Message string `json:"message"`
}

// GuideFor maps a residual to one of three tiers: above the sleep-sensitive
// threshold, between the minor-impact and sleep-sensitive thresholds
// (inclusive), or below minor impact.
func (th Thresholds) GuideFor(residualMg float64) Guide {
	switch {
	case residualMg > th.SleepSensitiveMg:
		return Guide{Tier: TierAvoid, Message: "Avoid more caffeine now. What is still in your system is enough to disturb sleep."}
	case residualMg >= th.MinorImpactMg:
		return Guide{Tier: TierMinor, Message: "Another drink would have a minor impact. Some caffeine is still active."}
	default:
		return Guide{Tier: TierFine, Message: "Fine to drink now. Residual caffeine is low."}
	}
}
