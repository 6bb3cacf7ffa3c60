package risk

import (
	"context"

	"github.com/authcore-io/authcore/risk/profile"
)

// Night window for the off-hours heuristic.
const (
	nightStartHour = 2
	nightEndHour   = 5
)

// TemporalAnalyzer emits a small factor for logins during dead-of-night
// hours. Baseline-aware time checks live in the behavioral analyzer; this one
// also fires for users without an established profile.
type TemporalAnalyzer struct {
	policy Policy
}

func NewTemporalAnalyzer(policy Policy) *TemporalAnalyzer {
	return &TemporalAnalyzer{policy: policy}
}

func (t *TemporalAnalyzer) Name() string { return "temporal" }

func (t *TemporalAnalyzer) Analyze(_ context.Context, attempt *LoginAttempt, _ *profile.Profile) ([]Factor, error) {
	hour := attempt.Timestamp.Hour()
	if hour < nightStartHour || hour > nightEndHour {
		return nil, nil
	}
	return []Factor{{
		Category:   CategoryTemporal,
		Type:       "night_time_login",
		Score:      10,
		Weight:     t.policy.WeightFor(CategoryTemporal),
		Severity:   SeverityLow,
		Confidence: 60,
		Evidence:   map[string]any{"hour": hour},
	}}, nil
}
