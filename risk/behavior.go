package risk

import (
	"context"

	"github.com/authcore-io/authcore/risk/profile"
)

// BehaviorAnalyzer compares the attempt against the user's established
// baseline: typical login times, locations, devices, and recent failures.
// It stays silent until the profile's baseline is established.
type BehaviorAnalyzer struct {
	policy Policy
}

func NewBehaviorAnalyzer(policy Policy) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{policy: policy}
}

func (b *BehaviorAnalyzer) Name() string { return "behavioral" }

func (b *BehaviorAnalyzer) Analyze(_ context.Context, attempt *LoginAttempt, prof *profile.Profile) ([]Factor, error) {
	weight := b.policy.WeightFor(CategoryBehavioral)
	var factors []Factor

	// Failure pressure applies even without a baseline.
	if b.policy.FailureThreshold > 0 && attempt.PriorFailures >= b.policy.FailureThreshold {
		score := float64(attempt.PriorFailures) * 10
		if score > 50 {
			score = 50
		}
		factors = append(factors, Factor{
			Category:   CategoryBehavioral,
			Type:       "excessive_failures",
			Score:      score,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: 90,
			Evidence:   map[string]any{"failures": attempt.PriorFailures},
		})
	}

	if prof == nil || !prof.BaselineEstablished {
		return factors, nil
	}

	if !prof.IsTypicalTime(attempt.Timestamp.Weekday(), attempt.Timestamp.Hour()) {
		factors = append(factors, Factor{
			Category:   CategoryBehavioral,
			Type:       "unusual_time",
			Score:      20,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 70,
			Evidence: map[string]any{
				"weekday": int(attempt.Timestamp.Weekday()),
				"hour":    attempt.Timestamp.Hour(),
			},
		})
	}

	if attempt.Location != nil {
		if !prof.IsTypicalLocation(attempt.Location.Country, attempt.Location.Region, attempt.Location.City) {
			factors = append(factors, Factor{
				Category:   CategoryBehavioral,
				Type:       "unusual_location",
				Score:      30,
				Weight:     weight,
				Severity:   SeverityMedium,
				Confidence: 75,
				Evidence:   map[string]any{"country": attempt.Location.Country, "city": attempt.Location.City},
			})
		}
	}

	if attempt.Device.ID != "" && !prof.IsKnownDevice(attempt.Device.ID) {
		factors = append(factors, Factor{
			Category:   CategoryBehavioral,
			Type:       "unknown_device",
			Score:      25,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 80,
			Evidence:   map[string]any{"device_id": attempt.Device.ID},
		})
	}

	return factors, nil
}
