package risk

import "time"

// Category of signal a factor was derived from.
type Category string

const (
	CategoryGeolocation Category = "geolocation"
	CategoryDevice      Category = "device"
	CategoryBehavioral  Category = "behavioral"
	CategoryNetwork     Category = "network"
	CategoryTemporal    Category = "temporal"
	CategoryThreatIntel Category = "threat_intel"
)

// Severity of an individual factor. A single critical factor blocks the
// attempt regardless of the aggregate score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level is the aggregate risk classification, a pure function of the score
// against the policy's ascending thresholds.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Factor is a single scored risk signal.
type Factor struct {
	Category   Category       `json:"category"`
	Type       string         `json:"type"`
	Score      float64        `json:"score"`
	Weight     float64        `json:"weight"`
	Severity   Severity       `json:"severity"`
	Confidence float64        `json:"confidence"` // 0..100
	Evidence   map[string]any `json:"evidence,omitempty"`
}

// Assessment is the result of scoring one login attempt.
// Score = clamp(base + sum(factor.Score * factor.Weight), 0, maxScore).
type Assessment struct {
	Score                  float64       `json:"score"`
	Level                  Level         `json:"level"`
	Blocked                bool          `json:"blocked"`
	Factors                []Factor      `json:"factors"`
	RequiresAdditionalAuth bool          `json:"requires_additional_auth"`
	AllowedMethods         []string      `json:"allowed_methods,omitempty"`
	Confidence             float64       `json:"confidence"`
	ProcessingTime         time.Duration `json:"processing_time"`
}

// HasFactor reports whether a factor of the given type was emitted.
func (a *Assessment) HasFactor(factorType string) bool {
	for _, f := range a.Factors {
		if f.Type == factorType {
			return true
		}
	}
	return false
}
