package risk

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Thresholds are the ascending score boundaries for risk levels. A score
// below Medium is low; at or above Critical is critical. Blocking uses the
// High threshold.
type Thresholds struct {
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// Policy is the table-driven configuration for the risk engine. Analyzers
// never hard-code thresholds; everything tunable lives here.
type Policy struct {
	BaseScore       float64              `yaml:"base_score"`
	MaxScore        float64              `yaml:"max_score"`
	Thresholds      Thresholds           `yaml:"thresholds"`
	StepUpThreshold float64              `yaml:"step_up_threshold"`
	Weights         map[Category]float64 `yaml:"weights"`

	BlockedCountries []string `yaml:"blocked_countries"`
	AllowedCountries []string `yaml:"allowed_countries"` // empty: all allowed
	MaxTravelSpeedKmh float64 `yaml:"max_travel_speed_kmh"`
	FailureThreshold  int     `yaml:"failure_threshold"`

	ModelBlend bool `yaml:"model_blend"`

	AnalyzerTimeout time.Duration `yaml:"-"`
	CacheTTL        time.Duration `yaml:"-"`

	// Raw duration fields for YAML (seconds); converted on load.
	AnalyzerTimeoutSeconds int `yaml:"analyzer_timeout_seconds"`
	CacheTTLSeconds        int `yaml:"cache_ttl_seconds"`
}

// DefaultPolicy returns the built-in policy used when no file is configured.
func DefaultPolicy() Policy {
	return Policy{
		BaseScore:       0,
		MaxScore:        100,
		Thresholds:      Thresholds{Medium: 30, High: 60, Critical: 85},
		StepUpThreshold: 70,
		Weights: map[Category]float64{
			CategoryGeolocation: 1.0,
			CategoryDevice:      1.0,
			CategoryBehavioral:  1.0,
			CategoryNetwork:     1.0,
			CategoryTemporal:    1.0,
			CategoryThreatIntel: 1.0,
		},
		MaxTravelSpeedKmh: 1000,
		FailureThreshold:  3,
		AnalyzerTimeout:   2 * time.Second,
		CacheTTL:          30 * time.Second,
	}
}

// LoadPolicy reads a YAML policy file, layering it over the defaults.
// Validation failures are configuration errors and fatal at startup.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, errors.Wrap(err, "[LoadPolicy] read policy file")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, errors.Wrap(err, "[LoadPolicy] parse policy file")
	}

	if p.AnalyzerTimeoutSeconds > 0 {
		p.AnalyzerTimeout = time.Duration(p.AnalyzerTimeoutSeconds) * time.Second
	}
	if p.CacheTTLSeconds > 0 {
		p.CacheTTL = time.Duration(p.CacheTTLSeconds) * time.Second
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that the thresholds ascend and bounds are sane.
func (p Policy) Validate() error {
	if p.MaxScore <= 0 {
		return errors.New("[Policy.Validate] max_score must be positive")
	}
	if !(p.Thresholds.Medium < p.Thresholds.High && p.Thresholds.High < p.Thresholds.Critical) {
		return errors.New("[Policy.Validate] thresholds must ascend: medium < high < critical")
	}
	if p.Thresholds.Critical > p.MaxScore {
		return errors.New("[Policy.Validate] critical threshold exceeds max_score")
	}
	if p.MaxTravelSpeedKmh <= 0 {
		return errors.New("[Policy.Validate] max_travel_speed_kmh must be positive")
	}
	return nil
}

// LevelFor maps a score to its risk level.
func (p Policy) LevelFor(score float64) Level {
	switch {
	case score >= p.Thresholds.Critical:
		return LevelCritical
	case score >= p.Thresholds.High:
		return LevelHigh
	case score >= p.Thresholds.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// WeightFor returns the configured weight for a category, defaulting to 1.
func (p Policy) WeightFor(category Category) float64 {
	if w, ok := p.Weights[category]; ok {
		return w
	}
	return 1.0
}

// CountryBlocked reports whether the country is on the blocklist.
func (p Policy) CountryBlocked(country string) bool {
	for _, c := range p.BlockedCountries {
		if c == country {
			return true
		}
	}
	return false
}

// CountryAllowed reports whether the country passes the whitelist, which is
// only enforced when non-empty.
func (p Policy) CountryAllowed(country string) bool {
	if len(p.AllowedCountries) == 0 {
		return true
	}
	for _, c := range p.AllowedCountries {
		if c == country {
			return true
		}
	}
	return false
}
