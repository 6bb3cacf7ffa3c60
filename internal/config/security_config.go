package config

import "time"

// SecurityConfig drives the orchestrator's lockout accounting, step-up policy
// and rate limiting. Values come from the environment with conservative
// defaults; the risk policy file covers the scoring side separately.
type SecurityConfig interface {
	GetMaxLoginAttempts() int
	GetLockoutDuration() time.Duration
	GetStepUpRiskThreshold() float64
	GetRequireMFAForAll() bool
	GetRateLimitPerMinute() int
	GetRateLimitBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMaxLoginAttempts() int {
	return GetEnvInt("MAX_LOGIN_ATTEMPTS", 5)
}

func (Security) GetLockoutDuration() time.Duration {
	return GetEnvDuration("LOCKOUT_DURATION", 15*time.Minute)
}

func (Security) GetStepUpRiskThreshold() float64 {
	return float64(GetEnvInt("STEP_UP_RISK_THRESHOLD", 70))
}

func (Security) GetRequireMFAForAll() bool {
	return GetEnvBool("REQUIRE_MFA", false)
}

func (Security) GetRateLimitPerMinute() int {
	return GetEnvInt("RATE_LIMIT_PER_MINUTE", 10)
}

func (Security) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 5)
}
