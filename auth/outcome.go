package auth

import (
	"time"

	"github.com/authcore-io/authcore/mfa"
	"github.com/authcore-io/authcore/risk"
	"github.com/authcore-io/authcore/token"
)

// Outcome is a terminal state of the authentication state machine.
type Outcome string

const (
	OutcomeSuccess              Outcome = "SUCCESS"
	OutcomeInvalidCredentials   Outcome = "INVALID_CREDENTIALS"
	OutcomeAccountLocked        Outcome = "ACCOUNT_LOCKED"
	OutcomeMFARequired          Outcome = "MFA_REQUIRED"
	OutcomeRiskAssessmentFailed Outcome = "RISK_ASSESSMENT_FAILED"
	OutcomeRateLimited          Outcome = "RATE_LIMITED"
)

// Context is the immutable record of a successful or challenged attempt,
// consumed by the token service to mint the pair.
type Context struct {
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	DeviceID      string         `json:"device_id,omitempty"`
	IPAddress     string         `json:"ip_address"`
	Location      *risk.Location `json:"location,omitempty"`
	RiskScore     float64        `json:"risk_score"`
	AuthMethods   []string       `json:"auth_methods"`
	TrustedDevice bool           `json:"trusted_device"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Result is the full response of one authentication attempt. Only the fields
// relevant to the outcome are populated: Tokens on SUCCESS, MFAChallenge on
// MFA_REQUIRED, RiskAssessment on any outcome that ran the risk engine.
type Result struct {
	Outcome        Outcome          `json:"outcome"`
	Context        *Context         `json:"context,omitempty"`
	Tokens         *token.TokenPair `json:"tokens,omitempty"`
	MFAChallenge   *mfa.Challenge   `json:"mfa_challenge,omitempty"`
	RiskAssessment *risk.Assessment `json:"risk_assessment,omitempty"`
	LockedUntil    *time.Time       `json:"locked_until,omitempty"`
}
