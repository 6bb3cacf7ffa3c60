package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/mfa"
	"github.com/authcore-io/authcore/users"
)

// RateLimiter throttles attempts per identity before any other work runs.
type RateLimiter interface {
	Allow(identity string) bool
}

// MFAProvider generates and verifies second-factor challenges. The
// orchestrator treats the factor itself (TOTP, backup code, WebAuthn) as
// opaque.
type MFAProvider interface {
	GenerateChallenge(ctx context.Context, user *users.User) (*mfa.Challenge, error)
	Verify(ctx context.Context, user *users.User, code string) (bool, error)
	VerifyChallenge(ctx context.Context, challengeID string, user *users.User, code string) (bool, error)
}

// AuditEntry is the structured record emitted once per terminal outcome.
type AuditEntry struct {
	UserID    string
	Email     string
	IPAddress string
	DeviceID  string
	Outcome   Outcome
	RiskScore float64
	Duration  time.Duration
	Timestamp time.Time
}

// AuditSink persists audit entries. Persistence itself is an external
// concern; sink failures are logged, never surfaced to the caller.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// LogAuditSink writes audit entries to the structured log. It is the default
// sink when no external audit pipeline is wired in.
type LogAuditSink struct {
	logger zerolog.Logger
}

func NewLogAuditSink(logger zerolog.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

func (s *LogAuditSink) Record(_ context.Context, entry AuditEntry) error {
	s.logger.Info().
		Str("user_id", entry.UserID).
		Str("email", entry.Email).
		Str("ip", entry.IPAddress).
		Str("device_id", entry.DeviceID).
		Str("outcome", string(entry.Outcome)).
		Float64("risk_score", entry.RiskScore).
		Dur("duration", entry.Duration).
		Msg("authentication attempt")
	return nil
}
