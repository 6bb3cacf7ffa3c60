package auth

import (
	"net"
	"strings"

	"github.com/pkg/errors"

	autherrors "github.com/authcore-io/authcore/internal/errors"
	"github.com/authcore-io/authcore/risk"
)

// AuthenticationRequest is the single input to Authenticate. MFACode is
// optional on the first pass; clients resubmit with it after receiving
// MFA_REQUIRED.
type AuthenticationRequest struct {
	Email          string         `json:"email"`
	Password       string         `json:"password"`
	MFACode        string         `json:"mfa_code,omitempty"`
	MFAChallengeID string         `json:"mfa_challenge_id,omitempty"`
	DeviceID       string         `json:"device_id,omitempty"`
	Jailbroken     bool           `json:"jailbroken,omitempty"`
	Emulator       bool           `json:"emulator,omitempty"`
	IPAddress      string         `json:"ip_address"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Location       *risk.Location `json:"location,omitempty"`
	TrustDevice    bool           `json:"trust_device,omitempty"`
}

// Validate rejects malformed requests before any side effect runs.
func (r *AuthenticationRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.Wrap(autherrors.ErrInvalidRequest, "email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.Wrap(autherrors.ErrInvalidRequest, "email is malformed")
	}
	if r.Password == "" {
		return errors.Wrap(autherrors.ErrInvalidRequest, "password is required")
	}
	if strings.TrimSpace(r.IPAddress) == "" {
		return errors.Wrap(autherrors.ErrInvalidRequest, "ip address is required")
	}
	if net.ParseIP(r.IPAddress) == nil {
		return errors.Wrap(autherrors.ErrInvalidRequest, "ip address is malformed")
	}
	return nil
}

// identity is the rate-limit bucket key: one caller cannot starve another.
func (r *AuthenticationRequest) identity() string {
	return strings.ToLower(strings.TrimSpace(r.Email)) + "|" + r.IPAddress
}
