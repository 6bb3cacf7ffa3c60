package users

import (
	"fmt"
	"time"
	"unicode"
)

type User struct {
	ID           string     `json:"id,omitempty"`           // Unique identifier for the user
	Email        string     `json:"email,omitempty"`        // User's email address
	Username     string     `json:"username,omitempty"`     // Unique username
	PasswordHash string     `json:"-"`                      // Argon2id hash - never serialize
	FirstName    string     `json:"first_name,omitempty"`   // First name of the user
	LastName     string     `json:"last_name,omitempty"`    // Last name of the user
	DateJoined   time.Time  `json:"date_joined,omitempty"`  // Date and time when the user registered
	LastLoginAt  *time.Time `json:"last_login,omitempty"`   // Last successful login

	MFAEnabled      bool     `json:"mfa_enabled,omitempty"` // User has opted into multi-factor auth
	TOTPSecret      string   `json:"-"`                     // Base32 TOTP secret - never serialize
	BackupCodeHashes []string `json:"-"`                    // SHA-256 hashes of unused backup codes

	FailedLoginAttempts int        `json:"failed_login_attempts,omitempty"` // Consecutive failures since last success
	LockedUntil         *time.Time `json:"locked_until,omitempty"`          // Lockout expiry, nil when unlocked
	TrustedDevices      []string   `json:"trusted_devices,omitempty"`       // Device IDs the user has marked trusted

	Verified bool `json:"verified,omitempty"` // Verified, has the user verified who they are
	Blocked  bool `json:"blocked,omitempty"`  // Blocked, has the user been blocked from logging in
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// IsTrustedDevice reports whether the user previously marked deviceID trusted.
func (u *User) IsTrustedDevice(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	for _, d := range u.TrustedDevices {
		if d == deviceID {
			return true
		}
	}
	return false
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsNumber(ch):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
