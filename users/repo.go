package users

import (
	"context"
	"time"
)

// Repo is the user directory collaborator. Lookup and the lockout accounting
// mutations live here so failure counters are applied where the user record
// is stored, before any response is returned to the caller.
type Repo interface {
	Upsert(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)

	// RecordLoginFailure increments the consecutive-failure counter and, once
	// it reaches threshold, locks the account for the lockout window. It
	// returns the updated counter and lockout expiry (nil when not locked).
	RecordLoginFailure(ctx context.Context, userID string, now time.Time, threshold int, lockout time.Duration) (int, *time.Time, error)

	// ResetLoginFailures clears the failure counter and lockout after a
	// successful authentication.
	ResetLoginFailures(ctx context.Context, userID string) error

	SetLastLogin(ctx context.Context, userID string, at time.Time) error
	AddTrustedDevice(ctx context.Context, userID, deviceID string) error

	// ConsumeBackupCode removes the given backup-code hash if present,
	// reporting whether it existed. Backup codes are single-use.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
}
