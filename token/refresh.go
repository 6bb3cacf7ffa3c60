package token

import (
	"context"
	"time"
)

// RefreshRecord is the server-side metadata for an opaque refresh token. The
// client only ever sees the Token string; everything else is used to rebuild
// the session binding when the token is exchanged.
type RefreshRecord struct {
	Token       string    // The random token string (sent to client)
	JTI         string    // Revocation key for this refresh token
	UserID      string    // Subject the replacement pair is minted for
	SessionID   string    // Session binding carried into the new pair
	DeviceID    string    // Device binding carried into the new pair
	Fingerprint string    // Device+IP+UA hash bound at issue time
	RiskScore   float64   // Risk snapshot from the originating login
	AuthMethods []string  // Methods used at the originating login
	AuthTime    time.Time // When the user last actively authenticated
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RefreshRepo stores refresh-token metadata keyed by the opaque token
// string. Deleting a record is what makes a refresh token single-use.
type RefreshRepo interface {
	Upsert(ctx context.Context, record *RefreshRecord) error
	Get(ctx context.Context, tokenStr string) (*RefreshRecord, error)
	Delete(ctx context.Context, tokenStr string) error
}
