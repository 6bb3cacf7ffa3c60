package sessions

import (
	"context"
	"time"
)

// Repo defines session storage. Sessions are bounded-lifetime records and
// should be cleaned up regularly.
type Repo interface {
	// Upsert creates or updates a session.
	Upsert(ctx context.Context, session *Session) error

	// Get retrieves a session by ID; (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Touch records a token rotation under the session.
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions that lapsed before the given time.
	DeleteExpired(ctx context.Context, before time.Time) error
}
