// Package sessions stores the server-side session record committed after a
// successful authentication.
package sessions

import "time"

// Session is the authenticated-session record. It is created once per
// successful login and refreshed when the session's tokens are rotated.
type Session struct {
	ID          string    // Unique session identifier (UUID)
	UserID      string    // Authenticated user
	DeviceID    string    // Device the session was established from
	IPAddress   string    // Address at login time
	RiskScore   float64   // Risk snapshot from the originating assessment
	AuthMethods []string  // Methods used to establish the session
	CreatedAt   time.Time // When the session was committed
	ExpiresAt   time.Time // When the session lapses absent a refresh
	RefreshedAt time.Time // Last token rotation under this session
}

// Expired reports whether the session has lapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
