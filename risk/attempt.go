package risk

import "time"

// Location is a resolved or declared geographic position.
type Location struct {
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	HasCoords bool    `json:"has_coords,omitempty"`
}

// DeviceInfo carries the device fingerprint details supplied with an attempt.
type DeviceInfo struct {
	ID         string `json:"id,omitempty"`
	Jailbroken bool   `json:"jailbroken,omitempty"`
	Emulator   bool   `json:"emulator,omitempty"`
}

// LoginAttempt is the ephemeral, per-request input to the risk engine. It is
// never persisted; only derived artifacts (factors, profile updates) are.
type LoginAttempt struct {
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Device        DeviceInfo
	NewDevice     bool
	PriorFailures int
	Location      *Location // declared by the client; the resolver may override
	LastLoginAt   *time.Time
	Timestamp     time.Time
}

// cacheKey identifies rapid-fire identical attempts for result aggregation.
func (a *LoginAttempt) cacheKey() string {
	return a.UserID + "|" + a.IPAddress + "|" + a.Device.ID
}
