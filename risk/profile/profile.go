// Package profile maintains the long-lived behavioral baseline used by the
// risk engine. One profile exists per user; it is created on first successful
// login and updated incrementally after every assessed login.
package profile

import (
	"fmt"
	"time"
)

// Phase of the profile's learning lifecycle.
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseLearning Phase = "learning"
	PhaseStable   Phase = "stable"
	PhaseAdapting Phase = "adapting"
)

// Login-count boundaries for phase transitions. The baseline is considered
// established once the learning phase is reached.
const (
	learningAfterLogins = 5
	stableAfterLogins   = 30
)

type LocationStat struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

type DeviceStat struct {
	Count      int       `json:"count"`
	TrustLevel float64   `json:"trust_level"` // 0..1, grows with repeated use
	LastSeen   time.Time `json:"last_seen"`
}

// Profile holds a user's typical login times, locations and devices.
// Keys: TypicalTimes is "weekday-hour" (e.g. "1-09"), TypicalLocations is
// "country|region|city", TypicalDevices is the device ID.
type Profile struct {
	UserID           string                   `json:"user_id"`
	TypicalTimes     map[string]int           `json:"typical_times"`
	TypicalLocations map[string]*LocationStat `json:"typical_locations"`
	TypicalDevices   map[string]*DeviceStat   `json:"typical_devices"`

	HomeCountry   string  `json:"home_country,omitempty"`
	HomeLatitude  float64 `json:"home_latitude,omitempty"`
	HomeLongitude float64 `json:"home_longitude,omitempty"`
	HasHome       bool    `json:"has_home"`

	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	Phase               Phase      `json:"phase"`
	BaselineEstablished bool       `json:"baseline_established"`
	LoginCount          int        `json:"login_count"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// New creates an empty profile in the initial phase.
func New(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:           userID,
		TypicalTimes:     make(map[string]int),
		TypicalLocations: make(map[string]*LocationStat),
		TypicalDevices:   make(map[string]*DeviceStat),
		Phase:            PhaseInitial,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// LoginObservation is the per-login input to RecordLogin.
type LoginObservation struct {
	Country   string
	Region    string
	City      string
	Latitude  float64
	Longitude float64
	HasCoords bool
	DeviceID  string
	At        time.Time
}

// RecordLogin folds one successful login into the baseline. The home location
// is pinned to the first observed coordinates and re-pinned when the profile
// re-enters the adapting phase after a sustained location change.
func (p *Profile) RecordLogin(obs LoginObservation) {
	p.LoginCount++

	tk := TimeKey(obs.At.Weekday(), obs.At.Hour())
	p.TypicalTimes[tk]++

	lk := LocationKey(obs.Country, obs.Region, obs.City)
	if lk != "" {
		stat, ok := p.TypicalLocations[lk]
		if !ok {
			stat = &LocationStat{}
			p.TypicalLocations[lk] = stat
			if p.Phase == PhaseStable {
				p.Phase = PhaseAdapting
			}
		}
		stat.Count++
		stat.LastSeen = obs.At
	}

	if obs.DeviceID != "" {
		stat, ok := p.TypicalDevices[obs.DeviceID]
		if !ok {
			stat = &DeviceStat{}
			p.TypicalDevices[obs.DeviceID] = stat
		}
		stat.Count++
		if stat.TrustLevel < 1.0 {
			stat.TrustLevel += 0.1
			if stat.TrustLevel > 1.0 {
				stat.TrustLevel = 1.0
			}
		}
		stat.LastSeen = obs.At
	}

	if !p.HasHome && obs.HasCoords {
		p.HomeCountry = obs.Country
		p.HomeLatitude = obs.Latitude
		p.HomeLongitude = obs.Longitude
		p.HasHome = true
	}

	p.advancePhase()
	at := obs.At
	p.LastLoginAt = &at
	p.UpdatedAt = obs.At
}

func (p *Profile) advancePhase() {
	switch {
	case p.LoginCount >= stableAfterLogins:
		if p.Phase != PhaseAdapting || p.dominantLocationSettled() {
			p.Phase = PhaseStable
		}
	case p.LoginCount >= learningAfterLogins:
		if p.Phase == PhaseInitial {
			p.Phase = PhaseLearning
		}
	}
	if p.LoginCount >= learningAfterLogins {
		p.BaselineEstablished = true
	}
}

// dominantLocationSettled reports whether the most recent location has been
// seen often enough to stop treating the profile as adapting.
func (p *Profile) dominantLocationSettled() bool {
	var latest *LocationStat
	for _, stat := range p.TypicalLocations {
		if latest == nil || stat.LastSeen.After(latest.LastSeen) {
			latest = stat
		}
	}
	return latest == nil || latest.Count >= learningAfterLogins
}

// IsTypicalTime reports whether the weekday/hour falls in a known bucket,
// matching within plus or minus one hour on the same weekday.
func (p *Profile) IsTypicalTime(weekday time.Weekday, hour int) bool {
	for delta := -1; delta <= 1; delta++ {
		h := (hour + delta + 24) % 24
		if p.TypicalTimes[TimeKey(weekday, h)] > 0 {
			return true
		}
	}
	return false
}

// IsTypicalLocation reports whether the location has been seen before.
func (p *Profile) IsTypicalLocation(country, region, city string) bool {
	stat, ok := p.TypicalLocations[LocationKey(country, region, city)]
	return ok && stat.Count > 0
}

// IsKnownDevice reports whether the device has been seen before.
func (p *Profile) IsKnownDevice(deviceID string) bool {
	stat, ok := p.TypicalDevices[deviceID]
	return ok && stat.Count > 0
}

// TimeKey builds the typical-time bucket key.
func TimeKey(weekday time.Weekday, hour int) string {
	return fmt.Sprintf("%d-%02d", int(weekday), hour)
}

// LocationKey builds the typical-location bucket key.
func LocationKey(country, region, city string) string {
	if country == "" && region == "" && city == "" {
		return ""
	}
	return country + "|" + region + "|" + city
}
