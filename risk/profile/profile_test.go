package profile_test

import (
	"testing"
	"time"

	"github.com/authcore-io/authcore/risk/profile"
	"github.com/stretchr/testify/require"
)

func TestPhaseProgression(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	p := profile.New("user-1", now)
	require.Equal(t, profile.PhaseInitial, p.Phase)
	require.False(t, p.BaselineEstablished)

	obs := profile.LoginObservation{Country: "US", City: "Boston", DeviceID: "dev-1", At: now}

	for i := 0; i < 5; i++ {
		p.RecordLogin(obs)
	}
	require.Equal(t, profile.PhaseLearning, p.Phase)
	require.True(t, p.BaselineEstablished)

	for i := 0; i < 25; i++ {
		p.RecordLogin(obs)
	}
	require.Equal(t, profile.PhaseStable, p.Phase)
}

func TestNewLocationTriggersAdapting(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	p := profile.New("user-1", now)
	for i := 0; i < 30; i++ {
		p.RecordLogin(profile.LoginObservation{Country: "US", City: "Boston", DeviceID: "dev-1", At: now})
	}
	require.Equal(t, profile.PhaseStable, p.Phase)

	p.RecordLogin(profile.LoginObservation{Country: "DE", City: "Berlin", DeviceID: "dev-1", At: now.Add(time.Hour)})
	require.Equal(t, profile.PhaseAdapting, p.Phase)
}

func TestHomeLocationPinnedOnFirstCoords(t *testing.T) {
	p := profile.New("user-1", time.Now())
	require.False(t, p.HasHome)

	p.RecordLogin(profile.LoginObservation{
		Country: "US", Latitude: 42.36, Longitude: -71.06, HasCoords: true, At: time.Now(),
	})
	require.True(t, p.HasHome)
	require.Equal(t, 42.36, p.HomeLatitude)

	p.RecordLogin(profile.LoginObservation{
		Country: "DE", Latitude: 52.52, Longitude: 13.40, HasCoords: true, At: time.Now(),
	})
	require.Equal(t, 42.36, p.HomeLatitude, "home stays pinned")
}

func TestTypicalTimeMatchesAdjacentHour(t *testing.T) {
	p := profile.New("user-1", time.Now())
	monday9 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	p.RecordLogin(profile.LoginObservation{At: monday9})

	require.True(t, p.IsTypicalTime(time.Monday, 8))
	require.True(t, p.IsTypicalTime(time.Monday, 9))
	require.True(t, p.IsTypicalTime(time.Monday, 10))
	require.False(t, p.IsTypicalTime(time.Monday, 11))
	require.False(t, p.IsTypicalTime(time.Tuesday, 9))
}

func TestDeviceTrustGrowsWithUse(t *testing.T) {
	p := profile.New("user-1", time.Now())
	for i := 0; i < 15; i++ {
		p.RecordLogin(profile.LoginObservation{DeviceID: "dev-1", At: time.Now()})
	}
	require.True(t, p.IsKnownDevice("dev-1"))
	require.Equal(t, 1.0, p.TypicalDevices["dev-1"].TrustLevel)
	require.False(t, p.IsKnownDevice("dev-2"))
}
