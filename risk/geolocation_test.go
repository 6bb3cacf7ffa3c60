package risk_test

import (
	"context"
	"testing"
	"time"

	"github.com/authcore-io/authcore/risk"
	"github.com/authcore-io/authcore/risk/profile"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	info *risk.GeoInfo
	err  error
}

func (s stubResolver) Resolve(context.Context, string) (*risk.GeoInfo, error) {
	return s.info, s.err
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of longitude at the equator is roughly 111 km.
	d := risk.Haversine(0, 0, 0, 1)
	require.InDelta(t, 111.19, d, 0.5)
}

func TestImpossibleTravelEmitsCriticalFactor(t *testing.T) {
	policy := risk.DefaultPolicy()
	analyzer := risk.NewGeoAnalyzer(stubResolver{info: &risk.GeoInfo{
		Location: risk.Location{Country: "US", Latitude: 0, Longitude: 1, HasCoords: true},
	}}, policy)

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	lastLogin := now.Add(-36 * time.Second) // 0.01 hours

	prof := profile.New("user-1", now.Add(-time.Hour))
	prof.HomeLatitude = 0
	prof.HomeLongitude = 0
	prof.HasHome = true

	attempt := &risk.LoginAttempt{
		UserID:      "user-1",
		IPAddress:   "203.0.113.7",
		LastLoginAt: &lastLogin,
		Timestamp:   now,
	}

	factors, err := analyzer.Analyze(context.Background(), attempt, prof)
	require.NoError(t, err)

	var travel *risk.Factor
	for i := range factors {
		if factors[i].Type == "impossible_travel" {
			travel = &factors[i]
		}
	}
	require.NotNil(t, travel, "implied speed ~11,100 km/h must emit a factor")
	require.Equal(t, risk.SeverityCritical, travel.Severity)
	require.Greater(t, travel.Evidence["implied_speed_kmh"].(float64), policy.MaxTravelSpeedKmh)
}

func TestPlausibleTravelEmitsNoFactor(t *testing.T) {
	analyzer := risk.NewGeoAnalyzer(stubResolver{info: &risk.GeoInfo{
		Location: risk.Location{Country: "US", Latitude: 0, Longitude: 1, HasCoords: true},
	}}, risk.DefaultPolicy())

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	lastLogin := now.Add(-24 * time.Hour)

	prof := profile.New("user-1", now.Add(-time.Hour))
	prof.HasHome = true

	attempt := &risk.LoginAttempt{UserID: "user-1", LastLoginAt: &lastLogin, Timestamp: now}

	factors, err := analyzer.Analyze(context.Background(), attempt, prof)
	require.NoError(t, err)
	for _, f := range factors {
		require.NotEqual(t, "impossible_travel", f.Type)
	}
}

func TestBlockedCountryIsCritical(t *testing.T) {
	policy := risk.DefaultPolicy()
	policy.BlockedCountries = []string{"KP"}

	analyzer := risk.NewGeoAnalyzer(stubResolver{info: &risk.GeoInfo{
		Location: risk.Location{Country: "KP"},
	}}, policy)

	factors, err := analyzer.Analyze(context.Background(), testAttempt(), nil)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	require.Equal(t, "blocked_country", factors[0].Type)
	require.Equal(t, risk.SeverityCritical, factors[0].Severity)
}

func TestNonWhitelistedCountry(t *testing.T) {
	policy := risk.DefaultPolicy()
	policy.AllowedCountries = []string{"US", "CA"}

	analyzer := risk.NewGeoAnalyzer(stubResolver{info: &risk.GeoInfo{
		Location: risk.Location{Country: "BR"},
	}}, policy)

	factors, err := analyzer.Analyze(context.Background(), testAttempt(), nil)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	require.Equal(t, "country_not_allowed", factors[0].Type)
}

func TestAnonymizerFlags(t *testing.T) {
	analyzer := risk.NewGeoAnalyzer(stubResolver{info: &risk.GeoInfo{
		Location: risk.Location{Country: "US"},
		VPN:      true,
		Proxy:    true,
		Tor:      true,
	}}, risk.DefaultPolicy())

	factors, err := analyzer.Analyze(context.Background(), testAttempt(), nil)
	require.NoError(t, err)

	types := make(map[string]bool)
	for _, f := range factors {
		types[f.Type] = true
	}
	require.True(t, types["tor_exit_node"])
	require.True(t, types["vpn_detected"])
	require.True(t, types["proxy_detected"])
}
