package risk

import (
	"context"
	"math"

	"github.com/authcore-io/authcore/risk/profile"
)

// GeoInfo is the resolver's view of an IP address.
type GeoInfo struct {
	Location Location
	VPN      bool
	Proxy    bool
	Tor      bool
}

// GeoResolver maps an IP address to a location and anonymizer flags. It is an
// external collaborator (GeoIP database, lookup service).
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*GeoInfo, error)
}

// GeoAnalyzer emits factors for blocked or non-whitelisted countries,
// anonymizing networks, and physically impossible travel.
type GeoAnalyzer struct {
	resolver GeoResolver
	policy   Policy
}

func NewGeoAnalyzer(resolver GeoResolver, policy Policy) *GeoAnalyzer {
	return &GeoAnalyzer{resolver: resolver, policy: policy}
}

func (g *GeoAnalyzer) Name() string { return "geolocation" }

func (g *GeoAnalyzer) Analyze(ctx context.Context, attempt *LoginAttempt, prof *profile.Profile) ([]Factor, error) {
	info, err := g.resolver.Resolve(ctx, attempt.IPAddress)
	if err != nil {
		return nil, err
	}

	loc := info.Location
	if attempt.Location != nil && attempt.Location.HasCoords && !loc.HasCoords {
		loc = *attempt.Location
	}

	weight := g.policy.WeightFor(CategoryGeolocation)
	var factors []Factor

	if loc.Country != "" && g.policy.CountryBlocked(loc.Country) {
		factors = append(factors, Factor{
			Category:   CategoryGeolocation,
			Type:       "blocked_country",
			Score:      90,
			Weight:     weight,
			Severity:   SeverityCritical,
			Confidence: 95,
			Evidence:   map[string]any{"country": loc.Country},
		})
	} else if loc.Country != "" && !g.policy.CountryAllowed(loc.Country) {
		factors = append(factors, Factor{
			Category:   CategoryGeolocation,
			Type:       "country_not_allowed",
			Score:      60,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: 90,
			Evidence:   map[string]any{"country": loc.Country},
		})
	}

	if info.Tor {
		factors = append(factors, Factor{
			Category:   CategoryGeolocation,
			Type:       "tor_exit_node",
			Score:      60,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: 90,
		})
	}
	if info.VPN {
		factors = append(factors, Factor{
			Category:   CategoryGeolocation,
			Type:       "vpn_detected",
			Score:      25,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 70,
		})
	}
	if info.Proxy {
		factors = append(factors, Factor{
			Category:   CategoryGeolocation,
			Type:       "proxy_detected",
			Score:      30,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 70,
		})
	}

	if f := g.impossibleTravel(attempt, prof, loc); f != nil {
		factors = append(factors, *f)
	}

	return factors, nil
}

// impossibleTravel compares the implied speed between the user's home
// location and the current location against the configured maximum. It needs
// a prior login timestamp and a known home location.
func (g *GeoAnalyzer) impossibleTravel(attempt *LoginAttempt, prof *profile.Profile, loc Location) *Factor {
	if prof == nil || !prof.HasHome || !loc.HasCoords || attempt.LastLoginAt == nil {
		return nil
	}

	elapsedHours := attempt.Timestamp.Sub(*attempt.LastLoginAt).Hours()
	if elapsedHours <= 0 {
		return nil
	}

	distanceKm := Haversine(prof.HomeLatitude, prof.HomeLongitude, loc.Latitude, loc.Longitude)
	speed := distanceKm / elapsedHours
	if speed <= g.policy.MaxTravelSpeedKmh {
		return nil
	}

	return &Factor{
		Category:   CategoryGeolocation,
		Type:       "impossible_travel",
		Score:      95,
		Weight:     g.policy.WeightFor(CategoryGeolocation),
		Severity:   SeverityCritical,
		Confidence: 90,
		Evidence: map[string]any{
			"distance_km":       distanceKm,
			"elapsed_hours":     elapsedHours,
			"implied_speed_kmh": speed,
		},
	}
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two
// latitude/longitude pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
