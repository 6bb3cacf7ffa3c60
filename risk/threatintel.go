package risk

import (
	"context"

	"github.com/authcore-io/authcore/risk/profile"
)

// ThreatInfo is the threat feed's view of an IP address.
type ThreatInfo struct {
	KnownMalicious  bool
	AbuseConfidence int // 0..100, reports from abuse databases
}

// ThreatFeed looks up an IP in threat-intelligence data. External
// collaborator (feed aggregator, blocklist service).
type ThreatFeed interface {
	Lookup(ctx context.Context, ip string) (*ThreatInfo, error)
}

// ThreatIntelAnalyzer emits factors for IPs with bad reputations.
type ThreatIntelAnalyzer struct {
	feed   ThreatFeed
	policy Policy
}

func NewThreatIntelAnalyzer(feed ThreatFeed, policy Policy) *ThreatIntelAnalyzer {
	return &ThreatIntelAnalyzer{feed: feed, policy: policy}
}

func (t *ThreatIntelAnalyzer) Name() string { return "threat_intel" }

func (t *ThreatIntelAnalyzer) Analyze(ctx context.Context, attempt *LoginAttempt, _ *profile.Profile) ([]Factor, error) {
	info, err := t.feed.Lookup(ctx, attempt.IPAddress)
	if err != nil {
		return nil, err
	}

	weight := t.policy.WeightFor(CategoryThreatIntel)
	var factors []Factor

	if info.KnownMalicious {
		factors = append(factors, Factor{
			Category:   CategoryThreatIntel,
			Type:       "known_malicious_ip",
			Score:      95,
			Weight:     weight,
			Severity:   SeverityCritical,
			Confidence: 95,
		})
	} else if info.AbuseConfidence >= 50 {
		factors = append(factors, Factor{
			Category:   CategoryThreatIntel,
			Type:       "abuse_reported_ip",
			Score:      50,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: float64(info.AbuseConfidence),
			Evidence:   map[string]any{"abuse_confidence": info.AbuseConfidence},
		})
	}

	return factors, nil
}
