package risk

import (
	"context"

	"github.com/authcore-io/authcore/risk/profile"
)

// NetworkInfo is the network checker's view of an IP address.
type NetworkInfo struct {
	HostingProvider bool   // datacenter / cloud egress rather than residential
	ASN             string
}

// NetworkChecker classifies the network an attempt originates from. External
// collaborator (ASN database, enrichment service).
type NetworkChecker interface {
	Check(ctx context.Context, ip string) (*NetworkInfo, error)
}

// NetworkAnalyzer flags logins from hosting-provider address space.
type NetworkAnalyzer struct {
	checker NetworkChecker
	policy  Policy
}

func NewNetworkAnalyzer(checker NetworkChecker, policy Policy) *NetworkAnalyzer {
	return &NetworkAnalyzer{checker: checker, policy: policy}
}

func (n *NetworkAnalyzer) Name() string { return "network" }

func (n *NetworkAnalyzer) Analyze(ctx context.Context, attempt *LoginAttempt, _ *profile.Profile) ([]Factor, error) {
	info, err := n.checker.Check(ctx, attempt.IPAddress)
	if err != nil {
		return nil, err
	}

	var factors []Factor
	if info.HostingProvider {
		factors = append(factors, Factor{
			Category:   CategoryNetwork,
			Type:       "hosting_provider",
			Score:      35,
			Weight:     n.policy.WeightFor(CategoryNetwork),
			Severity:   SeverityMedium,
			Confidence: 75,
			Evidence:   map[string]any{"asn": info.ASN},
		})
	}
	return factors, nil
}
