package risk

import (
	"context"
	"strings"

	"github.com/authcore-io/authcore/risk/profile"
)

// DeviceAnalyzer scores the device fingerprint supplied with the attempt.
type DeviceAnalyzer struct {
	policy Policy
}

func NewDeviceAnalyzer(policy Policy) *DeviceAnalyzer {
	return &DeviceAnalyzer{policy: policy}
}

func (d *DeviceAnalyzer) Name() string { return "device" }

func (d *DeviceAnalyzer) Analyze(_ context.Context, attempt *LoginAttempt, _ *profile.Profile) ([]Factor, error) {
	weight := d.policy.WeightFor(CategoryDevice)
	var factors []Factor

	if attempt.NewDevice {
		factors = append(factors, Factor{
			Category:   CategoryDevice,
			Type:       "new_device",
			Score:      25,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 85,
			Evidence:   map[string]any{"device_id": attempt.Device.ID},
		})
	}

	if attempt.Device.Jailbroken {
		factors = append(factors, Factor{
			Category:   CategoryDevice,
			Type:       "jailbroken_device",
			Score:      55,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: 80,
		})
	}

	if attempt.Device.Emulator {
		factors = append(factors, Factor{
			Category:   CategoryDevice,
			Type:       "emulator_detected",
			Score:      45,
			Weight:     weight,
			Severity:   SeverityHigh,
			Confidence: 75,
		})
	}

	if insecureBrowser(attempt.UserAgent) {
		factors = append(factors, Factor{
			Category:   CategoryDevice,
			Type:       "insecure_browser",
			Score:      20,
			Weight:     weight,
			Severity:   SeverityMedium,
			Confidence: 60,
			Evidence:   map[string]any{"user_agent": attempt.UserAgent},
		})
	}

	return factors, nil
}

// insecureBrowser flags user agents from long-unsupported browsers.
func insecureBrowser(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, marker := range []string{"msie ", "trident/"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
