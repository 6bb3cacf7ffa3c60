package config

import "time"

// TokenConfig selects the signing scheme and lifetimes for the token service.
// SignerType is "hmac" (HS256, shared secret) or "rsa" (RS256, key pairs).
type TokenConfig interface {
	GetIssuer() string
	GetAudience() string
	GetSignerType() string
	GetHMACSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetKeyRetentionPeriod() time.Duration
	GetKeyRotationInterval() time.Duration
	GetClockSkew() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "https://auth.localhost")
}

func (Tokens) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "api")
}

func (Tokens) GetSignerType() string {
	return GetEnv("TOKEN_SIGNER", "rsa")
}

func (Tokens) GetHMACSecret() string {
	return GetEnv("TOKEN_HMAC_SECRET", "")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour)
}

func (Tokens) GetKeyRetentionPeriod() time.Duration {
	return GetEnvDuration("KEY_RETENTION_PERIOD", 7*24*time.Hour)
}

func (Tokens) GetKeyRotationInterval() time.Duration {
	return GetEnvDuration("KEY_ROTATION_INTERVAL", 24*time.Hour)
}

func (Tokens) GetClockSkew() time.Duration {
	return GetEnvDuration("TOKEN_CLOCK_SKEW", 30*time.Second)
}
