package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/events"
	autherrors "github.com/authcore-io/authcore/internal/errors"
	"github.com/authcore-io/authcore/internal/utils"
)

// IssueContext carries the authentication context a token pair is bound to.
type IssueContext struct {
	SessionID     string
	DeviceID      string
	IPAddress     string
	UserAgent     string
	RiskScore     float64
	AuthMethods   []string
	TrustedDevice bool
	AuthTime      time.Time
}

// TokenPair is the result of issuance: an access token plus, when refresh is
// enabled, a single-use refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	JTI          string `json:"jti"`
}

// Claims is the decoded payload of a validated access token.
type Claims struct {
	Subject     string
	Issuer      string
	Audience    string
	JTI         string
	SessionID   string
	DeviceID    string
	Fingerprint string
	RiskScore   float64
	AuthMethods []string
	AuthTime    time.Time
	IssuedAt    time.Time
	ExpiresAt   time.Time
	NotBefore   time.Time
}

// ValidateOptions selects the optional validation stages.
type ValidateOptions struct {
	CheckRevocation bool
	VerifyBinding   bool
	DeviceID        string
	IPAddress       string
	UserAgent       string
}

// ValidationResult separates fatal errors (token unusable) from non-fatal
// warnings (stale authentication age, elevated risk snapshot).
type ValidationResult struct {
	Valid    bool
	Claims   *Claims
	Errors   []string
	Warnings []string
}

// IntrospectionResult is the RFC 7662 shaped read-only token view.
type IntrospectionResult struct {
	Active      bool     `json:"active"`
	Sub         *string  `json:"sub,omitempty"`
	Iss         *string  `json:"iss,omitempty"`
	Aud         *string  `json:"aud,omitempty"`
	Exp         *int64   `json:"exp,omitempty"`
	Iat         *int64   `json:"iat,omitempty"`
	Nbf         *int64   `json:"nbf,omitempty"`
	Jti         *string  `json:"jti,omitempty"`
	TokenType   *string  `json:"token_type,omitempty"`
	AuthMethods []string `json:"amr,omitempty"`
}

// Fingerprint hashes the device/ip/user-agent binding carried in tokens.
func Fingerprint(deviceID, ip, userAgent string) string {
	sum := sha256.Sum256([]byte(deviceID + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

const refreshTokenLength = 32 // 256 bits

// Manager owns token issuance, validation, refresh rotation, revocation and
// key rotation.
type Manager struct {
	signer        Signer
	ring          *KeyRing
	refreshRepo   RefreshRepo
	revocations   RevocationStore
	bus           *events.Bus
	logger        zerolog.Logger
	issuer        string
	audience      string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	clockSkew     time.Duration
	staleAuthAge  time.Duration
	elevatedRisk  float64
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessExpiry, refreshExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessExpiry = accessExpiry
		m.refreshExpiry = refreshExpiry
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) { m.issuer = issuer }
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) { m.audience = audience }
}

func WithClockSkew(skew time.Duration) ManagerOption {
	return func(m *Manager) { m.clockSkew = skew }
}

func WithEventBus(bus *events.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

func WithManagerLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.nowFunc = now }
}

// WithWarningThresholds tunes the non-fatal validation warnings: auth_time
// older than staleAuthAge, and risk snapshots at or above elevatedRisk.
func WithWarningThresholds(staleAuthAge time.Duration, elevatedRisk float64) ManagerOption {
	return func(m *Manager) {
		m.staleAuthAge = staleAuthAge
		m.elevatedRisk = elevatedRisk
	}
}

func New(signer Signer, ring *KeyRing, refreshRepo RefreshRepo, revocations RevocationStore, options ...ManagerOption) (*Manager, error) {
	if signer == nil {
		return nil, errors.New("[token.New] signer is required")
	}
	if ring == nil {
		return nil, errors.New("[token.New] key ring is required")
	}
	if revocations == nil {
		return nil, errors.New("[token.New] revocation store is required")
	}

	m := &Manager{
		signer:        signer,
		ring:          ring,
		refreshRepo:   refreshRepo,
		revocations:   revocations,
		logger:        zerolog.Nop(),
		issuer:        "authcore",
		audience:      "api",
		accessExpiry:  15 * time.Minute,
		refreshExpiry: 30 * 24 * time.Hour,
		clockSkew:     30 * time.Second,
		staleAuthAge:  12 * time.Hour,
		elevatedRisk:  70,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Issue mints an access token (and a refresh token when a refresh repo is
// configured) bound to the session, device, and fingerprint of the context.
func (m *Manager) Issue(ctx context.Context, subject string, ic IssueContext) (*TokenPair, error) {
	fp := Fingerprint(ic.DeviceID, ic.IPAddress, ic.UserAgent)
	return m.issuePair(ctx, subject, ic.SessionID, ic.DeviceID, fp, ic.RiskScore, ic.AuthMethods, ic.AuthTime)
}

func (m *Manager) issuePair(ctx context.Context, subject, sessionID, deviceID, fingerprint string, riskScore float64, methods []string, authTime time.Time) (*TokenPair, error) {
	now := m.nowFunc()
	jti := uuid.New().String()

	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"aud":       m.audience,
		"sub":       subject,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(m.accessExpiry).Unix(),
		"jti":       jti,
		"sid":       sessionID,
		"did":       deviceID,
		"fp":        fingerprint,
		"risk":      riskScore,
		"amr":       methods,
		"auth_time": authTime.Unix(),
	}

	accessToken, err := m.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] sign access token")
	}

	pair := &TokenPair{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(m.accessExpiry.Seconds()),
		JTI:         jti,
	}

	if m.refreshRepo != nil && m.refreshExpiry > 0 {
		refreshToken, err := m.createRefreshToken(ctx, subject, sessionID, deviceID, fingerprint, riskScore, methods, authTime)
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = refreshToken
	}

	m.bus.PublishTokensGenerated(events.TokensGeneratedEvent{
		UserID:    subject,
		SessionID: sessionID,
		JTI:       jti,
		Timestamp: now,
	})

	return pair, nil
}

func (m *Manager) createRefreshToken(ctx context.Context, subject, sessionID, deviceID, fingerprint string, riskScore float64, methods []string, authTime time.Time) (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Manager.createRefreshToken] rand.Read")
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	now := m.nowFunc()
	record := &RefreshRecord{
		Token:       tokenStr,
		JTI:         uuid.New().String(),
		UserID:      subject,
		SessionID:   sessionID,
		DeviceID:    deviceID,
		Fingerprint: fingerprint,
		RiskScore:   riskScore,
		AuthMethods: methods,
		AuthTime:    authTime,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.refreshExpiry),
	}
	if err := m.refreshRepo.Upsert(ctx, record); err != nil {
		return "", errors.Wrap(err, "[Manager.createRefreshToken] Upsert")
	}
	return tokenStr, nil
}

// Validate verifies signature (selecting the key by the token's kid), then
// issuer/audience/expiry/not-before under the configured clock skew, then the
// optional fingerprint binding and revocation stages. A revocation store
// failure fails closed.
func (m *Manager) Validate(ctx context.Context, rawToken string, opts ValidateOptions) *ValidationResult {
	result := &ValidationResult{}
	if strings.TrimSpace(rawToken) == "" {
		result.Errors = append(result.Errors, "empty token")
		return result
	}

	parsed, err := jwt.Parse(rawToken, m.signer.Keyfunc,
		jwt.WithValidMethods([]string{m.signer.Method().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		result.Errors = append(result.Errors, errorMessage(err))
		return result
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		result.Errors = append(result.Errors, "error extracting claims")
		return result
	}
	claims := decodeClaims(mapClaims)
	result.Claims = claims

	if opts.VerifyBinding {
		expected := Fingerprint(opts.DeviceID, opts.IPAddress, opts.UserAgent)
		if claims.Fingerprint != expected {
			result.Errors = append(result.Errors, "fingerprint binding mismatch")
			return result
		}
	}

	if opts.CheckRevocation && claims.JTI != "" {
		revoked, err := m.revocations.IsRevoked(ctx, claims.JTI)
		if err != nil {
			m.logger.Error().Err(err).Msg("revocation store unreachable, failing closed")
			result.Errors = append(result.Errors, "revocation check unavailable")
			return result
		}
		if revoked {
			result.Errors = append(result.Errors, "token revoked")
			return result
		}
	}

	now := m.nowFunc()
	if !claims.AuthTime.IsZero() && now.Sub(claims.AuthTime) > m.staleAuthAge {
		result.Warnings = append(result.Warnings, "stale authentication age")
	}
	if claims.RiskScore >= m.elevatedRisk {
		result.Warnings = append(result.Warnings, "elevated risk score")
	}

	result.Valid = true
	return result
}

// Refresh exchanges a refresh token for a new pair bound to the same
// session, device and fingerprint. The presented token is revoked on use.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if m.refreshRepo == nil {
		return nil, autherrors.ErrInvalidRefreshToken
	}

	record, err := m.refreshRepo.Get(ctx, refreshToken)
	if err != nil || record == nil {
		return nil, autherrors.ErrInvalidRefreshToken
	}

	revoked, err := m.revocations.IsRevoked(ctx, record.JTI)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrDependencyUnavailable, "[Manager.Refresh] revocation check")
	}
	if revoked {
		return nil, autherrors.ErrInvalidRefreshToken
	}

	now := m.nowFunc()
	if now.After(record.ExpiresAt) {
		_ = m.refreshRepo.Delete(ctx, refreshToken)
		return nil, autherrors.ErrRefreshTokenExpired
	}

	// Rotation-on-use: the presented token must be unusable before the new
	// pair exists.
	if err := m.refreshRepo.Delete(ctx, refreshToken); err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] delete presented token")
	}
	if err := m.revocations.Add(ctx, record.JTI, record.ExpiresAt, "rotated"); err != nil {
		m.logger.Warn().Err(err).Msg("failed to record rotated refresh token")
	}

	return m.issuePair(ctx, record.UserID, record.SessionID, record.DeviceID, record.Fingerprint, record.RiskScore, record.AuthMethods, record.AuthTime)
}

// Revoke adds the token's jti to the revocation store, keyed until its
// original expiry. Accepts either a signed access token or an opaque refresh
// token.
func (m *Manager) Revoke(ctx context.Context, rawToken, reason string) error {
	if jti, exp, err := m.verifiedJTI(rawToken); err == nil {
		if err := m.revocations.Add(ctx, jti, exp, reason); err != nil {
			return errors.Wrap(err, "[Manager.Revoke] revocation store")
		}
		m.publishRevoked(jti, reason)
		return nil
	}

	if m.refreshRepo != nil {
		if record, err := m.refreshRepo.Get(ctx, rawToken); err == nil && record != nil {
			if err := m.refreshRepo.Delete(ctx, rawToken); err != nil {
				return errors.Wrap(err, "[Manager.Revoke] delete refresh token")
			}
			if err := m.revocations.Add(ctx, record.JTI, record.ExpiresAt, reason); err != nil {
				return errors.Wrap(err, "[Manager.Revoke] revocation store")
			}
			m.publishRevoked(record.JTI, reason)
			return nil
		}
	}

	return autherrors.ErrInvalidToken
}

// Introspect returns the RFC 7662 view of a token; any invalid, revoked or
// expired token is simply inactive.
func (m *Manager) Introspect(ctx context.Context, rawToken string) *IntrospectionResult {
	result := m.Validate(ctx, rawToken, ValidateOptions{CheckRevocation: true})
	if !result.Valid {
		return &IntrospectionResult{Active: false}
	}

	c := result.Claims
	return &IntrospectionResult{
		Active:      true,
		Sub:         utils.Ptr(c.Subject),
		Iss:         utils.Ptr(c.Issuer),
		Aud:         utils.Ptr(c.Audience),
		Exp:         utils.Ptr(c.ExpiresAt.Unix()),
		Iat:         utils.Ptr(c.IssuedAt.Unix()),
		Nbf:         utils.Ptr(c.NotBefore.Unix()),
		Jti:         utils.Ptr(c.JTI),
		TokenType:   utils.Ptr("bearer"),
		AuthMethods: c.AuthMethods,
	}
}

// JWKS returns the public key set for asymmetric deployments; symmetric
// signers have nothing to publish.
func (m *Manager) JWKS() (*JWKS, error) {
	if publisher, ok := m.signer.(interface{ GetJWKS() (*JWKS, error) }); ok {
		return publisher.GetJWKS()
	}
	return &JWKS{}, nil
}

// RotateKeys makes next the active signing key. Previously issued tokens
// keep verifying under their retained keys for the retention window.
func (m *Manager) RotateKeys(next *KeyPair) {
	m.ring.Rotate(next)
	m.logger.Info().Str("key_id", next.KeyID).Msg("signing key rotated")
}

// verifiedJTI parses and verifies a signed token, returning its jti and
// expiry for revocation bookkeeping.
func (m *Manager) verifiedJTI(rawToken string) (string, time.Time, error) {
	parsed, err := jwt.Parse(rawToken, m.signer.Keyfunc,
		jwt.WithValidMethods([]string{m.signer.Method().Alg()}),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return "", time.Time{}, autherrors.ErrInvalidToken
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, autherrors.ErrInvalidToken
	}

	jti, _ := mapClaims["jti"].(string)
	if jti == "" {
		return "", time.Time{}, errors.New("token missing jti claim")
	}
	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return "", time.Time{}, errors.New("token missing exp claim")
	}
	return jti, time.Unix(int64(exp), 0), nil
}

func (m *Manager) publishRevoked(jti, reason string) {
	m.bus.PublishTokenRevoked(events.TokenRevokedEvent{
		JTI:       jti,
		Reason:    reason,
		Timestamp: m.nowFunc(),
	})
}

func decodeClaims(mc jwt.MapClaims) *Claims {
	c := &Claims{}
	c.Subject, _ = mc["sub"].(string)
	c.Issuer, _ = mc["iss"].(string)
	c.Audience, _ = mc["aud"].(string)
	c.JTI, _ = mc["jti"].(string)
	c.SessionID, _ = mc["sid"].(string)
	c.DeviceID, _ = mc["did"].(string)
	c.Fingerprint, _ = mc["fp"].(string)
	c.RiskScore, _ = mc["risk"].(float64)

	if raw, ok := mc["amr"].([]any); ok {
		c.AuthMethods = utils.ToStringSlice(raw)
	}
	if v, ok := mc["auth_time"].(float64); ok {
		c.AuthTime = time.Unix(int64(v), 0)
	}
	if v, ok := mc["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(v), 0)
	}
	if v, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0)
	}
	if v, ok := mc["nbf"].(float64); ok {
		c.NotBefore = time.Unix(int64(v), 0)
	}
	return c
}

func errorMessage(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}
