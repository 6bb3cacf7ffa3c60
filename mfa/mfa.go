// Package mfa implements second-factor verification: time-based one-time
// passwords and single-use backup codes. The authentication orchestrator
// treats this package as an opaque collaborator.
package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/internal/ttlcache"
	"github.com/authcore-io/authcore/users"
)

// Verification methods a challenge can be satisfied with.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

const (
	defaultChallengeTTL = 5 * time.Minute
	defaultMaxAttempts  = 5
	backupCodeBytes     = 5 // 10 hex chars per code
)

// Challenge is an outstanding second-factor request. It expires after the
// challenge TTL and is discarded after too many failed attempts.
type Challenge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Methods   []string  `json:"methods"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	attempts    int
	maxAttempts int
}

// Provider generates and verifies second-factor challenges.
type Provider struct {
	userRepo     users.Repo
	challenges   *ttlcache.Cache[*Challenge]
	challengeTTL time.Duration
	maxAttempts  int
	issuer       string
	logger       zerolog.Logger
	nowFunc      func() time.Time
	mu           sync.Mutex
}

type ProviderOption func(*Provider)

func WithChallengeTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.challengeTTL = ttl }
}

func WithMaxAttempts(n int) ProviderOption {
	return func(p *Provider) { p.maxAttempts = n }
}

func WithIssuer(issuer string) ProviderOption {
	return func(p *Provider) { p.issuer = issuer }
}

func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.nowFunc = now }
}

func NewProvider(userRepo users.Repo, options ...ProviderOption) *Provider {
	p := &Provider{
		userRepo:     userRepo,
		challengeTTL: defaultChallengeTTL,
		maxAttempts:  defaultMaxAttempts,
		issuer:       "authcore",
		logger:       zerolog.Nop(),
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.challenges = ttlcache.New(ttlcache.WithNowFunc[*Challenge](func() time.Time { return p.nowFunc() }))
	return p
}

// GenerateChallenge creates a pending challenge listing the methods the user
// can satisfy it with.
func (p *Provider) GenerateChallenge(_ context.Context, user *users.User) (*Challenge, error) {
	methods := availableMethods(user)
	if len(methods) == 0 {
		return nil, errors.New("[Provider.GenerateChallenge] user has no second factor enrolled")
	}

	now := p.nowFunc()
	challenge := &Challenge{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Methods:     methods,
		IssuedAt:    now,
		ExpiresAt:   now.Add(p.challengeTTL),
		maxAttempts: p.maxAttempts,
	}
	p.challenges.Set(challenge.ID, challenge, p.challengeTTL)

	p.logger.Debug().Str("user_id", user.ID).Strs("methods", methods).Msg("mfa challenge generated")
	return challenge, nil
}

// Verify checks a submitted code against the user's enrolled factors: TOTP
// first, then single-use backup codes. A nil error with false means the code
// was simply wrong.
func (p *Provider) Verify(ctx context.Context, user *users.User, code string) (bool, error) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "-", ""))
	if code == "" {
		return false, nil
	}

	if user.TOTPSecret != "" && p.verifyTOTP(code, user.TOTPSecret) {
		p.logger.Debug().Str("user_id", user.ID).Str("method", MethodTOTP).Msg("second factor verified")
		return true, nil
	}

	if len(user.BackupCodeHashes) > 0 {
		consumed, err := p.userRepo.ConsumeBackupCode(ctx, user.ID, HashBackupCode(code))
		if err != nil {
			return false, errors.Wrap(err, "[Provider.Verify] ConsumeBackupCode")
		}
		if consumed {
			p.logger.Info().Str("user_id", user.ID).Str("method", MethodBackupCode).Msg("backup code consumed")
			return true, nil
		}
	}

	return false, nil
}

// VerifyChallenge resolves a pending challenge by ID, enforcing expiry and
// the attempt ceiling before delegating to Verify.
func (p *Provider) VerifyChallenge(ctx context.Context, challengeID string, user *users.User, code string) (bool, error) {
	p.mu.Lock()
	challenge, ok := p.challenges.Get(challengeID)
	if !ok {
		p.mu.Unlock()
		return false, errors.New("[Provider.VerifyChallenge] challenge not found or expired")
	}
	if challenge.UserID != user.ID {
		p.mu.Unlock()
		return false, errors.New("[Provider.VerifyChallenge] challenge does not belong to user")
	}
	challenge.attempts++
	if challenge.attempts > challenge.maxAttempts {
		p.challenges.Delete(challengeID)
		p.mu.Unlock()
		return false, errors.New("[Provider.VerifyChallenge] maximum verification attempts exceeded")
	}
	p.mu.Unlock()

	ok, err := p.Verify(ctx, user, code)
	if err != nil {
		return false, err
	}
	if ok {
		p.challenges.Delete(challengeID)
	}
	return ok, nil
}

func (p *Provider) verifyTOTP(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, p.nowFunc().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// GenerateTOTPSecret enrolls a new TOTP secret and returns the secret plus
// its otpauth provisioning URI for authenticator apps.
func (p *Provider) GenerateTOTPSecret(accountName string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "[Provider.GenerateTOTPSecret] totp.Generate")
	}
	return key.Secret(), key.URL(), nil
}

// GenerateBackupCodes mints count single-use codes, returning the plaintext
// codes (shown to the user once) and the hashes to persist.
func GenerateBackupCodes(count int) (codes, hashes []string, err error) {
	codes = make([]string, 0, count)
	hashes = make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, errors.Wrap(err, "[GenerateBackupCodes] rand.Read")
		}
		code := hex.EncodeToString(raw)
		code = fmt.Sprintf("%s-%s", code[:5], code[5:])
		codes = append(codes, code)
		hashes = append(hashes, HashBackupCode(strings.ReplaceAll(code, "-", "")))
	}
	return codes, hashes, nil
}

// HashBackupCode returns the storage hash for a backup code (dash-stripped
// form).
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(code)))
	return hex.EncodeToString(sum[:])
}

func availableMethods(user *users.User) []string {
	methods := make([]string, 0, 2)
	if user.TOTPSecret != "" {
		methods = append(methods, MethodTOTP)
	}
	if len(user.BackupCodeHashes) > 0 {
		methods = append(methods, MethodBackupCode)
	}
	return methods
}
