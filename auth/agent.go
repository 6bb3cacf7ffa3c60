package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AgentCredential is a machine-to-machine API key record. Only the key hash
// is stored; the plaintext key is shown once at issuance.
type AgentCredential struct {
	ID              string
	Name            string
	KeyHash         string
	Permissions     []string
	CertFingerprint string // optional mTLS binding, empty when unbound
	Revoked         bool
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// AgentRepo stores agent credentials keyed by the API-key hash.
type AgentRepo interface {
	Upsert(ctx context.Context, cred *AgentCredential) error
	GetByKeyHash(ctx context.Context, keyHash string) (*AgentCredential, error)
	Revoke(ctx context.Context, id string) error
}

// AgentResult is the decision for one machine-to-machine authentication.
type AgentResult struct {
	Valid       bool     `json:"valid"`
	Permissions []string `json:"permissions,omitempty"`
}

// AgentService is the machine-to-machine path. Its validation sequence
// mirrors the interactive state machine's fail-closed ordering: rate limit,
// key lookup, revocation, expiry, then certificate binding.
type AgentService struct {
	repo        AgentRepo
	rateLimiter RateLimiter
	logger      zerolog.Logger
	nowFunc     func() time.Time
}

type AgentServiceOption func(*AgentService)

func WithAgentNowFunc(now func() time.Time) AgentServiceOption {
	return func(s *AgentService) { s.nowFunc = now }
}

func WithAgentLogger(logger zerolog.Logger) AgentServiceOption {
	return func(s *AgentService) { s.logger = logger }
}

func NewAgentService(repo AgentRepo, rateLimiter RateLimiter, options ...AgentServiceOption) (*AgentService, error) {
	if repo == nil {
		return nil, errors.New("[NewAgentService] agent repo is required")
	}
	if rateLimiter == nil {
		return nil, errors.New("[NewAgentService] rate limiter is required")
	}
	s := &AgentService{
		repo:        repo,
		rateLimiter: rateLimiter,
		logger:      zerolog.Nop(),
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// IssueAgentCredential mints a new API key, returning the plaintext key
// exactly once alongside the stored record.
func (s *AgentService) IssueAgentCredential(ctx context.Context, name string, permissions []string, ttl time.Duration, certFingerprint string) (string, *AgentCredential, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, errors.Wrap(err, "[IssueAgentCredential] rand.Read")
	}
	apiKey := "ak_" + hex.EncodeToString(raw)

	now := s.nowFunc()
	cred := &AgentCredential{
		ID:              uuid.New().String(),
		Name:            name,
		KeyHash:         HashAPIKey(apiKey),
		Permissions:     permissions,
		CertFingerprint: certFingerprint,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return "", nil, errors.Wrap(err, "[IssueAgentCredential] Upsert")
	}
	return apiKey, cred, nil
}

// AuthenticateAgent validates an API key and optional certificate binding.
// Every check failure denies; nothing falls through to allow.
func (s *AgentService) AuthenticateAgent(ctx context.Context, apiKey, certFingerprint string) *AgentResult {
	denied := &AgentResult{Valid: false}

	keyHash := HashAPIKey(apiKey)
	if !s.rateLimiter.Allow(keyHash) {
		return denied
	}

	cred, err := s.repo.GetByKeyHash(ctx, keyHash)
	if err != nil || cred == nil {
		return denied
	}
	if subtle.ConstantTimeCompare([]byte(cred.KeyHash), []byte(keyHash)) != 1 {
		return denied
	}
	if cred.Revoked {
		return denied
	}
	if s.nowFunc().After(cred.ExpiresAt) {
		return denied
	}
	if cred.CertFingerprint != "" && cred.CertFingerprint != certFingerprint {
		s.logger.Warn().Str("credential_id", cred.ID).Msg("certificate binding mismatch")
		return denied
	}

	return &AgentResult{Valid: true, Permissions: cred.Permissions}
}

// HashAPIKey is the storage hash for agent API keys.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
