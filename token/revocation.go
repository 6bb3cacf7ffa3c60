package token

import (
	"context"
	"time"

	"github.com/authcore-io/authcore/internal/ttlcache"
)

// RevocationStore records revoked token IDs until their original expiry,
// after which entries are eligible for pruning and never resurrected.
type RevocationStore interface {
	Add(ctx context.Context, jti string, expiresAt time.Time, reason string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryRevocationStore keeps revocations in a TTL cache so entries expire
// with the token they revoke.
type InMemoryRevocationStore struct {
	cache   *ttlcache.Cache[string]
	nowFunc func() time.Time
}

type RevocationOption func(*InMemoryRevocationStore)

func WithRevocationNowFunc(now func() time.Time) RevocationOption {
	return func(s *InMemoryRevocationStore) { s.nowFunc = now }
}

func NewInMemoryRevocationStore(options ...RevocationOption) *InMemoryRevocationStore {
	s := &InMemoryRevocationStore{
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.cache = ttlcache.New(ttlcache.WithNowFunc[string](func() time.Time { return s.nowFunc() }))
	return s
}

func (s *InMemoryRevocationStore) Add(_ context.Context, jti string, expiresAt time.Time, reason string) error {
	ttl := expiresAt.Sub(s.nowFunc())
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}
	s.cache.Set(jti, reason, ttl)
	return nil
}

func (s *InMemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := s.cache.Get(jti)
	return ok, nil
}
