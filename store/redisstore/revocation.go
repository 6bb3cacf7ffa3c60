package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/token"
)

var _ token.RevocationStore = (*RevocationStore)(nil)

// RevocationStore keeps revoked jtis in Redis until the token's original
// expiry; the TTL does the pruning.
type RevocationStore struct {
	client *redis.Client
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

func (s *RevocationStore) Add(ctx context.Context, jti string, expiresAt time.Time, reason string) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}
	return s.client.Set(ctx, revocationPrefix+jti, reason, ttl).Err()
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
