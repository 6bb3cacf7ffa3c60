// Package redisstore provides the Redis-backed implementations of the
// revocation store, risk-result cache, behavior-profile store and
// refresh-token store, for deployments where more than one instance must
// share state.
package redisstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Key prefixes keep the stores disjoint inside a shared database.
const (
	revocationPrefix = "authcore:revoked:"
	riskCachePrefix  = "authcore:risk:"
	profilePrefix    = "authcore:profile:"
	refreshPrefix    = "authcore:refresh:"
)

// Connect opens a Redis client from either a redis:// URL or a bare address.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}
