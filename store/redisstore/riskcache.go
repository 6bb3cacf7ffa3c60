package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/risk"
)

var _ risk.Cache = (*RiskCache)(nil)

// RiskCache shares assessment results between instances so rapid-fire
// identical attempts are scored once cluster-wide.
type RiskCache struct {
	client *redis.Client
}

func NewRiskCache(client *redis.Client) *RiskCache {
	return &RiskCache{client: client}
}

func (c *RiskCache) Get(ctx context.Context, key string) (*risk.Assessment, bool, error) {
	raw, err := c.client.Get(ctx, riskCachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out risk.Assessment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (c *RiskCache) Set(ctx context.Context, key string, a *risk.Assessment, ttl time.Duration) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, riskCachePrefix+key, raw, ttl).Err()
}
