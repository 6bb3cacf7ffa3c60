package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/token"
)

var _ token.RefreshRepo = (*RefreshRepo)(nil)

// RefreshRepo stores refresh-token records keyed by the opaque token string,
// expiring with the token itself.
type RefreshRepo struct {
	client *redis.Client
}

func NewRefreshRepo(client *redis.Client) *RefreshRepo {
	return &RefreshRepo{client: client}
}

func (r *RefreshRepo) Upsert(ctx context.Context, record *token.RefreshRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, refreshPrefix+record.Token, raw, ttl).Err()
}

func (r *RefreshRepo) Get(ctx context.Context, tokenStr string) (*token.RefreshRecord, error) {
	raw, err := r.client.Get(ctx, refreshPrefix+tokenStr).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("refresh token not found")
		}
		return nil, err
	}
	var out token.RefreshRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RefreshRepo) Delete(ctx context.Context, tokenStr string) error {
	return r.client.Del(ctx, refreshPrefix+tokenStr).Err()
}
