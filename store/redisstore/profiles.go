package redisstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/risk/profile"
)

var _ profile.Repo = (*ProfileRepo)(nil)

// ProfileRepo stores behavior baselines as JSON documents. Profiles carry no
// TTL; they live as long as the user account does.
type ProfileRepo struct {
	client *redis.Client
}

func NewProfileRepo(client *redis.Client) *ProfileRepo {
	return &ProfileRepo{client: client}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	raw, err := r.client.Get(ctx, profilePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out profile.Profile
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ProfileRepo) Upsert(ctx context.Context, prof *profile.Profile) error {
	raw, err := json.Marshal(prof)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, profilePrefix+prof.UserID, raw, 0).Err()
}
