package profile

import "context"

// Repo stores behavior profiles keyed by user ID. Get returns (nil, nil)
// when no profile exists yet; profiles are never hard-deleted while the user
// account exists.
type Repo interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) error
}
