package repofake

import (
	"context"
	"sync"

	"github.com/authcore-io/authcore/risk/profile"
	"github.com/pkg/errors"
)

var _ profile.Repo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	profiles map[string]*profile.Profile
	lock     sync.RWMutex

	// FailGets simulates an unreachable profile store when true.
	FailGets bool
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles: make(map[string]*profile.Profile),
	}
}

func (r *FakeProfileRepo) Get(_ context.Context, userID string) (*profile.Profile, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailGets {
		return nil, errors.New("profile store unavailable")
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *FakeProfileRepo) Upsert(_ context.Context, p *profile.Profile) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.profiles[p.UserID] = p
	return nil
}
