package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/authcore-io/authcore/auth/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	byID map[string]*sessions.Session
	lock sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		byID: make(map[string]*sessions.Session),
	}
}

func (r *FakeSessionRepo) Upsert(_ context.Context, session *sessions.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *session
	r.byID[session.ID] = &copied
	return nil
}

func (r *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *FakeSessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if s, ok := r.byID[sessionID]; ok {
		s.RefreshedAt = at
	}
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.byID, sessionID)
	return nil
}

func (r *FakeSessionRepo) DeleteExpired(_ context.Context, before time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for id, s := range r.byID {
		if s.ExpiresAt.Before(before) {
			delete(r.byID, id)
		}
	}
	return nil
}

// Len returns the number of stored sessions.
func (r *FakeSessionRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.byID)
}
