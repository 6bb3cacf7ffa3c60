package repofakes

import (
	"context"
	"sync"

	"github.com/authcore-io/authcore/auth"
)

var _ auth.AgentRepo = (*FakeAgentRepo)(nil)

type FakeAgentRepo struct {
	byKeyHash map[string]*auth.AgentCredential
	lock      sync.RWMutex
}

func NewFakeAgentRepo() *FakeAgentRepo {
	return &FakeAgentRepo{
		byKeyHash: make(map[string]*auth.AgentCredential),
	}
}

func (r *FakeAgentRepo) Upsert(_ context.Context, cred *auth.AgentCredential) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *cred
	r.byKeyHash[cred.KeyHash] = &copied
	return nil
}

func (r *FakeAgentRepo) GetByKeyHash(_ context.Context, keyHash string) (*auth.AgentCredential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	cred, ok := r.byKeyHash[keyHash]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (r *FakeAgentRepo) Revoke(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, cred := range r.byKeyHash {
		if cred.ID == id {
			cred.Revoked = true
		}
	}
	return nil
}
