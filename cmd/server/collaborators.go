package main

import (
	"context"
	"sync"

	"github.com/authcore-io/authcore/auth"
	"github.com/authcore-io/authcore/risk"
)

// Placeholder collaborators for deployments without external enrichment
// services wired in. Each returns the neutral answer, so the corresponding
// analyzer contributes no factors.

type unresolvedGeo struct{}

func (unresolvedGeo) Resolve(_ context.Context, _ string) (*risk.GeoInfo, error) {
	return &risk.GeoInfo{}, nil
}

type residentialNetwork struct{}

func (residentialNetwork) Check(_ context.Context, _ string) (*risk.NetworkInfo, error) {
	return &risk.NetworkInfo{}, nil
}

type emptyThreatFeed struct{}

func (emptyThreatFeed) Lookup(_ context.Context, _ string) (*risk.ThreatInfo, error) {
	return &risk.ThreatInfo{}, nil
}

type memAgentRepo struct {
	byKeyHash map[string]*auth.AgentCredential
	lock      sync.RWMutex
}

func (r *memAgentRepo) Upsert(_ context.Context, cred *auth.AgentCredential) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *cred
	r.byKeyHash[cred.KeyHash] = &copied
	return nil
}

func (r *memAgentRepo) GetByKeyHash(_ context.Context, keyHash string) (*auth.AgentCredential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	cred, ok := r.byKeyHash[keyHash]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (r *memAgentRepo) Revoke(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, cred := range r.byKeyHash {
		if cred.ID == id {
			cred.Revoked = true
		}
	}
	return nil
}
