package repofake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/authcore-io/authcore/token"
)

var _ token.RefreshRepo = (*FakeRefreshRepo)(nil)

type FakeRefreshRepo struct {
	byToken map[string]*token.RefreshRecord
	lock    sync.RWMutex

	// FailUpserts makes every Upsert return an error, for exercising
	// dependency-failure paths.
	FailUpserts bool
}

func NewFakeRefreshRepo() *FakeRefreshRepo {
	return &FakeRefreshRepo{
		byToken: make(map[string]*token.RefreshRecord),
	}
}

func (r *FakeRefreshRepo) Upsert(_ context.Context, record *token.RefreshRecord) error {
	if r.FailUpserts {
		return errors.New("refresh store unavailable")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *record
	r.byToken[record.Token] = &copied
	return nil
}

func (r *FakeRefreshRepo) Get(_ context.Context, tokenStr string) (*token.RefreshRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	record, ok := r.byToken[tokenStr]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *record
	return &copied, nil
}

func (r *FakeRefreshRepo) Delete(_ context.Context, tokenStr string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.byToken, tokenStr)
	return nil
}

// Len returns the number of live refresh records.
func (r *FakeRefreshRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.byToken)
}
