package repofake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/authcore-io/authcore/users"
	"github.com/pkg/errors"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	byID map[string]*users.User
	lock sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byID: make(map[string]*users.User),
	}
}

func (r *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *user
	r.byID[user.ID] = &copied
	return nil
}

func (r *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *u
	return &copied, nil
}

func (r *FakeUserRepo) RecordLoginFailure(_ context.Context, userID string, now time.Time, threshold int, lockout time.Duration) (int, *time.Time, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return 0, nil, errors.New("not found")
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		until := now.Add(lockout)
		u.LockedUntil = &until
		return u.FailedLoginAttempts, &until, nil
	}
	return u.FailedLoginAttempts, nil, nil
}

func (r *FakeUserRepo) ResetLoginFailures(_ context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return errors.New("not found")
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (r *FakeUserRepo) SetLastLogin(_ context.Context, userID string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return errors.New("not found")
	}
	u.LastLoginAt = &at
	return nil
}

func (r *FakeUserRepo) AddTrustedDevice(_ context.Context, userID, deviceID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return errors.New("not found")
	}
	for _, d := range u.TrustedDevices {
		if d == deviceID {
			return nil
		}
	}
	u.TrustedDevices = append(u.TrustedDevices, deviceID)
	return nil
}

func (r *FakeUserRepo) ConsumeBackupCode(_ context.Context, userID, codeHash string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return false, errors.New("not found")
	}
	for i, h := range u.BackupCodeHashes {
		if h == codeHash {
			u.BackupCodeHashes = append(u.BackupCodeHashes[:i], u.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
