package token

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	autherrors "github.com/authcore-io/authcore/internal/errors"
)

// KeyRing holds the active signing key plus retired keys kept for
// verification. The active pointer is swapped, never mutated in place, so
// in-flight signing completes under a consistent key. Retired keys verify
// until keyRetentionPeriod elapses from their creation; after that, tokens
// signed with them become permanently unverifiable.
type KeyRing struct {
	active    atomic.Pointer[KeyPair]
	mu        sync.RWMutex
	keys      map[string]*KeyPair
	retention time.Duration
	nowFunc   func() time.Time
}

type KeyRingOption func(*KeyRing)

func WithKeyRingNowFunc(now func() time.Time) KeyRingOption {
	return func(r *KeyRing) { r.nowFunc = now }
}

// NewKeyRing creates a ring with the given initial active key.
func NewKeyRing(initial *KeyPair, retention time.Duration, options ...KeyRingOption) (*KeyRing, error) {
	if initial == nil {
		return nil, errors.New("[NewKeyRing] initial key pair is required")
	}
	r := &KeyRing{
		keys:      make(map[string]*KeyPair),
		retention: retention,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}

	initial.Active = true
	r.keys[initial.KeyID] = initial
	r.active.Store(initial)
	return r, nil
}

// Active returns the key currently used for signing.
func (r *KeyRing) Active() *KeyPair {
	return r.active.Load()
}

// Rotate makes next the active signing key. The previous key is retained for
// verification, and verification-expired keys are pruned.
func (r *KeyRing) Rotate(next *KeyPair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.active.Load(); prev != nil {
		retired := *prev
		retired.Active = false
		r.keys[retired.KeyID] = &retired
	}

	next.Active = true
	r.keys[next.KeyID] = next
	r.active.Store(next)
	r.pruneLocked()
}

// VerificationKey returns the key pair for the given key ID if it is still
// within its retention window. The active key always verifies.
func (r *KeyRing) VerificationKey(keyID string) (*KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kp, ok := r.keys[keyID]
	if !ok {
		return nil, autherrors.ErrKeyNotFound
	}
	if !kp.Active && r.expired(kp) {
		return nil, autherrors.ErrKeyNotFound
	}
	return kp, nil
}

// Prune discards retired keys whose retention window has elapsed.
func (r *KeyRing) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
}

func (r *KeyRing) pruneLocked() {
	for id, kp := range r.keys {
		if !kp.Active && r.expired(kp) {
			delete(r.keys, id)
		}
	}
}

func (r *KeyRing) expired(kp *KeyPair) bool {
	return r.nowFunc().Sub(kp.CreatedAt) >= r.retention
}

// Len returns the number of keys currently held (active plus retained).
func (r *KeyRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
