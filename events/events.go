// Package events provides typed, synchronous publish/subscribe for the domain
// events emitted by the authentication core. Subscribers are callback
// registries per event type, so producers stay independently testable without
// a shared dynamic emitter.
package events

import (
	"sync"
	"time"
)

// AuthenticationEvent is emitted once per terminal login outcome.
type AuthenticationEvent struct {
	UserID    string
	SessionID string
	Outcome   string
	IPAddress string
	RiskScore float64
	Duration  time.Duration
	Timestamp time.Time
}

// TokensGeneratedEvent is emitted when a token pair is minted.
type TokensGeneratedEvent struct {
	UserID    string
	SessionID string
	JTI       string
	Timestamp time.Time
}

// TokenRevokedEvent is emitted when a token is added to the revocation store.
type TokenRevokedEvent struct {
	JTI       string
	Reason    string
	Timestamp time.Time
}

// RiskAssessedEvent is emitted after every risk assessment.
type RiskAssessedEvent struct {
	UserID    string
	IPAddress string
	Score     float64
	Level     string
	Blocked   bool
	Timestamp time.Time
}

// Bus fans events out to registered subscribers. Publishing is synchronous
// and in registration order; subscribers must not block.
type Bus struct {
	mu             sync.RWMutex
	authentication []func(AuthenticationEvent)
	tokensIssued   []func(TokensGeneratedEvent)
	tokenRevoked   []func(TokenRevokedEvent)
	riskAssessed   []func(RiskAssessedEvent)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) SubscribeAuthentication(fn func(AuthenticationEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authentication = append(b.authentication, fn)
}

func (b *Bus) SubscribeTokensGenerated(fn func(TokensGeneratedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokensIssued = append(b.tokensIssued, fn)
}

func (b *Bus) SubscribeTokenRevoked(fn func(TokenRevokedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenRevoked = append(b.tokenRevoked, fn)
}

func (b *Bus) SubscribeRiskAssessed(fn func(RiskAssessedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.riskAssessed = append(b.riskAssessed, fn)
}

// PublishAuthentication is a no-op on a nil bus, as are the other publishers,
// so services can treat the bus as optional.
func (b *Bus) PublishAuthentication(e AuthenticationEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.authentication {
		fn(e)
	}
}

func (b *Bus) PublishTokensGenerated(e TokensGeneratedEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.tokensIssued {
		fn(e)
	}
}

func (b *Bus) PublishTokenRevoked(e TokenRevokedEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.tokenRevoked {
		fn(e)
	}
}

func (b *Bus) PublishRiskAssessed(e RiskAssessedEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.riskAssessed {
		fn(e)
	}
}
