package events_test

import (
	"testing"
	"time"

	"github.com/authcore-io/authcore/events"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutInOrder(t *testing.T) {
	bus := events.NewBus()

	var got []float64
	bus.SubscribeRiskAssessed(func(e events.RiskAssessedEvent) {
		got = append(got, e.Score)
	})
	bus.SubscribeRiskAssessed(func(e events.RiskAssessedEvent) {
		got = append(got, e.Score+1)
	})

	bus.PublishRiskAssessed(events.RiskAssessedEvent{Score: 10, Timestamp: time.Now()})

	require.Equal(t, []float64{10, 11}, got)
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *events.Bus
	require.NotPanics(t, func() {
		bus.PublishAuthentication(events.AuthenticationEvent{})
		bus.PublishTokensGenerated(events.TokensGeneratedEvent{})
		bus.PublishTokenRevoked(events.TokenRevokedEvent{})
		bus.PublishRiskAssessed(events.RiskAssessedEvent{})
	})
}

func TestSubscribersAreIndependentPerTopic(t *testing.T) {
	bus := events.NewBus()

	var auths, revocations int
	bus.SubscribeAuthentication(func(events.AuthenticationEvent) { auths++ })
	bus.SubscribeTokenRevoked(func(events.TokenRevokedEvent) { revocations++ })

	bus.PublishAuthentication(events.AuthenticationEvent{Outcome: "SUCCESS"})
	bus.PublishAuthentication(events.AuthenticationEvent{Outcome: "RATE_LIMITED"})
	bus.PublishTokenRevoked(events.TokenRevokedEvent{JTI: "abc"})

	require.Equal(t, 2, auths)
	require.Equal(t, 1, revocations)
}
