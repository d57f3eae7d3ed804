package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRideStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to RideStatus }{
		{RideStatusSearching, RideStatusAccepted},
		{RideStatusSearching, RideStatusCancelled},
		{RideStatusAccepted, RideStatusArrivingAtPickup},
		{RideStatusAccepted, RideStatusStarted},
		{RideStatusAccepted, RideStatusCancelled},
		{RideStatusArrivingAtPickup, RideStatusStarted},
		{RideStatusArrivingAtPickup, RideStatusFailed},
		{RideStatusStarted, RideStatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to RideStatus }{
		{RideStatusStarted, RideStatusAccepted},
		{RideStatusStarted, RideStatusCancelled},
		{RideStatusAccepted, RideStatusSearching},
		{RideStatusCompleted, RideStatusStarted},
		{RideStatusCancelled, RideStatusAccepted},
		{RideStatusSearching, RideStatusStarted},
		{RideStatusSearching, RideStatusCompleted},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRideStatusTerminal(t *testing.T) {
	assert.True(t, RideStatusCompleted.IsTerminal())
	assert.True(t, RideStatusCancelled.IsTerminal())
	assert.True(t, RideStatusFailed.IsTerminal())
	assert.False(t, RideStatusStarted.IsTerminal())
	assert.False(t, RideStatusSearching.IsTerminal())
}

func TestParseRideStatusWireSpellings(t *testing.T) {
	cases := map[string]RideStatus{
		"pending":        RideStatusSearching,
		"accepted":       RideStatusAccepted,
		"driver_arrived": RideStatusArrivingAtPickup,
		"in_progress":    RideStatusStarted,
		"completed":      RideStatusCompleted,
		"canceled":       RideStatusCancelled,
		"no_show":        RideStatusFailed,
	}
	for raw, want := range cases {
		got, ok := ParseRideStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParseRideStatus("teleporting")
	assert.False(t, ok)
}
