package session

import (
	"time"

	"goride/internal/models"
)

// Event is one tagged reducer input. Events are applied in delivery
// order; the reducer never reorders or deduplicates them.
type Event interface {
	isEvent()
}

// SelfLocationUpdated carries a normalized sample from the location
// sampler.
type SelfLocationUpdated struct {
	Location models.Coordinate
}

// CounterpartyLocationUpdated carries the other party's position as
// pushed by the server.
type CounterpartyLocationUpdated struct {
	Location models.Coordinate
}

// StatusPushed carries a server-side lifecycle transition. A push for a
// new ride ID while no session is active starts a new session; extras
// (counterparty, booking, locations) fill session fields on the way in.
type StatusPushed struct {
	RideID               string
	Status               models.RideStatus
	Counterparty         *models.Counterparty
	CounterpartyLocation *models.Coordinate
	Booking              *models.Booking
	// CancelDeadline is computed by the controller when the push enters
	// Accepted, so the reducer itself never reads the clock.
	CancelDeadline *time.Time
}

// ChatReceived appends an inbound transcript entry.
type ChatReceived struct {
	Message models.ChatMessage
}

// ChatSent optimistically appends the user's own message before any
// network confirmation.
type ChatSent struct {
	Message models.ChatMessage
}

// PinVerified records a successful local PIN comparison. The only
// transition not driven by an inbound server event.
type PinVerified struct{}

// RouteUpdated is the derivation step writing a freshly computed route.
type RouteUpdated struct {
	Route models.RouteInfo
}

// SessionCleared resets to the empty session.
type SessionCleared struct{}

func (SelfLocationUpdated) isEvent()         {}
func (CounterpartyLocationUpdated) isEvent() {}
func (StatusPushed) isEvent()                {}
func (ChatReceived) isEvent()                {}
func (ChatSent) isEvent()                    {}
func (PinVerified) isEvent()                 {}
func (RouteUpdated) isEvent()                {}
func (SessionCleared) isEvent()              {}
