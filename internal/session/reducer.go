package session

import (
	"goride/internal/models"
)

// Apply is the reducer: a pure function from the current session and one
// event to the next session. All I/O (emitting to the channel, querying
// the route provider, persisting the cancel window) happens in the
// controller that wraps it.
//
// Applying any event to a terminal session is a no-op, except a status
// push for a different ride, which starts the next session.
func Apply(s Session, ev Event) Session {
	if _, ok := ev.(SessionCleared); ok {
		return Session{}
	}

	if s.RideID != "" && s.Status.IsTerminal() {
		// Only an initial status for a different ride starts the next
		// session; a mid-ride or terminal push for an unknown ride is
		// dropped like any other late event.
		if push, ok := ev.(StatusPushed); ok && push.RideID != s.RideID && isInitialStatus(push.Status) {
			return startSession(s, push)
		}
		return s
	}

	switch e := ev.(type) {
	case SelfLocationUpdated:
		s.SelfLocation = e.Location
		return s

	case CounterpartyLocationUpdated:
		if !s.Active() {
			return s
		}
		s.CounterpartyLocation = e.Location
		return s

	case StatusPushed:
		return applyStatus(s, e)

	case ChatReceived:
		if !s.Active() {
			return s
		}
		s.ChatLog = appendChat(s.ChatLog, e.Message)
		return s

	case ChatSent:
		if !s.Active() {
			return s
		}
		s.ChatLog = appendChat(s.ChatLog, e.Message)
		return s

	case PinVerified:
		if s.Status == models.RideStatusAccepted || s.Status == models.RideStatusArrivingAtPickup {
			s.Status = models.RideStatusStarted
			s.CancelDeadline = nil
		}
		return s

	case RouteUpdated:
		if !s.Active() {
			return s
		}
		route := e.Route
		s.Route = &route
		return s
	}

	return s
}

// isInitialStatus reports whether a status can begin a session: a
// rider-initiated search, or an accept push arriving first.
func isInitialStatus(status models.RideStatus) bool {
	return status == models.RideStatusSearching || status == models.RideStatusAccepted
}

func applyStatus(s Session, e StatusPushed) Session {
	if !e.Status.IsValid() {
		return s
	}

	if s.RideID == "" {
		// No session yet. Only an initial status starts one.
		if isInitialStatus(e.Status) {
			return startSession(s, e)
		}
		return s
	}

	if e.RideID != s.RideID {
		// A push for some other ride never displaces an active session.
		return s
	}

	if !s.Status.CanTransitionTo(e.Status) {
		return s
	}

	s.Status = e.Status
	if e.Counterparty != nil {
		s.Counterparty = *e.Counterparty
	}
	if e.CounterpartyLocation != nil {
		s.CounterpartyLocation = *e.CounterpartyLocation
	}
	if e.Booking != nil {
		s = fillFromBooking(s, e.Booking)
	}

	if e.Status == models.RideStatusAccepted {
		s.CancelDeadline = e.CancelDeadline
	} else {
		s.CancelDeadline = nil
	}

	return s
}

// startSession builds the next session from an initial status push,
// carrying only the device's own location over from the previous one.
func startSession(prev Session, e StatusPushed) Session {
	s := Session{
		RideID:       e.RideID,
		Status:       e.Status,
		SelfLocation: prev.SelfLocation,
	}

	if e.Counterparty != nil {
		s.Counterparty = *e.Counterparty
	}
	if e.CounterpartyLocation != nil {
		s.CounterpartyLocation = *e.CounterpartyLocation
	}
	if e.Booking != nil {
		s = fillFromBooking(s, e.Booking)
	}
	if e.Status == models.RideStatusAccepted {
		s.CancelDeadline = e.CancelDeadline
	}

	return s
}

func fillFromBooking(s Session, b *models.Booking) Session {
	if s.Pickup == (models.Place{}) {
		s.Pickup = b.PickupCoordinates
	}
	if s.Dropoff == (models.Place{}) {
		s.Dropoff = b.DropoffCoordinates
	}
	if s.SecurityPin == 0 {
		s.SecurityPin = b.SecurityPin
	}
	return s
}

// appendChat copies before appending so earlier session values never
// share a backing array with later ones.
func appendChat(log []models.ChatMessage, m models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(log), len(log)+1)
	copy(out, log)
	return append(out, m)
}
