package models

type RideStatus string

const (
	RideStatusSearching        RideStatus = "searching"
	RideStatusAccepted         RideStatus = "accepted"
	RideStatusArrivingAtPickup RideStatus = "arriving_at_pickup"
	RideStatusStarted          RideStatus = "started"
	RideStatusCompleted        RideStatus = "completed"
	RideStatusCancelled        RideStatus = "cancelled"
	RideStatusFailed           RideStatus = "failed"
)

// IsTerminal reports whether no further lifecycle event applies to a ride
// in this status.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusFailed:
		return true
	}
	return false
}

func (s RideStatus) IsValid() bool {
	switch s {
	case RideStatusSearching, RideStatusAccepted, RideStatusArrivingAtPickup,
		RideStatusStarted, RideStatusCompleted, RideStatusCancelled, RideStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces the monotonic lifecycle: forward-only, with
// Cancelled and Failed reachable from any non-terminal, non-started status.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case RideStatusAccepted:
		return s == RideStatusSearching
	case RideStatusArrivingAtPickup:
		return s == RideStatusAccepted
	case RideStatusStarted:
		return s == RideStatusAccepted || s == RideStatusArrivingAtPickup
	case RideStatusCompleted:
		return s == RideStatusStarted
	case RideStatusCancelled, RideStatusFailed:
		return s == RideStatusSearching || s == RideStatusAccepted || s == RideStatusArrivingAtPickup
	}
	return false
}

// ParseRideStatus maps the wire spellings the backend uses onto the
// client statuses. Unknown values parse to "" and false.
func ParseRideStatus(raw string) (RideStatus, bool) {
	switch raw {
	case "searching", "requested", "pending":
		return RideStatusSearching, true
	case "accepted":
		return RideStatusAccepted, true
	case "arriving", "arrived", "driver_arrived", "arriving_at_pickup":
		return RideStatusArrivingAtPickup, true
	case "started", "in_progress", "ongoing":
		return RideStatusStarted, true
	case "completed":
		return RideStatusCompleted, true
	case "cancelled", "canceled":
		return RideStatusCancelled, true
	case "failed", "no_show":
		return RideStatusFailed, true
	}
	return "", false
}
