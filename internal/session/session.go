package session

import (
	"errors"
	"time"

	"goride/internal/models"
)

// ErrPinMismatch is returned when user-entered digits do not match the
// ride's security PIN. Local-only and user-correctable.
var ErrPinMismatch = errors.New("security pin mismatch")

// Session is the one active ride this client cares about. It is owned
// exclusively by the reducer: every mutation goes through Apply, and
// location sources, the channel and the route service only produce
// events that are fed into it.
type Session struct {
	RideID               string               `json:"ride_id"`
	Status               models.RideStatus    `json:"status"`
	Counterparty         models.Counterparty  `json:"counterparty"`
	Pickup               models.Place         `json:"pickup"`
	Dropoff              models.Place         `json:"dropoff"`
	SelfLocation         models.Coordinate    `json:"self_location"`
	CounterpartyLocation models.Coordinate    `json:"counterparty_location"`
	SecurityPin          int                  `json:"security_pin,omitempty"`
	Route                *models.RouteInfo    `json:"route,omitempty"`
	ChatLog              []models.ChatMessage `json:"chat_log"`
	CancelDeadline       *time.Time           `json:"cancel_deadline,omitempty"`
}

// Active reports whether a ride session exists and has not terminated.
func (s Session) Active() bool {
	return s.RideID != "" && !s.Status.IsTerminal()
}

// CanCancel reports whether the user cancel action is still available at
// the given instant: only while Accepted, and only inside the window.
func (s Session) CanCancel(now time.Time) bool {
	if s.Status != models.RideStatusAccepted {
		return false
	}
	if s.CancelDeadline == nil {
		return false
	}
	return now.Before(*s.CancelDeadline)
}

// CancelSecondsLeft derives the remaining countdown, zero-floored.
func (s Session) CancelSecondsLeft(now time.Time) int {
	if s.CancelDeadline == nil {
		return 0
	}
	left := s.CancelDeadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds() + 0.999)
}
