package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"goride/internal/models"
)

var (
	// ErrChannelDisconnected reports that the realtime connection is
	// down and automatic retries, if any were left, did not restore it.
	ErrChannelDisconnected = errors.New("channel disconnected")

	// ErrInvalidServerEvent reports a malformed inbound payload. Such
	// frames are logged, counted and dropped; they never reach the
	// reducer.
	ErrInvalidServerEvent = errors.New("invalid server event")
)

// Inbound event names.
const (
	EventRideStatus      = "rideStatus"
	EventDriverStartRide = "driverStartRide"
	EventReceiveMessage  = "receiveMessage"
	EventTokensUpdated   = "tokens-updated"
	EventServerError     = "error"

	// EventConnectionLost is synthesized by the adapter itself when the
	// bounded reconnect budget is exhausted.
	EventConnectionLost = "connection-lost"
)

// Outbound event names.
const (
	EventRequestRide    = "requestRide"
	EventRideStarted    = "rideStarted"
	EventSendMessage    = "sendMessage"
	EventCancelRide     = "cancelRide"
	EventRideCompleted  = "rideCompleted"
	EventLocationUpdate = "locationUpdate"
)

// Envelope is the wire framing for both directions: an event name, a
// unix timestamp and an opaque payload.
type Envelope struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type PlacePayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// RideStatusPayload mirrors the backend's rideStatus push.
type RideStatusPayload struct {
	RideID               string               `json:"rideId"`
	Status               string               `json:"status"`
	Message              string               `json:"message,omitempty"`
	CounterpartyID       string               `json:"counterpartyId,omitempty"`
	Counterparty         *models.Counterparty `json:"counterparty,omitempty"`
	CounterpartyLocation *LatLng              `json:"counterpartyLocation,omitempty"`
	Booking              *BookingPayload      `json:"booking,omitempty"`
}

type BookingPayload struct {
	PickupCoordinates  PlacePayload `json:"pickupCoordinates"`
	DropoffCoordinates PlacePayload `json:"dropoffCoordinates"`
	SecurityPin        int          `json:"securityPin,omitempty"`
	VehicleModel       string       `json:"vehicleModel,omitempty"`
}

type DriverStartRidePayload struct {
	RideID   string  `json:"rideId,omitempty"`
	Location *LatLng `json:"location,omitempty"`
}

type ReceiveMessagePayload struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type TokensUpdatedPayload struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type ServerErrorPayload struct {
	Message string `json:"message"`
}

// Outbound payloads.

type RequestRidePayload struct {
	Pickup        PlacePayload `json:"pickup"`
	Dropoff       PlacePayload `json:"dropoff"`
	VehicleModel  string       `json:"vehicleModel"`
	ScheduledTime *time.Time   `json:"scheduledTime,omitempty"`
}

type RideStartedPayload struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	Location  LatLng `json:"location"`
}

type SendMessagePayload struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type CancelRidePayload struct {
	RideID string `json:"rideId"`
	Reason string `json:"reason,omitempty"`
}

type RideCompletedPayload struct {
	BookingID string `json:"bookingId"`
}

type LocationUpdatePayload struct {
	RideID  string   `json:"rideId,omitempty"`
	UserID  string   `json:"userId"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading,omitempty"`
}

// DecodeRideStatus validates a rideStatus push. The ride ID must be
// present and the status must map onto a known lifecycle value.
func DecodeRideStatus(data json.RawMessage) (*RideStatusPayload, models.RideStatus, error) {
	var p RideStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, "", fmt.Errorf("%w: rideStatus: %v", ErrInvalidServerEvent, err)
	}
	if p.RideID == "" {
		return nil, "", fmt.Errorf("%w: rideStatus missing rideId", ErrInvalidServerEvent)
	}
	status, ok := models.ParseRideStatus(p.Status)
	if !ok {
		return nil, "", fmt.Errorf("%w: rideStatus has unknown status %q", ErrInvalidServerEvent, p.Status)
	}
	return &p, status, nil
}

func DecodeDriverStartRide(data json.RawMessage) (*DriverStartRidePayload, error) {
	var p DriverStartRidePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: driverStartRide: %v", ErrInvalidServerEvent, err)
	}
	return &p, nil
}

func DecodeReceiveMessage(data json.RawMessage) (*ReceiveMessagePayload, error) {
	var p ReceiveMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: receiveMessage: %v", ErrInvalidServerEvent, err)
	}
	if p.Message == "" {
		return nil, fmt.Errorf("%w: receiveMessage missing message", ErrInvalidServerEvent)
	}
	return &p, nil
}

func DecodeTokensUpdated(data json.RawMessage) (*TokensUpdatedPayload, error) {
	var p TokensUpdatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: tokens-updated: %v", ErrInvalidServerEvent, err)
	}
	if p.Token == "" {
		return nil, fmt.Errorf("%w: tokens-updated missing token", ErrInvalidServerEvent)
	}
	return &p, nil
}

// ParseMessageTimestamp reads the ISO timestamp on a chat relay,
// falling back to the given instant when absent or unparseable.
func ParseMessageTimestamp(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return fallback
}
