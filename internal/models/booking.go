package models

import (
	"time"
)

// Booking mirrors the backend's booking resource as returned by the
// REST surface (creation and history).
type Booking struct {
	ID                 string     `json:"id"`
	RiderID            string     `json:"rider_id"`
	DriverID           string     `json:"driver_id,omitempty"`
	Status             string     `json:"status"`
	PickupCoordinates  Place      `json:"pickup_coordinates"`
	DropoffCoordinates Place      `json:"dropoff_coordinates"`
	VehicleModel       string     `json:"vehicle_model,omitempty"`
	SecurityPin        int        `json:"security_pin,omitempty"`
	EstimatedFare      float64    `json:"estimated_fare,omitempty"`
	ScheduledTime      *time.Time `json:"scheduled_time,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

type BookingRequest struct {
	Pickup        Place      `json:"pickup"`
	Dropoff       Place      `json:"dropoff"`
	VehicleModel  string     `json:"vehicle_model"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}
