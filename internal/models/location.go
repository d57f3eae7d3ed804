package models

import (
	"time"
)

// Coordinate is a single geographic position as seen by the client,
// optionally carrying the device heading at the time of the fix.
type Coordinate struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0 && c.Timestamp.IsZero()
}

// Place is a coordinate with its resolved street address. Pickup and
// dropoff points are places; they never change once a ride is created.
type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (p Place) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lng: p.Lng}
}
