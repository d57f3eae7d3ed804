package maps

import (
	"context"
	"errors"
)

// ErrRouteUnavailable wraps every provider failure, including the case
// where the provider answers but has no route between the two points.
// Callers keep displaying the previous route when they see it.
var ErrRouteUnavailable = errors.New("route unavailable")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route is the renderable subset of a directions response.
type Route struct {
	Polyline        string  `json:"polyline"`
	ETAText         string  `json:"eta_text"`
	DistanceText    string  `json:"distance_text"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
}

type RouteProvider interface {
	// GetRoute queries driving directions between two coordinates.
	GetRoute(ctx context.Context, origin, destination Location) (*Route, error)
	// ReverseGeocode resolves a coordinate to a human-readable address.
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}
