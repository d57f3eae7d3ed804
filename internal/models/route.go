package models

// RouteInfo is the renderable result of a directions query: an encoded
// polyline plus human-readable ETA and distance. It is derived state,
// recomputed by the controller and never hand-edited.
type RouteInfo struct {
	Polyline        string  `json:"polyline"`
	ETAText         string  `json:"eta_text"`
	DistanceText    string  `json:"distance_text"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
}
