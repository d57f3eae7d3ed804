package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCoordinates(t *testing.T) {
	assert.True(t, IsValidCoordinates(12.9716, 77.5946))
	assert.True(t, IsValidCoordinates(-90, 180))
	assert.False(t, IsValidCoordinates(90.1, 0))
	assert.False(t, IsValidCoordinates(0, -180.5))
}

func TestNormalizeCoordinates(t *testing.T) {
	lat, lng := NormalizeCoordinates(95, 190)
	assert.Equal(t, 90.0, lat)
	assert.Equal(t, -170.0, lng)

	lat, lng = NormalizeCoordinates(-95, -190)
	assert.Equal(t, -90.0, lat)
	assert.Equal(t, 170.0, lng)
}

func TestNormalizeHeading(t *testing.T) {
	assert.Equal(t, 90.0, NormalizeHeading(450))
	assert.Equal(t, 270.0, NormalizeHeading(-90))
	assert.Equal(t, 0.0, NormalizeHeading(360))
}

func TestDistanceMeters(t *testing.T) {
	// Bangalore city center to the airport, roughly 31.7 km.
	d := DistanceMeters(Point{Lat: 12.9716, Lng: 77.5946}, Point{Lat: 13.1986, Lng: 77.7066})
	assert.InDelta(t, 27700, d, 1500)

	assert.Zero(t, DistanceMeters(Point{Lat: 1, Lng: 1}, Point{Lat: 1, Lng: 1}))
}

func TestCalculateBearing(t *testing.T) {
	// Due east along the equator.
	assert.InDelta(t, 90, CalculateBearing(0, 0, 0, 1), 0.5)
	// Due north.
	assert.InDelta(t, 0, CalculateBearing(0, 0, 1, 0), 0.5)
}
