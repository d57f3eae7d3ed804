package utils

import (
	"fmt"
	"math"
)

const EarthRadiusKM = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func IsValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func NormalizeCoordinates(lat, lng float64) (float64, float64) {
	// Clamp latitude to [-90, 90]
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}

	// Wrap longitude to [-180, 180]
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}

	return lat, lng
}

// NormalizeHeading wraps a compass heading to [0, 360).
func NormalizeHeading(heading float64) float64 {
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func CalculateDistance(lat1, lng1, lat2, lng2 float64) float64 {
	return haversineDistance(lat1, lng1, lat2, lng2)
}

// DistanceMeters returns the great-circle distance between two points in meters.
func DistanceMeters(a, b Point) float64 {
	return haversineDistance(a.Lat, a.Lng, b.Lat, b.Lng) * 1000
}

func haversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lng1Rad := lng1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lng2Rad := lng2 * math.Pi / 180

	dLat := lat2Rad - lat1Rad
	dLng := lng2Rad - lng1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	// Distance in kilometers
	return EarthRadiusKM * c
}

func CalculateBearing(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dLng)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	bearing = math.Mod(bearing+360, 360)

	return bearing
}

func EstimateETAMinutes(distanceKM float64, averageSpeedKMH float64) int {
	if averageSpeedKMH <= 0 {
		averageSpeedKMH = 30 // Default city speed
	}

	timeHours := distanceKM / averageSpeedKMH
	timeMinutes := timeHours * 60

	return int(math.Ceil(timeMinutes))
}
