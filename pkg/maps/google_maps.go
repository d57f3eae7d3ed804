package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client: client,
	}, nil
}

func (g *GoogleMapsProvider) Name() string {
	return "google"
}

func (g *GoogleMapsProvider) GetRoute(ctx context.Context, origin, destination Location) (*Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude),
		Destination: fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude),
		Mode:        maps.TravelModeDriving,
	}

	resp, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: directions request failed: %v", ErrRouteUnavailable, err)
	}

	if len(resp) == 0 || len(resp[0].Legs) == 0 {
		return nil, fmt.Errorf("%w: no route between origin and destination", ErrRouteUnavailable)
	}

	leg := resp[0].Legs[0]

	return &Route{
		Polyline:        resp[0].OverviewPolyline.Points,
		ETAText:         leg.Duration.String(),
		DistanceText:    leg.Distance.HumanReadable,
		DistanceMeters:  float64(leg.Distance.Meters),
		DurationSeconds: int(leg.Duration.Seconds()),
	}, nil
}

func (g *GoogleMapsProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	}

	resp, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}

	if len(resp) == 0 {
		return "", fmt.Errorf("reverse geocoding returned no results for %f,%f", lat, lng)
	}

	return resp[0].FormattedAddress, nil
}
