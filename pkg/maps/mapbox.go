package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken string) *MapboxProvider {
	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     "https://api.mapbox.com",
	}
}

func (m *MapboxProvider) Name() string {
	return "mapbox"
}

func (m *MapboxProvider) GetRoute(ctx context.Context, origin, destination Location) (*Route, error) {
	apiURL := fmt.Sprintf("%s/directions/v5/mapbox/driving/%f,%f;%f,%f?access_token=%s&overview=full&geometries=polyline",
		m.baseURL, origin.Longitude, origin.Latitude, destination.Longitude, destination.Latitude, m.accessToken)

	body, err := m.get(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}

	var mapboxResp struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"` // meters
			Duration float64 `json:"duration"` // seconds
			Geometry string  `json:"geometry"`
		} `json:"routes"`
	}

	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse directions response: %v", ErrRouteUnavailable, err)
	}

	if mapboxResp.Code != "Ok" || len(mapboxResp.Routes) == 0 {
		return nil, fmt.Errorf("%w: no route between origin and destination", ErrRouteUnavailable)
	}

	route := mapboxResp.Routes[0]
	seconds := int(math.Round(route.Duration))

	return &Route{
		Polyline:        route.Geometry,
		ETAText:         formatDuration(seconds),
		DistanceText:    formatDistance(route.Distance),
		DistanceMeters:  route.Distance,
		DurationSeconds: seconds,
	}, nil
}

func (m *MapboxProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json?access_token=%s&limit=1",
		m.baseURL, lng, lat, m.accessToken)

	body, err := m.get(ctx, apiURL)
	if err != nil {
		return "", err
	}

	var mapboxResp struct {
		Features []struct {
			PlaceName string `json:"place_name"`
		} `json:"features"`
	}

	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		return "", fmt.Errorf("failed to parse geocoding response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return "", fmt.Errorf("reverse geocoding returned no results for %f,%f", lat, lng)
	}

	return mapboxResp.Features[0].PlaceName, nil
}

func (m *MapboxProvider) get(ctx context.Context, apiURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Mapbox API error: %s", string(body))
	}

	return body, nil
}

func formatDuration(seconds int) string {
	minutes := (seconds + 59) / 60
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d hr %d min", minutes/60, minutes%60)
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}
