package controller

import (
	"context"
	"time"

	"goride/internal/models"
	"goride/internal/session"
	"goride/internal/utils"
	"goride/pkg/maps"
	"goride/pkg/metrics"
)

const (
	MarkerSelf         = "self"
	MarkerCounterparty = "counterparty"
	MarkerPickup       = "pickup"
	MarkerDropoff      = "dropoff"
)

type Marker struct {
	Kind    string   `json:"kind"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading,omitempty"`
	Label   string   `json:"label,omitempty"`
}

// View is the renderable projection of the session: markers, route
// overlay, transcript and the state of the cancel action.
type View struct {
	RideID            string               `json:"ride_id"`
	Status            models.RideStatus    `json:"status"`
	Counterparty      models.Counterparty  `json:"counterparty"`
	Markers           []Marker             `json:"markers"`
	Route             *models.RouteInfo    `json:"route,omitempty"`
	ChatLog           []models.ChatMessage `json:"chat_log"`
	CancelAvailable   bool                 `json:"cancel_available"`
	CancelSecondsLeft int                  `json:"cancel_seconds_left"`
	ConnectionLost    bool                 `json:"connection_lost"`
	RouteDegraded     bool                 `json:"route_degraded"`
	LastError         string               `json:"last_error,omitempty"`
}

// View derives the current renderable state. Pickup is marked only
// before the ride starts, dropoff only after; the counterparty marker
// is always shown once its position is known.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	now := c.now()

	v := View{
		RideID:            sess.RideID,
		Status:            sess.Status,
		Counterparty:      sess.Counterparty,
		Route:             sess.Route,
		ChatLog:           sess.ChatLog,
		CancelAvailable:   sess.CanCancel(now),
		CancelSecondsLeft: sess.CancelSecondsLeft(now),
		ConnectionLost:    c.connectionLost,
		RouteDegraded:     c.routeDegraded,
		LastError:         c.lastError,
	}

	if !sess.SelfLocation.IsZero() {
		v.Markers = append(v.Markers, Marker{
			Kind:    MarkerSelf,
			Lat:     sess.SelfLocation.Lat,
			Lng:     sess.SelfLocation.Lng,
			Heading: sess.SelfLocation.Heading,
		})
	}
	if sess.Active() && !sess.CounterpartyLocation.IsZero() {
		v.Markers = append(v.Markers, Marker{
			Kind:  MarkerCounterparty,
			Lat:   sess.CounterpartyLocation.Lat,
			Lng:   sess.CounterpartyLocation.Lng,
			Label: sess.Counterparty.Name,
		})
	}

	started := sess.Status == models.RideStatusStarted || sess.Status == models.RideStatusCompleted
	if sess.Active() && !started && sess.Pickup != (models.Place{}) {
		v.Markers = append(v.Markers, Marker{
			Kind:  MarkerPickup,
			Lat:   sess.Pickup.Lat,
			Lng:   sess.Pickup.Lng,
			Label: sess.Pickup.Address,
		})
	}
	if started && sess.Dropoff != (models.Place{}) {
		v.Markers = append(v.Markers, Marker{
			Kind:  MarkerDropoff,
			Lat:   sess.Dropoff.Lat,
			Lng:   sess.Dropoff.Lng,
			Label: sess.Dropoff.Address,
		})
	}

	return v
}

// maybeQueryRoute re-derives the route overlay when the status changed
// or the relevant origin moved past the refresh threshold. The actual
// query runs asynchronously; a generation counter makes sure only the
// newest in-flight response ever lands.
func (c *Controller) maybeQueryRoute() {
	if c.routes == nil {
		return
	}

	c.mu.Lock()
	sess := c.sess
	if !sess.Active() {
		c.mu.Unlock()
		return
	}

	origin, dest, ok := routeEndpoints(sess, c.role)
	if !ok {
		c.mu.Unlock()
		return
	}

	if c.lastRouteFor.valid && c.lastRouteFor.status == sess.Status &&
		utils.DistanceMeters(c.lastRouteFor.origin, origin) < c.cfg.RouteRefreshMeters {
		c.mu.Unlock()
		return
	}

	c.routeGen++
	gen := c.routeGen
	c.lastRouteFor = routeKey{origin: origin, status: sess.Status, valid: true}
	rideID := sess.RideID
	c.mu.Unlock()

	go c.queryRoute(gen, rideID, origin, dest)
}

func (c *Controller) queryRoute(gen uint64, rideID string, origin, dest utils.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RouteQueryTimeout)
	defer cancel()

	start := time.Now()
	route, err := c.routes.GetRoute(ctx,
		maps.Location{Latitude: origin.Lat, Longitude: origin.Lng},
		maps.Location{Latitude: dest.Lat, Longitude: dest.Lng})
	metrics.RecordRouteQuery(c.routes.Name(), err, time.Since(start))

	if err != nil {
		// Keep showing the previous route; just flag the degradation.
		c.mu.Lock()
		c.routeDegraded = true
		c.mu.Unlock()
		c.log.WithError(err).Warn("Route query failed, keeping previous route")
		return
	}

	c.mu.Lock()
	stale := gen != c.routeGen || c.sess.RideID != rideID || !c.sess.Active()
	if !stale {
		c.routeDegraded = false
		c.sess = session.Apply(c.sess, session.RouteUpdated{Route: models.RouteInfo{
			Polyline:        route.Polyline,
			ETAText:         route.ETAText,
			DistanceText:    route.DistanceText,
			DistanceMeters:  route.DistanceMeters,
			DurationSeconds: route.DurationSeconds,
		}})
	}
	c.mu.Unlock()
}

// routeEndpoints picks which leg to draw: pickup preview while
// searching, the approaching driver's leg to the pickup before the ride
// starts, and the in-ride leg to the dropoff after.
func routeEndpoints(sess session.Session, role Role) (origin, dest utils.Point, ok bool) {
	switch sess.Status {
	case models.RideStatusSearching:
		origin = utils.Point{Lat: sess.Pickup.Lat, Lng: sess.Pickup.Lng}
		dest = utils.Point{Lat: sess.Dropoff.Lat, Lng: sess.Dropoff.Lng}

	case models.RideStatusAccepted, models.RideStatusArrivingAtPickup:
		if role == RoleDriver {
			origin = utils.Point{Lat: sess.SelfLocation.Lat, Lng: sess.SelfLocation.Lng}
		} else {
			origin = utils.Point{Lat: sess.CounterpartyLocation.Lat, Lng: sess.CounterpartyLocation.Lng}
		}
		dest = utils.Point{Lat: sess.Pickup.Lat, Lng: sess.Pickup.Lng}

	case models.RideStatusStarted:
		origin = utils.Point{Lat: sess.SelfLocation.Lat, Lng: sess.SelfLocation.Lng}
		dest = utils.Point{Lat: sess.Dropoff.Lat, Lng: sess.Dropoff.Lng}

	default:
		return origin, dest, false
	}

	if origin == (utils.Point{}) || dest == (utils.Point{}) {
		return origin, dest, false
	}
	return origin, dest, true
}
