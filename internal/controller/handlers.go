package controller

import (
	"encoding/json"
	"time"

	"goride/internal/channel"
	"goride/internal/models"
	"goride/internal/session"
	"goride/pkg/metrics"
)

// onLocation feeds one normalized sample into the reducer, rebroadcasts
// it on the channel, and re-derives the route if warranted.
func (c *Controller) onLocation(sample models.Coordinate) {
	c.apply(session.SelfLocationUpdated{Location: sample})
	c.broadcastLocation(sample)
	c.maybeQueryRoute()
}

// onLocationError substitutes the configured default coordinate so map
// rendering never blocks on a missing fix.
func (c *Controller) onLocationError(err error) {
	c.log.WithError(err).Warn("Falling back to default coordinate")

	c.mu.Lock()
	haveFix := !c.sess.SelfLocation.IsZero()
	c.mu.Unlock()
	if haveFix {
		return
	}

	c.apply(session.SelfLocationUpdated{Location: models.Coordinate{
		Lat:       c.cfg.DefaultLatitude,
		Lng:       c.cfg.DefaultLongitude,
		Timestamp: c.now(),
	}})
}

// broadcastLocation relays the device position, rate-limited by the
// configured broadcast frequency. Only positions during an active ride
// are relayed.
func (c *Controller) broadcastLocation(sample models.Coordinate) {
	c.mu.Lock()
	sess := c.sess
	now := c.now()
	var minGap time.Duration
	if c.cfg.LocationBroadcastHz > 0 {
		minGap = time.Duration(float64(time.Second) / c.cfg.LocationBroadcastHz)
	}
	if !sess.Active() || (minGap > 0 && now.Sub(c.lastBroadcast) < minGap) {
		c.mu.Unlock()
		return
	}
	c.lastBroadcast = now
	c.mu.Unlock()

	err := c.adapter.Emit(channel.EventLocationUpdate, channel.LocationUpdatePayload{
		RideID:  sess.RideID,
		UserID:  c.userID,
		Lat:     sample.Lat,
		Lng:     sample.Lng,
		Heading: sample.Heading,
	})
	if err != nil {
		c.log.WithError(err).Debug("Location broadcast skipped")
	}
}

func (c *Controller) onRideStatus(data json.RawMessage) {
	payload, status, err := channel.DecodeRideStatus(data)
	if err != nil {
		metrics.ChannelInvalidEventsTotal.Inc()
		c.log.WithError(err).Warn("Dropping malformed ride status push")
		return
	}

	ev := session.StatusPushed{
		RideID: payload.RideID,
		Status: status,
	}
	if payload.Counterparty != nil {
		ev.Counterparty = payload.Counterparty
	} else if payload.CounterpartyID != "" {
		ev.Counterparty = &models.Counterparty{ID: payload.CounterpartyID}
	}
	if payload.CounterpartyLocation != nil {
		ev.CounterpartyLocation = &models.Coordinate{
			Lat:       payload.CounterpartyLocation.Lat,
			Lng:       payload.CounterpartyLocation.Lng,
			Timestamp: c.now(),
		}
	}
	if payload.Booking != nil {
		ev.Booking = &models.Booking{
			ID: payload.RideID,
			PickupCoordinates: models.Place{
				Lat:     payload.Booking.PickupCoordinates.Lat,
				Lng:     payload.Booking.PickupCoordinates.Lng,
				Address: payload.Booking.PickupCoordinates.Address,
			},
			DropoffCoordinates: models.Place{
				Lat:     payload.Booking.DropoffCoordinates.Lat,
				Lng:     payload.Booking.DropoffCoordinates.Lng,
				Address: payload.Booking.DropoffCoordinates.Address,
			},
			SecurityPin:  payload.Booking.SecurityPin,
			VehicleModel: payload.Booking.VehicleModel,
		}
	}

	if status == models.RideStatusAccepted {
		deadline := c.restoreOrStartCancelWindow(payload.RideID)
		ev.CancelDeadline = &deadline
	}

	c.apply(ev)
	metrics.RideEventsTotal.WithLabelValues(string(status)).Inc()
	c.log.LogRideEvent(payload.RideID, string(status), nil)

	if status.IsTerminal() {
		if err := c.store.ClearCancelDeadline(payload.RideID); err != nil {
			c.log.WithError(err).Warn("Failed to clear persisted cancel window")
		}
	}

	c.maybeQueryRoute()
}

// restoreOrStartCancelWindow resumes a persisted countdown after a
// restart, or opens a fresh one.
func (c *Controller) restoreOrStartCancelWindow(rideID string) time.Time {
	if deadline, ok := c.store.CancelDeadline(rideID); ok {
		return deadline
	}

	deadline := c.now().Add(c.cfg.CancelWindow)
	if err := c.store.SetCancelDeadline(rideID, deadline); err != nil {
		c.log.WithError(err).Warn("Failed to persist cancel window")
	}
	return deadline
}

// onDriverStartRide is the arrival signal: the driver is at the pickup
// point.
func (c *Controller) onDriverStartRide(data json.RawMessage) {
	payload, err := channel.DecodeDriverStartRide(data)
	if err != nil {
		metrics.ChannelInvalidEventsTotal.Inc()
		c.log.WithError(err).Warn("Dropping malformed arrival signal")
		return
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if !sess.Active() {
		return
	}

	rideID := payload.RideID
	if rideID == "" {
		rideID = sess.RideID
	}

	ev := session.StatusPushed{
		RideID: rideID,
		Status: models.RideStatusArrivingAtPickup,
	}
	if payload.Location != nil {
		ev.CounterpartyLocation = &models.Coordinate{
			Lat:       payload.Location.Lat,
			Lng:       payload.Location.Lng,
			Timestamp: c.now(),
		}
	}

	c.apply(ev)
	c.maybeQueryRoute()
}

func (c *Controller) onReceiveMessage(data json.RawMessage) {
	payload, err := channel.DecodeReceiveMessage(data)
	if err != nil {
		metrics.ChannelInvalidEventsTotal.Inc()
		c.log.WithError(err).Warn("Dropping malformed chat relay")
		return
	}

	c.apply(session.ChatReceived{Message: models.ChatMessage{
		Sender:    models.ChatSenderCounterparty,
		Text:      payload.Message,
		Timestamp: channel.ParseMessageTimestamp(payload.Timestamp, c.now()),
	}})
}

func (c *Controller) onServerError(data json.RawMessage) {
	var payload channel.ServerErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		c.log.Warn("Server reported an unspecified error")
		return
	}

	c.setError(payload.Message)
	c.log.WithField("server_message", payload.Message).Warn("Server reported an error")
}

func (c *Controller) onConnectionLost(json.RawMessage) {
	c.mu.Lock()
	c.connectionLost = true
	c.mu.Unlock()
	c.log.Error("Realtime connection lost")
}
