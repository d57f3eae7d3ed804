package controller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"goride/internal/channel"
	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/session"
	"goride/internal/store"
	"goride/internal/utils"
	"goride/pkg/logger"
	"goride/pkg/maps"
)

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Channel is the realtime adapter surface the controller needs.
// *channel.Adapter satisfies it; tests substitute a fake.
type Channel interface {
	Connect(ctx context.Context, creds channel.Credentials) error
	On(event string, fn channel.HandlerFunc) func()
	Emit(event string, payload interface{}) error
	Disconnect()
}

// LocationSource is the sampler surface. *location.Sampler satisfies it.
type LocationSource interface {
	Start(onUpdate func(models.Coordinate), onError func(error)) error
	Stop()
}

// BookingCreator creates the booking resource backing a ride request.
// *api.Client satisfies it.
type BookingCreator interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
}

type Deps struct {
	Config   *config.RideConfig
	Role     Role
	UserID   string
	Logger   *logger.Logger
	Sampler  LocationSource
	Channel  Channel
	Routes   maps.RouteProvider
	Store    *store.Store
	Bookings BookingCreator
	// Now is the clock; defaults to time.Now. Tests inject a fake.
	Now func() time.Time
}

// Controller wires the sampler, the channel and the route provider into
// the session reducer, derives the renderable view, and exposes the
// user-facing actions. It is the only place session state is mutated,
// and every mutation runs under one mutex, so events take effect in
// exactly the order they are delivered.
type Controller struct {
	cfg      *config.RideConfig
	role     Role
	userID   string
	log      *logger.Logger
	sampler  LocationSource
	adapter  Channel
	routes   maps.RouteProvider
	store    *store.Store
	bookings BookingCreator
	now      func() time.Time

	mu             sync.Mutex
	sess           session.Session
	mounted        bool
	unsubs         []func()
	routeGen       uint64
	lastRouteFor   routeKey
	routeDegraded  bool
	connectionLost bool
	lastError      string
	lastBroadcast  time.Time
}

// routeKey identifies the inputs the current route was computed for.
type routeKey struct {
	origin utils.Point
	status models.RideStatus
	valid  bool
}

func New(deps Deps) *Controller {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		cfg:      deps.Config,
		role:     deps.Role,
		userID:   deps.UserID,
		log:      deps.Logger.WithComponent("controller"),
		sampler:  deps.Sampler,
		adapter:  deps.Channel,
		routes:   deps.Routes,
		store:    deps.Store,
		bookings: deps.Bookings,
		now:      now,
	}
}

// Mount acquires everything the view needs: the location subscription,
// the channel connection and its handlers. The returned error is fatal
// only for the channel; a failed location source degrades to the
// configured default coordinate.
func (c *Controller) Mount(ctx context.Context, creds channel.Credentials) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.mu.Unlock()

	if err := c.sampler.Start(c.onLocation, c.onLocationError); err != nil {
		c.log.WithError(err).Warn("Location unavailable, using default coordinate")
		c.onLocationError(err)
	}

	if err := c.adapter.Connect(ctx, creds); err != nil {
		c.sampler.Stop()
		c.mu.Lock()
		c.mounted = false
		c.mu.Unlock()
		return fmt.Errorf("failed to connect realtime channel: %w", err)
	}

	unsubs := []func(){
		c.adapter.On(channel.EventRideStatus, c.onRideStatus),
		c.adapter.On(channel.EventDriverStartRide, c.onDriverStartRide),
		c.adapter.On(channel.EventReceiveMessage, c.onReceiveMessage),
		c.adapter.On(channel.EventServerError, c.onServerError),
		c.adapter.On(channel.EventConnectionLost, c.onConnectionLost),
	}

	c.mu.Lock()
	c.unsubs = unsubs
	c.mu.Unlock()

	c.maybeQueryRoute()
	return nil
}

// Unmount is the single deterministic teardown: stop sampling, release
// every channel subscription, disconnect, clear the session.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	c.sampler.Stop()
	for _, off := range unsubs {
		off()
	}
	c.adapter.Disconnect()
	c.clearSession()

	c.log.Info("Ride view unmounted")
}

// RequestRide creates the booking over REST, starts a provisional
// Searching session and emits the ride request on the channel.
func (c *Controller) RequestRide(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if c.bookings == nil {
		return nil, fmt.Errorf("booking client not configured")
	}

	booking, err := c.bookings.CreateBooking(ctx, req)
	if err != nil {
		return nil, err
	}

	// A new request displaces whatever session came before it.
	c.clearSession()
	c.apply(session.StatusPushed{
		RideID:  booking.ID,
		Status:  models.RideStatusSearching,
		Booking: booking,
	})

	err = c.adapter.Emit(channel.EventRequestRide, channel.RequestRidePayload{
		Pickup:        channel.PlacePayload{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng, Address: req.Pickup.Address},
		Dropoff:       channel.PlacePayload{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng, Address: req.Dropoff.Address},
		VehicleModel:  req.VehicleModel,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		c.log.WithError(err).Warn("Failed to emit ride request")
	}

	return booking, nil
}

// SubmitPin compares user-entered digits against the session PIN. The
// comparison is local; a match transitions to Started and emits
// rideStarted exactly once, a mismatch changes nothing.
func (c *Controller) SubmitPin(digits string) error {
	entered, err := strconv.Atoi(digits)
	if err != nil {
		c.setError("invalid PIN")
		return session.ErrPinMismatch
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess.Status != models.RideStatusAccepted && sess.Status != models.RideStatusArrivingAtPickup {
		return fmt.Errorf("ride is not awaiting a PIN")
	}

	if entered != sess.SecurityPin {
		c.setError("security PIN does not match")
		c.log.WithRideID(sess.RideID).Warn("PIN mismatch")
		return session.ErrPinMismatch
	}

	c.apply(session.PinVerified{})
	c.clearError()
	if err := c.store.ClearCancelDeadline(sess.RideID); err != nil {
		c.log.WithError(err).Warn("Failed to clear persisted cancel window")
	}

	err = c.adapter.Emit(channel.EventRideStarted, channel.RideStartedPayload{
		BookingID: sess.RideID,
		UserID:    c.userID,
		Location:  channel.LatLng{Lat: sess.SelfLocation.Lat, Lng: sess.SelfLocation.Lng},
	})
	if err != nil {
		c.log.WithError(err).Warn("Failed to emit ride start")
	}

	c.maybeQueryRoute()
	return nil
}

// SendChat appends the message locally before any network confirmation
// and relays it on the channel.
func (c *Controller) SendChat(text string) error {
	if text == "" {
		return fmt.Errorf("empty message")
	}

	now := c.now()

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if !sess.Active() {
		return fmt.Errorf("no active ride")
	}

	c.apply(session.ChatSent{Message: models.ChatMessage{
		Sender:    models.ChatSenderSelf,
		Text:      text,
		Timestamp: now,
	}})

	err := c.adapter.Emit(channel.EventSendMessage, channel.SendMessagePayload{
		BookingID: sess.RideID,
		UserID:    c.userID,
		Sender:    string(c.role),
		Message:   text,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		c.log.WithError(err).Warn("Failed to relay chat message")
	}

	return nil
}

// Cancel emits the cancel intent once and transitions locally, but only
// while the cancellation window is open.
func (c *Controller) Cancel(reason string) error {
	now := c.now()

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if !sess.CanCancel(now) {
		return fmt.Errorf("cancellation window closed")
	}

	if err := c.adapter.Emit(channel.EventCancelRide, channel.CancelRidePayload{
		RideID: sess.RideID,
		Reason: reason,
	}); err != nil {
		c.log.WithError(err).Warn("Failed to emit cancellation")
	}

	c.apply(session.StatusPushed{RideID: sess.RideID, Status: models.RideStatusCancelled})
	if err := c.store.ClearCancelDeadline(sess.RideID); err != nil {
		c.log.WithError(err).Warn("Failed to clear persisted cancel window")
	}

	c.log.WithRideID(sess.RideID).Info("Ride cancelled by user")
	return nil
}

// Complete emits the completion intent. The authoritative transition
// arrives as a rideStatus push, but the local session advances
// immediately so the UI does not wait on the round trip.
func (c *Controller) Complete() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess.Status != models.RideStatusStarted {
		return fmt.Errorf("ride is not in progress")
	}

	if err := c.adapter.Emit(channel.EventRideCompleted, channel.RideCompletedPayload{
		BookingID: sess.RideID,
	}); err != nil {
		c.log.WithError(err).Warn("Failed to emit completion")
	}

	c.apply(session.StatusPushed{RideID: sess.RideID, Status: models.RideStatusCompleted})
	return nil
}

// apply runs one reducer step under the controller lock.
func (c *Controller) apply(ev session.Event) {
	c.mu.Lock()
	c.sess = session.Apply(c.sess, ev)
	c.mu.Unlock()
}

// clearSession resets the session and the route bookkeeping that was
// keyed to it.
func (c *Controller) clearSession() {
	c.mu.Lock()
	c.sess = session.Apply(c.sess, session.SessionCleared{})
	c.lastRouteFor = routeKey{}
	c.routeDegraded = false
	c.lastError = ""
	c.mu.Unlock()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

func (c *Controller) clearError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
}

// Session returns a copy of the current session.
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}
