package controller

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goride/internal/channel"
	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/session"
	"goride/internal/store"
	"goride/pkg/logger"
	"goride/pkg/maps"
)

type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]channel.HandlerFunc
	emitted  []emittedEvent
	emitErr  error
}

type emittedEvent struct {
	event   string
	payload interface{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]channel.HandlerFunc)}
}

func (f *fakeChannel) Connect(ctx context.Context, creds channel.Credentials) error { return nil }

func (f *fakeChannel) On(event string, fn channel.HandlerFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], fn)
	return func() {}
}

func (f *fakeChannel) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, emittedEvent{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) Disconnect() {}

// push delivers a server event the way the adapter would: as raw JSON.
func (f *fakeChannel) push(t *testing.T, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	f.mu.Lock()
	fns := append([]channel.HandlerFunc(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(raw)
	}
}

func (f *fakeChannel) emittedEvents(event string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeSampler struct {
	onUpdate func(models.Coordinate)
	onError  func(error)
	startErr error
	stopped  bool
}

func (f *fakeSampler) Start(onUpdate func(models.Coordinate), onError func(error)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.onUpdate = onUpdate
	f.onError = onError
	return nil
}

func (f *fakeSampler) Stop() { f.stopped = true }

type fakeRoutes struct {
	mu       sync.Mutex
	calls    int
	route    *maps.Route
	err      error
	blocking bool
	pending  []chan *maps.Route // one per call while blocking
}

func (f *fakeRoutes) GetRoute(ctx context.Context, origin, dest maps.Location) (*maps.Route, error) {
	f.mu.Lock()
	f.calls++
	route, err := f.route, f.err
	var block chan *maps.Route
	if f.blocking {
		block = make(chan *maps.Route, 1)
		f.pending = append(f.pending, block)
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case r := <-block:
			return r, nil
		case <-ctx.Done():
			return nil, maps.ErrRouteUnavailable
		}
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		route = &maps.Route{Polyline: "poly", ETAText: "5 mins", DistanceText: "2 km", DistanceMeters: 2000, DurationSeconds: 300}
	}
	return route, nil
}

// release completes the i-th blocked call with the given route.
func (f *fakeRoutes) release(i int, route *maps.Route) {
	f.mu.Lock()
	ch := f.pending[i]
	f.mu.Unlock()
	ch <- route
}

func (f *fakeRoutes) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return "somewhere", nil
}

func (f *fakeRoutes) Name() string { return "fake" }

func (f *fakeRoutes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	ctrl    *Controller
	channel *fakeChannel
	sampler *fakeSampler
	routes  *fakeRoutes
	store   *store.Store
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, role Role) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	ch := newFakeChannel()
	sampler := &fakeSampler{}
	routes := &fakeRoutes{}

	ctrl := New(Deps{
		Config: &config.RideConfig{
			CancelWindow:       30 * time.Second,
			RouteRefreshMeters: 20,
			RouteQueryTimeout:  time.Second,
			DefaultLatitude:    12.9716,
			DefaultLongitude:   77.5946,
		},
		Role:    role,
		UserID:  "u-1",
		Logger:  logger.NewNop(),
		Sampler: sampler,
		Channel: ch,
		Routes:  routes,
		Store:   st,
		Now:     clock.Now,
	})

	require.NoError(t, ctrl.Mount(context.Background(), channel.Credentials{UserID: "u-1", Role: string(role)}))
	t.Cleanup(ctrl.Unmount)

	return &fixture{ctrl: ctrl, channel: ch, sampler: sampler, routes: routes, store: st, clock: clock}
}

func acceptedPush() map[string]interface{} {
	return map[string]interface{}{
		"rideId": "ride-1",
		"status": "accepted",
		"counterparty": map[string]interface{}{
			"id":   "drv-1",
			"name": "Asha",
		},
		"counterpartyLocation": map[string]float64{"lat": 10, "lng": 10},
		"booking": map[string]interface{}{
			"pickupCoordinates":  map[string]interface{}{"lat": 11, "lng": 11, "address": "MG Road"},
			"dropoffCoordinates": map[string]interface{}{"lat": 12, "lng": 12, "address": "Airport"},
			"securityPin":        482913,
		},
	}
}

func markerKinds(v View) []string {
	var kinds []string
	for _, m := range v.Markers {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

func waitForCalls(t *testing.T, routes *fakeRoutes, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if routes.callCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("route provider never reached %d calls (got %d)", n, routes.callCount())
}

func waitForRoute(t *testing.T, ctrl *Controller, polyline string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r := ctrl.Session().Route; r != nil && r.Polyline == polyline {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("route %q never applied", polyline)
}

func TestAcceptedPushStartsSessionWithCancelWindow(t *testing.T) {
	f := newFixture(t, RoleRider)

	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	v := f.ctrl.View()
	assert.Equal(t, "ride-1", v.RideID)
	assert.Equal(t, models.RideStatusAccepted, v.Status)
	assert.Equal(t, "Asha", v.Counterparty.Name)
	assert.Contains(t, markerKinds(v), MarkerPickup)
	assert.Contains(t, markerKinds(v), MarkerCounterparty)
	assert.NotContains(t, markerKinds(v), MarkerDropoff)
	assert.True(t, v.CancelAvailable)
	assert.Equal(t, 30, v.CancelSecondsLeft)

	// The deadline is persisted so a restart resumes the countdown.
	_, ok := f.store.CancelDeadline("ride-1")
	assert.True(t, ok)
}

func TestMatchingPinStartsRide(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	require.NoError(t, f.ctrl.SubmitPin("482913"))

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusStarted, v.Status)
	assert.NotContains(t, markerKinds(v), MarkerPickup)
	assert.Contains(t, markerKinds(v), MarkerDropoff)
	assert.False(t, v.CancelAvailable)
	assert.Empty(t, v.LastError)

	started := f.channel.emittedEvents(channel.EventRideStarted)
	require.Len(t, started, 1)
	payload := started[0].payload.(channel.RideStartedPayload)
	assert.Equal(t, "ride-1", payload.BookingID)

	// The persisted countdown is gone once the ride starts.
	_, ok := f.store.CancelDeadline("ride-1")
	assert.False(t, ok)
}

func TestMismatchedPinChangesNothing(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	err := f.ctrl.SubmitPin("000000")
	assert.ErrorIs(t, err, session.ErrPinMismatch)

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusAccepted, v.Status)
	assert.NotEmpty(t, v.LastError)
	assert.Empty(t, f.channel.emittedEvents(channel.EventRideStarted))

	// Non-numeric input is a mismatch too, not a crash.
	assert.ErrorIs(t, f.ctrl.SubmitPin("oops"), session.ErrPinMismatch)
}

func TestServerCancellationIsTerminal(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.channel.push(t, channel.EventRideStatus, map[string]string{"rideId": "ride-1", "status": "cancelled"})
	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusCancelled, v.Status)
	assert.False(t, v.CancelAvailable)

	// Later pushes for the same ride are absorbed.
	f.channel.push(t, channel.EventRideStatus, map[string]string{"rideId": "ride-1", "status": "in_progress"})
	f.channel.push(t, channel.EventReceiveMessage, map[string]string{"sender": "driver", "message": "wait"})
	v = f.ctrl.View()
	assert.Equal(t, models.RideStatusCancelled, v.Status)
	assert.Empty(t, v.ChatLog)
}

func TestChatAppendsOptimisticallyAndKeepsEcho(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	require.NoError(t, f.ctrl.SendChat("On my way"))

	v := f.ctrl.View()
	require.Len(t, v.ChatLog, 1)
	assert.Equal(t, models.ChatSenderSelf, v.ChatLog[0].Sender)

	sent := f.channel.emittedEvents(channel.EventSendMessage)
	require.Len(t, sent, 1)

	// The server echo of the same text is a distinct inbound entry.
	f.channel.push(t, channel.EventReceiveMessage, map[string]string{"sender": "driver", "message": "On my way"})

	v = f.ctrl.View()
	require.Len(t, v.ChatLog, 2)
	assert.Equal(t, models.ChatSenderCounterparty, v.ChatLog[1].Sender)
	assert.Equal(t, "On my way", v.ChatLog[1].Text)
}

func TestCancelOnlyInsideWindow(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.clock.Advance(29 * time.Second)
	require.NoError(t, f.ctrl.Cancel("changed my mind"))

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusCancelled, v.Status)
	require.Len(t, f.channel.emittedEvents(channel.EventCancelRide), 1)
}

func TestCancelRejectedAfterWindow(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.clock.Advance(31 * time.Second)
	err := f.ctrl.Cancel("too late")
	assert.Error(t, err)
	assert.Equal(t, models.RideStatusAccepted, f.ctrl.View().Status)
	assert.Empty(t, f.channel.emittedEvents(channel.EventCancelRide))
}

func TestCancelWindowSurvivesRestart(t *testing.T) {
	f := newFixture(t, RoleRider)

	// A deadline persisted by a previous run, already half elapsed.
	deadline := f.clock.Now().Add(10 * time.Second)
	require.NoError(t, f.store.SetCancelDeadline("ride-1", deadline))

	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	v := f.ctrl.View()
	assert.True(t, v.CancelAvailable)
	assert.Equal(t, 10, v.CancelSecondsLeft)

	f.clock.Advance(11 * time.Second)
	assert.False(t, f.ctrl.View().CancelAvailable)
}

func TestDriverArrivalAdvancesStatus(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.channel.push(t, channel.EventDriverStartRide, map[string]interface{}{
		"rideId":   "ride-1",
		"location": map[string]float64{"lat": 10.9, "lng": 10.9},
	})

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusArrivingAtPickup, v.Status)
	assert.False(t, v.CancelAvailable)
}

func TestMalformedPushesAreDropped(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.channel.push(t, channel.EventRideStatus, map[string]string{"status": "accepted"})
	f.channel.push(t, channel.EventRideStatus, map[string]string{"rideId": "ride-1", "status": "sideways"})
	f.channel.push(t, channel.EventReceiveMessage, map[string]string{"sender": "driver"})

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusAccepted, v.Status)
	assert.Empty(t, v.ChatLog)
}

func TestServerErrorSurfacesInView(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventServerError, map[string]string{"message": "no drivers available"})
	assert.Equal(t, "no drivers available", f.ctrl.View().LastError)
}

func TestConnectionLostSurfacesInView(t *testing.T) {
	f := newFixture(t, RoleRider)
	assert.False(t, f.ctrl.View().ConnectionLost)
	f.channel.push(t, channel.EventConnectionLost, nil)
	assert.True(t, f.ctrl.View().ConnectionLost)
}

func TestLocationFallbackToDefault(t *testing.T) {
	f := newFixture(t, RoleRider)

	f.sampler.onError(errors.New("permission denied"))

	sess := f.ctrl.Session()
	assert.Equal(t, 12.9716, sess.SelfLocation.Lat)

	// A real fix is never overwritten by a later source error.
	f.sampler.onUpdate(models.Coordinate{Lat: 13, Lng: 77.6, Timestamp: f.clock.Now()})
	f.sampler.onError(errors.New("gps flake"))
	assert.Equal(t, 13.0, f.ctrl.Session().SelfLocation.Lat)
}

func TestLocationBroadcastOnlyDuringActiveRide(t *testing.T) {
	f := newFixture(t, RoleRider)

	f.sampler.onUpdate(models.Coordinate{Lat: 13, Lng: 77.6, Timestamp: f.clock.Now()})
	assert.Empty(t, f.channel.emittedEvents(channel.EventLocationUpdate))

	f.channel.push(t, channel.EventRideStatus, acceptedPush())
	f.sampler.onUpdate(models.Coordinate{Lat: 13.001, Lng: 77.6, Timestamp: f.clock.Now()})
	assert.Len(t, f.channel.emittedEvents(channel.EventLocationUpdate), 1)
}

func TestRouteQueryThrottledByMovement(t *testing.T) {
	f := newFixture(t, RoleDriver)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.sampler.onUpdate(models.Coordinate{Lat: 10.5, Lng: 10.5, Timestamp: f.clock.Now()})
	waitForCalls(t, f.routes, 1)
	calls := f.routes.callCount()

	// A few meters of drift does not trigger a fresh query.
	f.sampler.onUpdate(models.Coordinate{Lat: 10.50001, Lng: 10.5, Timestamp: f.clock.Now()})
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, f.routes.callCount())

	// A real move does.
	f.sampler.onUpdate(models.Coordinate{Lat: 10.51, Lng: 10.5, Timestamp: f.clock.Now()})
	waitForCalls(t, f.routes, calls+1)
}

func TestStaleRouteResponseNeverLands(t *testing.T) {
	f := newFixture(t, RoleDriver)
	f.routes.blocking = true

	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.sampler.onUpdate(models.Coordinate{Lat: 10.5, Lng: 10.5, Timestamp: f.clock.Now()})
	waitForCalls(t, f.routes, 1)

	f.sampler.onUpdate(models.Coordinate{Lat: 10.6, Lng: 10.5, Timestamp: f.clock.Now()})
	waitForCalls(t, f.routes, 2)

	// The newer query resolves first; the older response must not
	// overwrite it afterwards.
	f.routes.release(1, &maps.Route{Polyline: "newer"})
	waitForRoute(t, f.ctrl, "newer")
	f.routes.release(0, &maps.Route{Polyline: "older"})
	time.Sleep(30 * time.Millisecond)

	route := f.ctrl.Session().Route
	require.NotNil(t, route)
	assert.Equal(t, "newer", route.Polyline)
}

func TestRouteFailureKeepsPreviousRoute(t *testing.T) {
	f := newFixture(t, RoleDriver)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.sampler.onUpdate(models.Coordinate{Lat: 10.5, Lng: 10.5, Timestamp: f.clock.Now()})
	waitForRoute(t, f.ctrl, "poly")

	f.routes.mu.Lock()
	f.routes.err = maps.ErrRouteUnavailable
	f.routes.mu.Unlock()

	f.sampler.onUpdate(models.Coordinate{Lat: 10.6, Lng: 10.5, Timestamp: f.clock.Now()})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !f.ctrl.View().RouteDegraded {
		time.Sleep(5 * time.Millisecond)
	}

	v := f.ctrl.View()
	assert.True(t, v.RouteDegraded)
	require.NotNil(t, v.Route)
	assert.Equal(t, "poly", v.Route.Polyline)
}

func TestCompleteRequiresStartedRide(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	assert.Error(t, f.ctrl.Complete())

	require.NoError(t, f.ctrl.SubmitPin("482913"))
	require.NoError(t, f.ctrl.Complete())

	v := f.ctrl.View()
	assert.Equal(t, models.RideStatusCompleted, v.Status)
	require.Len(t, f.channel.emittedEvents(channel.EventRideCompleted), 1)
}

func TestUnmountClearsSessionAndStopsSampling(t *testing.T) {
	f := newFixture(t, RoleRider)
	f.channel.push(t, channel.EventRideStatus, acceptedPush())

	f.ctrl.Unmount()
	assert.True(t, f.sampler.stopped)
	assert.Empty(t, f.ctrl.View().RideID)
}
