package location

import (
	"errors"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/utils"
	"goride/pkg/logger"
)

// ErrLocationUnavailable reports that the device position stream cannot
// be observed (permission denied, timeout). Non-fatal: the controller
// falls back to its configured default coordinate.
var ErrLocationUnavailable = errors.New("location unavailable")

// Position is one raw fix from a device position source.
type Position struct {
	Lat       float64
	Lng       float64
	Heading   *float64
	Timestamp time.Time
}

// PositionSource abstracts the device geolocation subsystem. Watch
// begins continuous observation and returns a stop function releasing
// the underlying subscription.
type PositionSource interface {
	Watch(onUpdate func(Position), onError func(error), highAccuracy bool) (stop func(), err error)
}

type Options struct {
	HighAccuracy bool
	MinInterval  time.Duration
	MaxStale     time.Duration
}

// Sampler wraps a PositionSource, normalizes readings and rate-limits
// them. At most one subscription is active per sampler; Start while
// active is a no-op.
type Sampler struct {
	source PositionSource
	opts   Options
	log    *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	stop func()

	// rateMu guards the rate limiter separately so a source that
	// delivers a fix synchronously from Watch cannot deadlock Start.
	rateMu       sync.Mutex
	lastAccepted time.Time
}

func NewSampler(source PositionSource, opts Options, log *logger.Logger) *Sampler {
	return &Sampler{
		source: source,
		opts:   opts,
		log:    log.WithComponent("location"),
		now:    time.Now,
	}
}

// Start begins continuous observation, delivering normalized samples to
// onUpdate and source failures to onError. Calling Start while a
// subscription is active does nothing and returns nil.
func (s *Sampler) Start(onUpdate func(models.Coordinate), onError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.log.Debug("Sampler already started, ignoring")
		return nil
	}

	stop, err := s.source.Watch(
		func(pos Position) {
			if sample, ok := s.normalize(pos); ok {
				onUpdate(sample)
			}
		},
		func(err error) {
			s.log.WithError(err).Warn("Position source error")
			onError(ErrLocationUnavailable)
		},
		s.opts.HighAccuracy,
	)
	if err != nil {
		return ErrLocationUnavailable
	}

	s.stop = stop
	s.log.Info("Location sampling started")
	return nil
}

// Stop releases the subscription. Idempotent.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	s.stop()
	s.stop = nil
	s.log.Info("Location sampling stopped")

	s.rateMu.Lock()
	s.lastAccepted = time.Time{}
	s.rateMu.Unlock()
}

func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// normalize validates and rate-limits one raw fix. Invalid coordinates,
// stale fixes and fixes arriving faster than MinInterval are discarded.
func (s *Sampler) normalize(pos Position) (models.Coordinate, bool) {
	if !utils.IsValidCoordinates(pos.Lat, pos.Lng) {
		lat, lng := utils.NormalizeCoordinates(pos.Lat, pos.Lng)
		pos.Lat, pos.Lng = lat, lng
	}

	now := s.now()
	ts := pos.Timestamp
	if ts.IsZero() {
		ts = now
	}

	if s.opts.MaxStale > 0 && now.Sub(ts) > s.opts.MaxStale {
		s.log.Debug("Discarding stale position fix")
		return models.Coordinate{}, false
	}

	s.rateMu.Lock()
	if s.opts.MinInterval > 0 && !s.lastAccepted.IsZero() && now.Sub(s.lastAccepted) < s.opts.MinInterval {
		s.rateMu.Unlock()
		return models.Coordinate{}, false
	}
	s.lastAccepted = now
	s.rateMu.Unlock()

	sample := models.Coordinate{
		Lat:       pos.Lat,
		Lng:       pos.Lng,
		Timestamp: ts,
	}
	if pos.Heading != nil {
		h := utils.NormalizeHeading(*pos.Heading)
		sample.Heading = &h
	}

	return sample, true
}
