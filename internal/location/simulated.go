package location

import (
	"sync"
	"time"

	"goride/internal/utils"
)

// SimulatedSource replays a straight-line drive between two points at a
// fixed tick, standing in for the device geolocation subsystem in the
// CLI and in tests.
type SimulatedSource struct {
	From utils.Point
	To   utils.Point
	Tick time.Duration
	// Steps is the number of fixes between From and To; after the last
	// one the source keeps reporting To.
	Steps int

	mu     sync.Mutex
	active bool
}

func (s *SimulatedSource) Watch(onUpdate func(Position), onError func(error), highAccuracy bool) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil, ErrLocationUnavailable
	}
	s.active = true

	tick := s.Tick
	if tick <= 0 {
		tick = time.Second
	}
	steps := s.Steps
	if steps <= 0 {
		steps = 60
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				frac := float64(i) / float64(steps)
				if frac > 1 {
					frac = 1
				}
				lat := s.From.Lat + (s.To.Lat-s.From.Lat)*frac
				lng := s.From.Lng + (s.To.Lng-s.From.Lng)*frac
				heading := utils.CalculateBearing(s.From.Lat, s.From.Lng, s.To.Lat, s.To.Lng)

				onUpdate(Position{
					Lat:       lat,
					Lng:       lng,
					Heading:   &heading,
					Timestamp: time.Now(),
				})
				i++
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
		})
	}
	return stop, nil
}
