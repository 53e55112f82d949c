package schedule

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle admits at most one event per interval. The first event after a
// quiet interval is admitted immediately; the rest of the window is dropped.
type Throttle struct {
	clock    Clock
	interval time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewThrottle returns a leading-edge throttle. A nil clock uses RealClock; a
// non-positive interval admits everything.
func NewThrottle(clock Clock, interval time.Duration) *Throttle {
	if clock == nil {
		clock = RealClock()
	}
	t := &Throttle{clock: clock, interval: interval}
	t.limiter = t.newLimiter()
	return t
}

func (t *Throttle) newLimiter() *rate.Limiter {
	if t.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(t.interval), 1)
}

// Allow reports whether an event arriving now should be applied.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limiter.AllowN(t.clock.Now(), 1)
}

// Reset forgets the current window so the next event is admitted.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiter = t.newLimiter()
}
