package thumbs

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of individual thumbnail generations
// allowed to run at once.
const DefaultConcurrency = 6

// Limiter bounds concurrent individual thumbnail fetches. Waiters are admitted
// in the order they called Acquire.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	active   atomic.Int64
	peak     atomic.Int64
}

// NewLimiter returns a limiter with n slots. n <= 0 uses DefaultConcurrency.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = DefaultConcurrency
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), capacity: int64(n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := l.active.Add(1)
	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Active returns the number of slots currently held.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Peak returns the highest number of slots held at once.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }

// Capacity returns the number of slots.
func (l *Limiter) Capacity() int { return int(l.capacity) }
