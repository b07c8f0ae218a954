package clock

import (
	"sync"
	"time"
)

// Clock: time source of the capture loop. Real in production, Fake in tests.
type Clock interface {
	Now() time.Time
	// After fires once d has elapsed. d <= 0 fires immediately.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return time.After(d)
}

// Fake: simulated clock. After advances the simulated time instantly, so a
// paced loop runs as fast as the CPU allows. Once the time reaches the
// limit set with Limit, After returns a channel that never fires and the
// loop parks until it is stopped from outside.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	limit   time.Time
	reached chan struct{}
	closed  bool
}

// NewFake: simulated clock starting at t, without a limit.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t, reached: make(chan struct{})}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the simulated time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Limit sets the simulated instant at which After stops firing.
func (f *Fake) Limit(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = t
}

// Reached is closed the first time After is asked to cross the limit.
func (f *Fake) Reached() <-chan struct{} {
	return f.reached
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d > 0 {
		f.now = f.now.Add(d)
	}
	if !f.limit.IsZero() && !f.now.Before(f.limit) {
		if !f.closed {
			f.closed = true
			close(f.reached)
		}
		return nil // nil kanal: sonsuza kadar bekler
	}

	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}
