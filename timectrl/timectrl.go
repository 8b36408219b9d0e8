package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time, so components can
// depend on a clock abstraction rather than a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Elapsed returns simulation time since the start.
	Elapsed() time.Duration
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners.
// Listeners run on the controller's goroutine, one tick at a time.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns simulation time since StartTime. Implements SimClock.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// SetTime jumps the clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances n ticks synchronously on the caller's goroutine.
func (tc *TimeController) Step(n int) {
	for i := 0; i < n; i++ {
		tc.advance()
	}
}

func (tc *TimeController) advance() {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
}

// Start runs the controller for the specified duration in a separate
// goroutine, from StartTime. A zero duration runs until ctx is done. It
// returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.SetTime(tc.StartTime)
		elapsed := time.Duration(0)

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			tc.advance()
			elapsed += tc.Tick
		}
	}()
	return done
}
