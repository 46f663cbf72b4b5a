// Package clock provides the countdown timer that drives timed exam
// sessions. A Timer is independent of any HTTP or session lifecycle so it
// can be exercised directly in tests.
package clock

import (
	"sync"
	"time"
)

// Now is an injectable time source (see gradebook-style fakes in tests).
type Now func() time.Time

// Timer counts down toward a deadline on a fixed interval. Remaining time
// is always recomputed from the deadline, never from an in-memory offset,
// so a consumer that re-attaches mid-session observes the true remaining
// window. Expiry fires exactly once; Cancel stops all further signals.
type Timer struct {
	mu       sync.Mutex
	tickMu   sync.Mutex // serializes tick delivery with Cancel
	deadline time.Time
	interval time.Duration
	now      Now

	onTick   func(remaining time.Duration)
	onExpire func()

	started bool
	stopped bool
	expired bool
	done    chan struct{}
}

// Option configures a Timer.
type Option func(*Timer)

// WithInterval overrides the default 1s tick interval.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithNow overrides the wall-clock time source.
func WithNow(now Now) Option {
	return func(t *Timer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTick registers a per-tick callback carrying the remaining duration.
func WithTick(fn func(remaining time.Duration)) Option {
	return func(t *Timer) { t.onTick = fn }
}

// New builds a timer that expires at deadline. Callbacks run on the
// timer's own goroutine; onExpire is invoked at most once.
func New(deadline time.Time, onExpire func(), opts ...Option) *Timer {
	t := &Timer{
		deadline: deadline,
		interval: time.Second,
		now:      time.Now,
		onExpire: onExpire,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewWithDuration builds a timer that expires d from now.
func NewWithDuration(d time.Duration, onExpire func(), opts ...Option) *Timer {
	t := New(time.Time{}, onExpire, opts...)
	t.deadline = t.now().Add(d)
	return t
}

// Start begins ticking. A deadline already in the past expires
// immediately instead of ticking negative. Start is a no-op on a timer
// that has already started or been canceled.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	if !t.now().Before(t.deadline) {
		t.mu.Unlock()
		t.fireExpiry()
		return
	}
	t.mu.Unlock()
	go t.run()
}

func (t *Timer) run() {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-tick.C:
			remaining := t.Remaining()
			if remaining <= 0 {
				t.fireExpiry()
				return
			}
			t.deliverTick(remaining)
		}
	}
}

// deliverTick hands the remaining duration to the tick callback. The
// stopped re-check and the callback run under tickMu, which Cancel also
// takes, so once Cancel returns no tick can still be in flight.
func (t *Timer) deliverTick(remaining time.Duration) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()
	t.mu.Lock()
	fn := t.onTick
	stopped := t.stopped
	t.mu.Unlock()
	if fn != nil && !stopped {
		fn(remaining)
	}
}

func (t *Timer) fireExpiry() {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return
	}
	t.expired = true
	fn := t.onExpire
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancel stops the timer and waits out any tick callback already in
// flight, so no tick is delivered after Cancel returns. Tick callbacks
// must not call Cancel themselves.
func (t *Timer) Cancel() {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)
}

// Remaining reports time left until the deadline, clamped at zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.deadline.Sub(t.now())
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the expiry signal has fired.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}
