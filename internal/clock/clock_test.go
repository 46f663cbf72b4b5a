package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestExpiryFiresExactlyOnce(t *testing.T) {
	var fired int32
	done := make(chan struct{})
	tm := NewWithDuration(40*time.Millisecond, func() {
		if atomic.AddInt32(&fired, 1) == 1 {
			close(done)
		}
	}, WithInterval(10*time.Millisecond))

	start := time.Now()
	tm.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry never fired")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expired early: %v", elapsed)
	}
	// Give any duplicate signal a chance to arrive.
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expiry fired %d times, want 1", n)
	}
	if !tm.Expired() {
		t.Fatal("timer should report expired")
	}
}

func TestPastDeadlineExpiresImmediately(t *testing.T) {
	fired := make(chan struct{}, 1)
	tm := New(time.Now().Add(-10*time.Minute), func() { fired <- struct{}{} },
		WithInterval(10*time.Millisecond))
	tm.Start()
	select {
	case <-fired:
	default:
		t.Fatal("past deadline must expire synchronously on Start")
	}
	if r := tm.Remaining(); r != 0 {
		t.Fatalf("remaining = %v, want 0", r)
	}
}

func TestCancelSuppressesAllSignals(t *testing.T) {
	var ticks, expiries int32
	tm := NewWithDuration(30*time.Millisecond, func() { atomic.AddInt32(&expiries, 1) },
		WithInterval(5*time.Millisecond),
		WithTick(func(time.Duration) { atomic.AddInt32(&ticks, 1) }))
	tm.Start()
	tm.Cancel()
	before := atomic.LoadInt32(&ticks)
	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != before {
		t.Fatalf("ticks delivered after Cancel: %d -> %d", before, got)
	}
	if got := atomic.LoadInt32(&expiries); got != 0 {
		t.Fatalf("expiry delivered after Cancel (%d times)", got)
	}
}

func TestNoTickDeliveredAfterCancelReturns(t *testing.T) {
	// The slow callback widens the window in which a tick could still be
	// in flight while Cancel runs; Cancel must wait it out.
	for i := 0; i < 20; i++ {
		var ticks int32
		tm := NewWithDuration(time.Minute, nil,
			WithInterval(time.Millisecond),
			WithTick(func(time.Duration) {
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&ticks, 1)
			}))
		tm.Start()
		time.Sleep(3 * time.Millisecond)
		tm.Cancel()
		after := atomic.LoadInt32(&ticks)
		time.Sleep(10 * time.Millisecond)
		if got := atomic.LoadInt32(&ticks); got != after {
			t.Fatalf("tick delivered after Cancel returned: %d -> %d (iteration %d)", after, got, i)
		}
	}
}

func TestRemainingRecomputedFromDeadline(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	cur := base
	tm := New(base.Add(30*time.Minute), nil, WithNow(func() time.Time { return cur }))
	if got := tm.Remaining(); got != 30*time.Minute {
		t.Fatalf("remaining = %v, want 30m", got)
	}
	cur = base.Add(10 * time.Minute)
	if got := tm.Remaining(); got != 20*time.Minute {
		t.Fatalf("remaining = %v, want 20m", got)
	}
	cur = base.Add(time.Hour)
	if got := tm.Remaining(); got != 0 {
		t.Fatalf("remaining = %v, want 0 after deadline", got)
	}
}

func TestTicksCarryDecreasingRemaining(t *testing.T) {
	ticks := make(chan time.Duration, 64)
	done := make(chan struct{})
	tm := NewWithDuration(60*time.Millisecond, func() { close(done) },
		WithInterval(10*time.Millisecond),
		WithTick(func(r time.Duration) {
			select {
			case ticks <- r:
			default:
			}
		}))
	tm.Start()
	<-done
	close(ticks)
	prev := time.Duration(1 << 62)
	for r := range ticks {
		if r > prev {
			t.Fatalf("remaining increased across ticks: %v then %v", prev, r)
		}
		prev = r
	}
}
