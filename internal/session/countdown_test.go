package session

import (
	"sync/atomic"
	"testing"
	"time"
)

// testTick is short enough to drain a 60-second countdown in a few
// milliseconds of wall time.
const testTick = 200 * time.Microsecond

func waitForState(t *testing.T, c *Countdown, want CountdownState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("countdown never reached state %s, stuck at %s", want, c.State())
}

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(60, testTick, func() {
		fired.Add(1)
	})
	c.Start()

	waitForState(t, c, CountdownExpired)
	// Give a straggling tick the chance to misfire.
	time.Sleep(10 * testTick)

	if got := fired.Load(); got != 1 {
		t.Errorf("onExpire fired %d times, want exactly 1", got)
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d after expiry, want 0", got)
	}
}

func TestCountdownStoppedNeverExpires(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(10_000, testTick, func() {
		fired.Add(1)
	})
	c.Start()
	time.Sleep(5 * testTick)
	c.Stop()

	if got := c.State(); got != CountdownStopped {
		t.Fatalf("State() = %s after Stop, want stopped", got)
	}
	time.Sleep(20 * testTick)
	if got := fired.Load(); got != 0 {
		t.Errorf("onExpire fired %d times on a stopped countdown, want 0", got)
	}
	if rem := c.Remaining(); rem <= 0 {
		t.Errorf("Remaining() = %d, want the unexpired balance to survive Stop", rem)
	}
}

func TestCountdownStopAfterExpiryIsNoop(t *testing.T) {
	c := NewCountdown(1, testTick, nil)
	c.Start()
	waitForState(t, c, CountdownExpired)

	c.Stop()
	if got := c.State(); got != CountdownExpired {
		t.Errorf("State() = %s after Stop on expired countdown, want expired", got)
	}
}

func TestCountdownDoubleStopIsSafe(t *testing.T) {
	c := NewCountdown(100, testTick, nil)
	c.Start()
	c.Stop()
	c.Stop() // must not panic on the closed channel
}

func TestCountdownStartIsIdempotent(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(3, testTick, func() {
		fired.Add(1)
	})
	c.Start()
	c.Start()
	waitForState(t, c, CountdownExpired)
	time.Sleep(10 * testTick)

	if got := fired.Load(); got != 1 {
		t.Errorf("onExpire fired %d times after double Start, want 1", got)
	}
}
