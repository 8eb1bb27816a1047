package session

import (
	"sync"
	"time"
)

// CountdownState is the lifecycle state of a countdown.
type CountdownState int

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownExpired
	CountdownStopped
)

func (s CountdownState) String() string {
	switch s {
	case CountdownIdle:
		return "idle"
	case CountdownRunning:
		return "running"
	case CountdownExpired:
		return "expired"
	case CountdownStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Countdown ticks the remaining exam time down once per interval and fires
// onExpire exactly once when it reaches zero. Stop after expiry is a no-op,
// and a stopped countdown never expires.
type Countdown struct {
	interval time.Duration
	onExpire func()

	mu        sync.Mutex
	state     CountdownState
	remaining int
	done      chan struct{}
}

// NewCountdown creates an idle countdown holding the given number of seconds.
// The interval is one second in production; tests pass something shorter.
func NewCountdown(seconds int, interval time.Duration, onExpire func()) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{
		interval:  interval,
		onExpire:  onExpire,
		state:     CountdownIdle,
		remaining: seconds,
		done:      make(chan struct{}),
	}
}

// Start begins ticking. Starting a countdown that already left the idle
// state is a no-op. A countdown created with zero seconds expires on the
// first tick rather than immediately, mirroring Start followed by Stop
// still being a valid sequence.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownIdle {
		return
	}
	c.state = CountdownRunning
	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.tick() {
				return
			}
		}
	}
}

// tick decrements once and reports whether the countdown is finished. The
// expiry callback runs outside the lock so it may call back into Stop or
// Remaining without deadlocking.
func (c *Countdown) tick() bool {
	c.mu.Lock()
	if c.state != CountdownRunning {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		c.mu.Unlock()
		return false
	}
	c.remaining = 0
	c.state = CountdownExpired
	cb := c.onExpire
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// Stop halts the countdown. Once stopped it will never fire onExpire;
// stopping an expired or already stopped countdown does nothing.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CountdownExpired || c.state == CountdownStopped {
		return
	}
	c.state = CountdownStopped
	close(c.done)
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// State returns the current lifecycle state.
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Clock returns the remaining time formatted as "m:ss".
func (c *Countdown) Clock() string {
	return FormatClock(c.Remaining())
}
