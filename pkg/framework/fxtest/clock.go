// Package fxtest provides helpers for driving a Kernel in tests.
package fxtest

import (
	"sync"
	"time"

	fx "github.com/robotalks/tws.go/pkg/framework"
)

// ManualClock is a fx.Clock which only moves on Advance.
type ManualClock struct {
	lock   sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManualClock creates a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements fx.Clock.
func (c *ManualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

// AfterFunc implements fx.Clock.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) fx.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run on the calling goroutine.
func (c *ManualClock) Advance(d time.Duration) {
	c.AdvanceWith(d, nil)
}

// AdvanceWith is Advance calling afterEach once every fired timer returns,
// with the clock still at that timer's deadline.
func (c *ManualClock) AdvanceWith(d time.Duration, afterEach func()) {
	c.lock.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.fired = true
		c.now = t.at
		c.lock.Unlock()
		t.fn()
		if afterEach != nil {
			afterEach()
		}
		c.lock.Lock()
	}
	c.now = target
	c.prune()
	c.lock.Unlock()
}

// Pending returns the number of timers not yet fired or stopped.
func (c *ManualClock) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.prune()
	return len(c.timers)
}

func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range c.timers {
		if t.fired || t.stopped || t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (c *ManualClock) prune() {
	timers := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			timers = append(timers, t)
		}
	}
	c.timers = timers
}

func (t *manualTimer) Stop() bool {
	t.clock.lock.Lock()
	defer t.clock.lock.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
