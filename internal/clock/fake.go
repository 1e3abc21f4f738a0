package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Callbacks run synchronously
// inside Advance, in deadline order; a callback may schedule another one and
// it fires in the same Advance if it falls inside the window. After and
// ticker channels are fed the same way, without blocking.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	seq     int
	pending []*fakeTimer
}

func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int
	fn       func()
	// interval is set for tickers, which are rescheduled after each fire.
	interval time.Duration
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// scheduleLocked must be called with c.mu held.
func (c *FakeClock) scheduleLocked(t *fakeTimer) {
	t.seq = c.seq
	c.seq++
	c.pending = append(c.pending, t)
	c.changed.Broadcast()
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.scheduleLocked(t)
	return t
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.Now()
		return ch
	}
	c.AfterFunc(d, func() { ch <- c.Now() })
	return ch
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), interval: d}
	t.fn = func() {
		select {
		case ch <- c.Now():
		default:
		}
	}
	c.scheduleLocked(t)
	c.mu.Unlock()
	return &Ticker{C: ch, stop: func() { t.Stop() }}
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of scheduled callbacks, waits and tickers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// WaitForTimers blocks until at least n timers are pending. Tests use it to
// let a goroutine reach its wait before advancing.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// Advance moves time forward by d, firing every callback whose deadline is
// reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		sort.Slice(c.pending, func(i, j int) bool {
			if c.pending[i].deadline.Equal(c.pending[j].deadline) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].deadline.Before(c.pending[j].deadline)
		})
		if len(c.pending) == 0 || c.pending[0].deadline.After(target) {
			break
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.now = next.deadline
		if next.interval > 0 {
			next.deadline = next.deadline.Add(next.interval)
			c.scheduleLocked(next)
		}
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}
