// Package clock abstracts timers so schedulers can be driven
// deterministically in tests. Production code uses Real(); tests use Fake().
//
// Code that waits, ticks or schedules takes a Clock instead of calling the
// time package. Socket deadlines are the exception: they are wall-clock by
// definition.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer cancels the
	// pending call.
	AfterFunc(d time.Duration, f func()) Timer
	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
	// NewTicker delivers a tick every d until stopped. Slow readers miss
	// ticks rather than queue them.
	NewTicker(d time.Duration) *Ticker
}

type Timer interface {
	// Stop reports whether the call was still pending.
	Stop() bool
}

type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
