// Package timer implements the exchange's virtual clock: wall-clock time
// scaled by a configurable speed factor, plus periodic tick scheduling
// that never skips a tick index even if the Go scheduler delivers a tick
// callback late.
package timer

import "time"

// Clock converts wall-clock elapsed time into virtual seconds.
type Clock struct {
	start time.Time
	speed float64
}

// NewClock starts a clock ticking from now at the given speed factor (1.0
// = real-time, >1.0 = accelerated simulation). openDelay pushes the
// virtual-time origin into the future by that many real seconds, so
// Advance reports a negative virtual time until the delay has elapsed --
// giving auto-traders a connect-and-settle window before the market is
// considered open, without the event loop having to block on a sleep.
func NewClock(speed float64, openDelay float64) *Clock {
	return &Clock{start: time.Now().Add(time.Duration(openDelay * float64(time.Second))), speed: speed}
}

// Advance returns the current virtual time: (monotonic_now - start) * speed.
func (c *Clock) Advance() float64 {
	return time.Since(c.start).Seconds() * c.speed
}

// Ticker drives a periodic virtual-clock tick stream. interval is in
// virtual seconds; the underlying real-time period is interval/speed.
type Ticker struct {
	clock    *Clock
	interval float64
	nextTick int
	period   time.Duration
	t        *time.Ticker
}

// NewTicker builds a ticker over clock firing every interval virtual
// seconds.
func NewTicker(clock *Clock, interval float64) *Ticker {
	period := time.Duration(interval / clock.speed * float64(time.Second))
	return &Ticker{
		clock:    clock,
		interval: interval,
		period:   period,
		t:        time.NewTicker(period),
	}
}

// C exposes the underlying real-time tick channel; callers pair it with
// Next to recover the tick sequence number.
func (t *Ticker) C() <-chan time.Time {
	return t.t.C
}

// Next advances the tick sequence, fast-forwarding past any whole
// intervals that elapsed since the last call (e.g. because the process was
// briefly descheduled) so no tick index is ever skipped in the output
// stream -- the sequence always reflects how many intervals of virtual
// time have actually passed.
func (t *Ticker) Next() int {
	now := t.clock.Advance()
	elapsedTicks := int(now / t.interval)
	if elapsedTicks > t.nextTick {
		t.nextTick = elapsedTicks
	}
	seq := t.nextTick
	t.nextTick++
	return seq
}

// Stop releases the underlying real-time ticker.
func (t *Ticker) Stop() {
	t.t.Stop()
}
