package watcher

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/timecat/internal/clock"
)

// throttler delivers at most one call per wait. With leading set the first
// call in a window runs immediately; with trailing set the latest
// suppressed call runs when the window closes.
type throttler struct {
	clock    clock.Clock
	wait     time.Duration
	leading  bool
	trailing bool
	fn       func(Event)
	limiter  *rate.Limiter

	mu        sync.Mutex
	pending   *Event
	scheduled bool
	timer     *clock.Timer
	stopped   bool
}

func newThrottler(c clock.Clock, wait time.Duration, leading, trailing bool, fn func(Event)) *throttler {
	return &throttler{
		clock:    c,
		wait:     wait,
		leading:  leading,
		trailing: trailing,
		fn:       fn,
		limiter:  rate.NewLimiter(rate.Every(wait), 1),
	}
}

func (t *throttler) call(ev Event) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	if t.leading && !t.scheduled && t.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		t.fn(ev)
		return
	}
	if !t.trailing {
		t.mu.Unlock()
		return
	}
	t.pending = &ev
	if t.scheduled {
		t.mu.Unlock()
		return
	}
	t.scheduled = true
	delay := t.wait
	if t.leading {
		delay = t.limiter.ReserveN(now, 1).DelayFrom(now)
	}
	t.mu.Unlock()

	timer := t.clock.AfterFunc(delay, t.flush)

	t.mu.Lock()
	t.timer = timer
	t.mu.Unlock()
}

func (t *throttler) flush() {
	t.mu.Lock()
	ev := t.pending
	t.pending = nil
	t.scheduled = false
	stopped := t.stopped
	t.mu.Unlock()

	if ev != nil && !stopped {
		t.fn(*ev)
	}
}

func (t *throttler) stop() {
	t.mu.Lock()
	t.stopped = true
	t.pending = nil
	timer := t.timer
	t.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// debouncer delivers a call once wait has passed without further calls.
// With leading set the first call of a burst runs immediately; the
// trailing call then runs only if the burst had more than one call.
type debouncer struct {
	clock    clock.Clock
	wait     time.Duration
	leading  bool
	trailing bool
	fn       func(Event)

	mu      sync.Mutex
	pending *Event
	active  bool
	gen     uint64
	timer   *clock.Timer
	stopped bool
}

func newDebouncer(c clock.Clock, wait time.Duration, leading, trailing bool, fn func(Event)) *debouncer {
	return &debouncer{clock: c, wait: wait, leading: leading, trailing: trailing, fn: fn}
}

func (d *debouncer) call(ev Event) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	fireNow := d.leading && !d.active
	d.active = true
	if fireNow {
		d.pending = nil
	} else {
		d.pending = &ev
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() { d.expire(gen) })
	d.mu.Unlock()

	if fireNow {
		d.fn(ev)
	}
}

func (d *debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	ev := d.pending
	d.pending = nil
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	if ev != nil && d.trailing {
		d.fn(*ev)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	d.pending = nil
	timer := d.timer
	d.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}
