package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
)

// Watcher is a live capture source. All subscriptions happen when its
// Factory runs; uninstalling is done through the shared Teardown set.
type Watcher interface {
	Name() string
}

// OneShot is implemented by watchers that can emit a single record on
// demand, e.g. the location watcher's immediate emission.
type OneShot interface {
	EmitOne() error
}

// Args is everything a Factory receives from its controller.
type Args struct {
	RelatedID   string
	Context     Context
	Emit        EmitFunc
	Teardown    *Teardown
	Registry    *Registry
	Options     config.Options
	Clock       clock.Clock
	Snapshotter Snapshotter
	Logger      *slog.Logger
}

// Factory builds a watcher. A returned error isolates that watcher; the
// session proceeds without it.
type Factory func(args Args) (Watcher, error)

// Named pairs a factory with the name used by disableWatchers and the
// registry.
type Named struct {
	Name    string
	Factory Factory
}

// ErrMissingSnapshotter is returned by watchers that need a Snapshotter
// when none is configured.
var ErrMissingSnapshotter = errors.New("watcher: no snapshotter configured")

// Base carries the shared plumbing every built-in watcher embeds.
type Base struct {
	Args
	name string
}

// NewBase validates args and returns the embedded helper.
func NewBase(name string, args Args) (*Base, error) {
	if args.Context == nil {
		return nil, fmt.Errorf("watcher %s: nil context", name)
	}
	if args.Emit == nil {
		return nil, fmt.Errorf("watcher %s: nil emit", name)
	}
	if args.Teardown == nil {
		args.Teardown = &Teardown{}
	}
	if args.Clock == nil {
		args.Clock = clock.Real()
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	return &Base{Args: args, name: name}, nil
}

func (b *Base) Name() string { return b.name }

// Uninstall registers fn into the shared teardown set.
func (b *Base) Uninstall(fn func()) {
	b.Teardown.Add(fn)
}

// EmitOption adjusts a record built by EmitData.
type EmitOption func(*emitSettings)

type emitSettings struct {
	time      int64
	hasTime   bool
	transform func(ir.Record) ir.Record
}

// At stamps the record with ms instead of the clock's current time.
func At(ms int64) EmitOption {
	return func(s *emitSettings) {
		s.time = ms
		s.hasTime = true
	}
}

// Transform lets fn rewrite the outgoing record before it is emitted.
func Transform(fn func(ir.Record) ir.Record) EmitOption {
	return func(s *emitSettings) { s.transform = fn }
}

// EmitData stamps a record with type, correlation id and time and forwards
// it to the controller. The default time is the clock at call time.
func (b *Base) EmitData(t ir.RecordType, payload any, opts ...EmitOption) error {
	var s emitSettings
	for _, opt := range opts {
		opt(&s)
	}
	if !s.hasTime {
		s.time = clock.Millis(b.Clock)
	}

	rec, err := ir.NewRecord(t, payload, b.RelatedID, s.time)
	if err != nil {
		return fmt.Errorf("watcher %s: %w", b.name, err)
	}
	if s.transform != nil {
		rec = s.transform(rec)
	}
	b.Emit(rec)
	return nil
}

// Mode selects the rate limiting applied by RegisterEvent.
type Mode int

const (
	// ModeNone delivers every event.
	ModeNone Mode = iota
	ModeThrottle
	ModeDebounce
)

// EventOptions configures RegisterEvent.
type EventOptions struct {
	Names    []string
	Handler  func(Event)
	Listener ListenerOptions
	Mode     Mode
	Wait     time.Duration
	Leading  bool
	Trailing bool
}

// RegisterEvent subscribes one rate-limited handler to every name and
// registers the paired unsubscription. Throttle and debounce with a
// non-positive Wait behave as ModeNone.
func (b *Base) RegisterEvent(opts EventOptions) {
	if opts.Handler == nil || len(opts.Names) == 0 {
		return
	}

	handle := opts.Handler
	var stop func()
	if opts.Wait > 0 {
		switch opts.Mode {
		case ModeThrottle:
			th := newThrottler(b.Clock, opts.Wait, opts.Leading, opts.Trailing, opts.Handler)
			handle, stop = th.call, th.stop
		case ModeDebounce:
			db := newDebouncer(b.Clock, opts.Wait, opts.Leading, opts.Trailing, opts.Handler)
			handle, stop = db.call, db.stop
		}
	}

	l := NewListener(handle)
	names := append([]string(nil), opts.Names...)
	for _, name := range names {
		b.Context.AddEventListener(name, l, opts.Listener)
	}
	b.Uninstall(func() {
		for _, name := range names {
			b.Context.RemoveEventListener(name, l, opts.Listener)
		}
		if stop != nil {
			stop()
		}
	})
}

// Select builds the named factory list from candidates, dropping every
// name the options disable.
func Select(opts config.Options, candidates []Named) []Named {
	out := make([]Named, 0, len(candidates))
	for _, n := range candidates {
		if opts.WatcherDisabled(n.Name) {
			continue
		}
		out = append(out, n)
	}
	return out
}
