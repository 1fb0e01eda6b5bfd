// Package frames discovers the nested frames of a recorded document and
// attaches a dependent child session to each one.
package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/watcher"
)

// PollInterval is how often a frame whose load is not observable is
// checked for readiness.
const PollInterval = 200 * time.Millisecond

// ErrInaccessible marks a frame that cannot be recorded, usually because
// it is cross-origin.
var ErrInaccessible = errors.New("frame inaccessible")

// Child is a spawned child session.
type Child interface {
	Destroy(ctx context.Context) error
}

// Spawner creates the child session recording one frame document.
type Spawner interface {
	SpawnChild(ctx context.Context, frame watcher.Context) (Child, error)
}

// Supervisor owns the child sessions of one parent. Every spawned child's
// Destroy is registered into the parent's child-teardown set.
//
// Thread-safety: Discover and Attach may run concurrently.
type Supervisor struct {
	spawner  Spawner
	children *watcher.Teardown
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock sets the clock polling runs on.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithPollInterval overrides PollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.interval = d }
}

// New returns a supervisor that spawns through spawner and registers
// teardowns into children.
func New(spawner Spawner, children *watcher.Teardown, opts ...Option) *Supervisor {
	s := &Supervisor{
		spawner:  spawner,
		children: children,
		clock:    clock.Real(),
		logger:   slog.Default(),
		interval: PollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover waits for every candidate frame of target to become ready and
// then spawns a child for each, in frame order. Frames without a source
// locator are ignored; inaccessible frames are logged and skipped. It
// returns the number of children spawned.
func (s *Supervisor) Discover(ctx context.Context, target watcher.Context) (int, error) {
	frames := target.Frames()
	ready := make([]bool, len(frames))

	var wg sync.WaitGroup
	for i, f := range frames {
		src, err := f.Source()
		if err != nil {
			s.logger.Warn("frame skipped", "context", target.ID(), "index", i, "error", err)
			continue
		}
		if src == "" {
			continue
		}
		wg.Add(1)
		go func(i int, f watcher.Frame) {
			defer wg.Done()
			ready[i] = s.waitReady(ctx, f) == nil
		}(i, f)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	spawned := 0
	for i, f := range frames {
		if !ready[i] {
			continue
		}
		if err := s.spawn(ctx, f); err != nil {
			s.logger.Warn("frame not attached", "context", target.ID(), "index", i, "error", err)
			continue
		}
		spawned++
	}
	return spawned, nil
}

// Attach records a frame that appeared after discovery. It polls until
// the frame's document is available, then spawns a child. Inaccessible
// frames return an error wrapping ErrInaccessible.
func (s *Supervisor) Attach(ctx context.Context, f watcher.Frame) error {
	if _, err := f.Source(); err != nil {
		s.logger.Warn("frame skipped", "error", err)
		return fmt.Errorf("%w: %v", ErrInaccessible, err)
	}
	if err := s.poll(ctx, f); err != nil {
		return err
	}
	return s.spawn(ctx, f)
}

func (s *Supervisor) waitReady(ctx context.Context, f watcher.Frame) error {
	if f.Ready() {
		return nil
	}
	loaded := make(chan struct{})
	var once sync.Once
	if f.OnLoad(func() { once.Do(func() { close(loaded) }) }) {
		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.poll(ctx, f)
}

func (s *Supervisor) poll(ctx context.Context, f watcher.Frame) error {
	if f.Ready() {
		return nil
	}
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if f.Ready() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) spawn(ctx context.Context, f watcher.Frame) error {
	doc, err := f.Context()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInaccessible, err)
	}
	child, err := s.spawner.SpawnChild(ctx, doc)
	if err != nil {
		return fmt.Errorf("spawn child for %s: %w", doc.ID(), err)
	}

	// Teardown runs on pause, after the discovery context is cancelled.
	teardownCtx := context.WithoutCancel(ctx)
	s.children.Add(func() {
		if err := child.Destroy(teardownCtx); err != nil {
			s.logger.Warn("child session destroy failed", "context", doc.ID(), "error", err)
		}
	})
	s.logger.Debug("frame attached", "context", doc.ID())
	return nil
}
