package recorder

import (
	"context"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/pipeline"
	"github.com/roach88/timecat/internal/watcher"
)

// Recorder is the public handle of a root session. It delegates every call
// to the one controller it owns.
type Recorder struct {
	c *controller
}

// New creates a root session and starts recording. It normalizes opts,
// opens the partition log, loads persisted checkpoints when keep is set,
// applies plugins, runs BeforeRun hooks, calls Record, runs Run hooks and
// starts the retention timer.
func New(ctx context.Context, opts config.Options, deps Deps) (*Recorder, error) {
	c, err := newController(ctx, opts, deps, nil)
	if err != nil {
		return nil, err
	}
	r := &Recorder{c: c}

	for _, p := range c.deps.Plugins {
		p.Apply(&c.hooks)
	}
	for _, fn := range c.hooks.beforeRun {
		fn(r)
	}
	if err := c.Record(ctx, nil); err != nil {
		c.log.Close()
		return nil, err
	}
	for _, fn := range c.hooks.run {
		fn(r)
	}
	c.startRetention()
	return r, nil
}

// Record resumes capturing after Pause. It does nothing while RUNNING and
// fails with a HALTED error once destroyed.
func (r *Recorder) Record(ctx context.Context, opts *config.Options) error {
	return r.c.Record(ctx, opts)
}

// Pause stops capturing and appends TERMINATE one ms after the last
// committed record. ok is false when nothing was committed or the log
// could not be read.
func (r *Recorder) Pause(ctx context.Context) (lastTime int64, ok bool) {
	return r.c.Pause(ctx)
}

// Destroy pauses, destroys every frame session and halts. It is
// idempotent.
func (r *Recorder) Destroy(ctx context.Context) error {
	return r.c.Destroy(ctx)
}

// OnData registers a pipeline stage. Stages run in registration order and
// see only records emitted after they are registered.
func (r *Recorder) OnData(stage pipeline.Stage) {
	r.c.pipe.Prepend(stage)
}

// Use applies a plugin to a session that is already running. Its emit
// hooks apply immediately, its watchers from the next Record.
func (r *Recorder) Use(p Plugin) error {
	return r.c.use(p)
}

// ReadDB returns the windowed log: records within the last writeKeepTime
// ms, led by the checkpoint preceding the window.
func (r *Recorder) ReadDB(ctx context.Context, opts ...ReadOption) ([]ir.Record, error) {
	return r.c.log.ReadAll(ctx, r.limit(opts), r.c.cache)
}

// GetCheckpoint returns the checkpoint immediately preceding the read
// window boundary, or nil.
func (r *Recorder) GetCheckpoint(opts ...ReadOption) *ir.Checkpoint {
	return r.c.cache.Preceding(clock.Millis(r.c.deps.Clock), r.limit(opts))
}

// Checkpoints returns the cached checkpoints, oldest first.
func (r *Recorder) Checkpoints() []ir.Checkpoint {
	return r.c.cache.Entries()
}

// ClearDB enqueues removal of the session's partition.
func (r *Recorder) ClearDB() error {
	if r.c.Status() == StatusHalt {
		return errHalted("clear")
	}
	r.c.log.Clear()
	return nil
}

// Count returns the number of committed records in the partition.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	return r.c.log.Count(ctx)
}

// Flush waits until every record emitted so far by the session and its
// frame sessions has drained and every log write has committed.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := r.c.waitIdle(ctx); err != nil {
		return err
	}
	return r.c.log.Flush(ctx)
}

// Frames returns the number of frame sessions currently recording.
func (r *Recorder) Frames() int {
	return len(r.c.spawned())
}

// Attach records a frame added after the session started.
func (r *Recorder) Attach(ctx context.Context, f watcher.Frame) error {
	return r.c.Attach(ctx, f)
}

// Status returns the lifecycle state.
func (r *Recorder) Status() Status { return r.c.Status() }

// RelatedID returns the correlation id of the current run.
func (r *Recorder) RelatedID() string { return r.c.RelatedID() }

// Options returns the normalized options in force.
func (r *Recorder) Options() config.Options { return r.c.Options() }

// StartTime returns the construction time in epoch ms.
func (r *Recorder) StartTime() int64 { return r.c.startTime }

// DestroyTime returns when the session halted, or 0.
func (r *Recorder) DestroyTime() int64 {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.destroyTime
}

func (r *Recorder) limit(opts []ReadOption) int64 {
	var s readSettings
	for _, opt := range opts {
		opt(&s)
	}
	if s.hasLimit {
		return s.limit
	}
	return r.c.Options().WriteKeepTime
}
