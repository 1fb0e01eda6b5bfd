package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/frames"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/watcher"
)

// Record starts capturing. It is effective only from PAUSE; while RUNNING
// it does nothing. next, if set, replaces the options for this run; the
// store key cannot change.
func (c *controller) Record(ctx context.Context, next *config.Options) error {
	c.mu.Lock()
	switch c.status {
	case StatusHalt:
		c.mu.Unlock()
		return errHalted("record")
	case StatusRunning:
		c.mu.Unlock()
		c.logger.Debug("record ignored, session already running")
		return nil
	}
	if next != nil {
		n := next.Normalize()
		if n.StoreKey != c.opts.StoreKey {
			c.mu.Unlock()
			return errInvalidState("record", "store key is fixed at construction")
		}
		if !c.isRoot() {
			n.Keep = true
		}
		c.opts = n
	}
	opts := c.opts
	if c.isRoot() {
		c.relatedID = c.deps.IDs.Generate()
	} else {
		c.relatedID = c.parent.relatedID
	}
	relatedID := c.relatedID
	c.discoveryCtx, c.stopDiscover = context.WithCancel(ctx)
	discoveryCtx := c.discoveryCtx
	c.status = StatusRunning
	c.mu.Unlock()

	c.logger.Info("recording started", "related_id", relatedID, "root", c.isRoot())

	if c.isRoot() {
		if !opts.Keep {
			c.log.Clear()
		}
		c.emitHead(relatedID)
	}

	args := watcher.Args{
		RelatedID:   relatedID,
		Context:     c.deps.Context,
		Emit:        c.emit,
		Teardown:    c.listeners,
		Registry:    c.registry,
		Options:     opts,
		Clock:       c.deps.Clock,
		Snapshotter: c.deps.Snapshotter,
		Logger:      c.logger,
	}
	for _, n := range c.watcherSet(opts) {
		w, err := n.Factory(args)
		if err != nil {
			c.logger.Warn("watcher not installed", "watcher", n.Name, "error", err)
			continue
		}
		c.registry.Set(n.Name, w)
	}

	if c.isRoot() && opts.EmitLocationImmediate {
		if w, ok := c.registry.Get(watcher.NameLocation); ok {
			if one, ok := w.(watcher.OneShot); ok {
				if err := one.EmitOne(); err != nil {
					c.logger.Warn("immediate location not emitted", "error", err)
				}
			}
		}
	}

	c.discoveries.Add(1)
	go func() {
		defer c.discoveries.Done()
		n, err := c.frames.Discover(discoveryCtx, c.deps.Context)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("frame discovery failed", "error", err)
			return
		}
		if n > 0 {
			c.logger.Debug("frames attached", "count", n)
		}
	}()
	return nil
}

func (c *controller) emitHead(relatedID string) {
	d := c.deps.Context.Describe()
	rec, err := ir.NewRecord(ir.RecordHead, ir.HeadData{
		RelatedID: relatedID,
		Href:      d.Href,
		Title:     d.Title,
		UserAgent: d.UserAgent,
		Width:     d.Width,
		Height:    d.Height,
		Version:   ir.RecorderVersion,
		StartTime: c.startTime,
	}, relatedID, clock.Millis(c.deps.Clock))
	if err != nil {
		c.logger.Error("head record not built", "error", err)
		return
	}
	c.emit(rec)
}

// Pause stops capturing. It is effective only from RUNNING. It returns the
// TERMINATE time, or ok=false when the log was empty or unreadable.
func (c *controller) Pause(ctx context.Context) (int64, bool) {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return 0, false
	}
	c.status = StatusPause
	idle := c.idle
	stop := c.stopDiscover
	c.stopDiscover = nil
	relatedID := c.relatedID
	write := c.opts.Write
	c.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
	}

	c.listeners.Run()
	c.registry.Reset()

	if stop != nil {
		stop()
	}
	c.discoveries.Wait()
	c.children.Run()
	c.mu.Lock()
	c.kids = nil
	c.mu.Unlock()

	// Read after the children are gone so nothing they commit can land
	// behind TERMINATE.
	last, err := c.log.Last(ctx)
	hasLast := err == nil
	if err != nil && !errors.Is(err, store.ErrEmptyStore) {
		c.logger.Warn("last record unavailable", "error", err)
	}

	c.logger.Info("recording paused", "related_id", relatedID)
	if !hasLast {
		return 0, false
	}
	lastTime := last.Time + 1

	// Frame sessions share the root's last record, so only the root
	// terminates the lineage.
	if relatedID != "" && c.isRoot() {
		term := ir.Record{Type: ir.RecordTerminate, RelatedID: relatedID, Time: lastTime}
		if write {
			c.log.Add(term, nil)
		}
		c.pipe.Run(c.ctx, term)
	}
	return lastTime, true
}

// Destroy pauses the session and moves it to HALT. Children are destroyed
// before it returns. Further calls do nothing.
func (c *controller) Destroy(ctx context.Context) error {
	c.destroyMu.Lock()
	defer c.destroyMu.Unlock()

	if c.Status() == StatusHalt {
		return nil
	}
	lastTime, ok := c.Pause(ctx)
	if !ok {
		lastTime = clock.Millis(c.deps.Clock)
	}

	c.mu.Lock()
	c.status = StatusHalt
	c.destroyTime = lastTime
	ticker, done := c.ticker, c.tickerDone
	c.ticker, c.tickerDone = nil, nil
	c.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(done)
	}
	if c.ownsLog {
		c.log.Close()
	}
	c.logger.Info("session destroyed", "destroy_time", lastTime)
	return nil
}

// SpawnChild starts a frame session recording doc. It implements
// frames.Spawner.
func (c *controller) SpawnChild(ctx context.Context, doc watcher.Context) (frames.Child, error) {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return nil, errInvalidState("spawn", "parent session is not running")
	}
	l := &lineage{relatedID: c.relatedID, root: c.rootPipeline(), log: c.log}
	opts := c.opts
	c.mu.Unlock()

	deps := c.deps
	deps.Context = doc
	deps.Watchers = nil
	deps.Plugins = nil
	deps.Persister = nil

	child, err := newController(c.ctx, opts, deps, l)
	if err != nil {
		return nil, err
	}
	if err := child.Record(ctx, nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.kids = append(c.kids, child)
	c.mu.Unlock()
	return child, nil
}

// Attach records a frame that appeared after discovery.
func (c *controller) Attach(ctx context.Context, f watcher.Frame) error {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return errInvalidState("attach", "session is not running")
	}
	discoveryCtx := c.discoveryCtx
	c.discoveries.Add(1)
	c.mu.Unlock()
	defer c.discoveries.Done()

	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(discoveryCtx, cancel)
	defer stop()
	return c.frames.Attach(actx, f)
}

func (c *controller) spawned() []*controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*controller(nil), c.kids...)
}

// startRetention runs the log trim every writeKeepTime while writing.
func (c *controller) startRetention() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.Write || c.opts.WriteKeepTime == 0 || c.ticker != nil {
		return
	}
	c.ticker = c.deps.Clock.NewTicker(time.Duration(c.opts.WriteKeepTime) * time.Millisecond)
	c.tickerDone = make(chan struct{})
	go func(ticks <-chan time.Time, done <-chan struct{}) {
		for {
			select {
			case <-ticks:
				c.trimLog()
			case <-done:
				return
			}
		}
	}(c.ticker.C, c.tickerDone)
}

// trimLog deletes every record older than the oldest checkpoint once a
// newer checkpoint exists.
func (c *controller) trimLog() {
	bound, ok := c.cache.RetentionBound()
	if !ok {
		return
	}
	if err := c.log.Delete(store.DeleteRange{Upper: bound}); err != nil {
		return
	}
	c.logger.Debug("log trimmed", "upper", bound)
}
