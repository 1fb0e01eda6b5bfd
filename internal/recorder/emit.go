package recorder

import (
	"context"
	"runtime"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// emit is the EmitFunc every watcher of the session holds. It takes the
// checkpoint decision, queues rec and starts the drain if none runs.
// Records emitted outside RUNNING are dropped.
func (c *controller) emit(rec ir.Record) {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		c.logger.Debug("record dropped, session not running", "type", rec.Type.String(), "time", rec.Time)
		return
	}

	p := pending{rec: rec, chain: c.pipe.Chain()}
	if c.needCheckpoint() {
		_, err := c.cache.Capture(rec, c.deps.Snapshotter, c.deps.Context, watcher.CaptureOptions{
			RewriteResource: c.opts.RewriteResource,
		})
		if err != nil {
			c.logger.Warn("checkpoint not captured", "type", rec.Type.String(), "time", rec.Time, "error", err)
		} else {
			p.onCommit = func(committed ir.Record) { c.cache.Reconcile(committed) }
		}
	}

	c.queue = append(c.queue, p)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.idle = make(chan struct{})
	c.mu.Unlock()

	go c.drain()
}

// needCheckpoint must be called with c.mu held. Checkpoints bound the read
// window, so none are taken when windowing is disabled.
func (c *controller) needCheckpoint() bool {
	if c.deps.Snapshotter == nil || c.opts.WriteKeepTime <= 0 {
		return false
	}
	return c.cache.ShouldCapture(clock.Millis(c.deps.Clock), c.opts.WriteKeepTime)
}

// drain commits queued records one at a time, strictly FIFO, yielding
// between records. Status is checked per record: anything dequeued after
// the session left RUNNING is discarded.
func (c *controller) drain() {
	for {
		runtime.Gosched()

		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			close(c.idle)
			c.mu.Unlock()
			return
		}
		p := c.queue[0]
		c.queue[0] = pending{}
		c.queue = c.queue[1:]
		running := c.status == StatusRunning
		write := c.opts.Write
		c.mu.Unlock()

		if !running {
			c.logger.Debug("queued record discarded", "type", p.rec.Type.String(), "time", p.rec.Time)
			continue
		}
		c.commit(p, write)
	}
}

func (c *controller) commit(p pending, write bool) {
	if write {
		c.log.Add(p.rec, p.onCommit)
	}
	rec, _ := p.chain.Run(c.ctx, p.rec)
	for _, fn := range c.emitHooks() {
		fn(rec)
	}
}

// waitIdle blocks until this session's drain and those of its frame
// sessions are idle.
func (c *controller) waitIdle(ctx context.Context) error {
	select {
	case <-c.idleChan():
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, kid := range c.spawned() {
		if err := kid.waitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// idleChan is closed once the drain in flight, if any, finishes.
func (c *controller) idleChan() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}
