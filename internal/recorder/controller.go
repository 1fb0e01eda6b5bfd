package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/frames"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/pipeline"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/watcher"
)

// Status is a session's lifecycle state.
type Status int

const (
	StatusPause Status = iota
	StatusRunning
	StatusHalt
)

func (s Status) String() string {
	switch s {
	case StatusPause:
		return "PAUSE"
	case StatusRunning:
		return "RUNNING"
	case StatusHalt:
		return "HALT"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// lineage is what a frame session inherits from its root.
type lineage struct {
	relatedID string
	root      *pipeline.Pipeline
	log       *store.Log
}

// pending is one queued emission.
type pending struct {
	rec      ir.Record
	chain    pipeline.Chain
	onCommit func(ir.Record)
}

// controller is one session. Root sessions own their log; frame sessions
// write through the root's.
type controller struct {
	ctx     context.Context // lifetime values, never cancelled
	deps    Deps
	parent  *lineage // nil for the root
	logger  *slog.Logger
	log     *store.Log
	ownsLog bool
	cache   *checkpoint.Cache
	pipe    *pipeline.Pipeline

	listeners *watcher.Teardown
	children  *watcher.Teardown
	registry  *watcher.Registry
	frames    *frames.Supervisor

	destroyMu sync.Mutex // serializes Destroy

	mu           sync.Mutex
	opts         config.Options
	status       Status
	relatedID    string
	startTime    int64
	destroyTime  int64
	hooks        Hooks
	kids         []*controller
	queue        []pending
	draining     bool
	idle         chan struct{} // closed while no drain runs
	discoveryCtx context.Context
	stopDiscover context.CancelFunc
	discoveries  sync.WaitGroup
	ticker       *clock.Ticker
	tickerDone   chan struct{}
}

func newController(ctx context.Context, opts config.Options, deps Deps, parent *lineage) (*controller, error) {
	deps = deps.withDefaults()
	if deps.Context == nil {
		return nil, errors.New("recorder: nil target context")
	}
	opts = opts.Normalize()
	if parent != nil {
		opts.Keep = true
	}

	c := &controller{
		ctx:       context.WithoutCancel(ctx),
		deps:      deps,
		parent:    parent,
		opts:      opts,
		status:    StatusPause,
		listeners: &watcher.Teardown{},
		children:  &watcher.Teardown{},
		registry:  watcher.NewRegistry(),
		idle:      closedChan(),
		startTime: clock.Millis(deps.Clock),
	}
	c.logger = deps.Logger.With("store_key", opts.StoreKey, "context", deps.Context.ID())

	if parent == nil {
		if deps.Store == nil {
			return nil, errors.New("recorder: nil store opener")
		}
		logOpts := append([]store.LogOption{
			store.WithLogger(deps.Logger),
			store.WithClock(deps.Clock),
		}, deps.LogOptions...)
		log, err := store.NewLog(deps.Store, opts.StoreKey, logOpts...)
		if err != nil {
			return nil, fmt.Errorf("open session log: %w", err)
		}
		c.log, c.ownsLog = log, true
		c.pipe = pipeline.New(pipeline.WithLogger(c.logger))
	} else {
		c.log = parent.log
		c.pipe = pipeline.New(pipeline.WithNext(parent.root), pipeline.WithLogger(c.logger))
	}

	cacheOpts := []checkpoint.Option{checkpoint.WithLogger(c.logger)}
	if parent == nil && opts.Keep {
		if p := c.persister(); p != nil {
			cacheOpts = append(cacheOpts, checkpoint.WithPersister(p))
		}
	}
	c.cache = checkpoint.New(cacheOpts...)
	if parent == nil && opts.Keep {
		c.cache.Load()
	}

	c.frames = frames.New(c, c.children,
		frames.WithClock(deps.Clock),
		frames.WithLogger(c.logger),
	)
	return c, nil
}

func (c *controller) persister() checkpoint.Persister {
	if c.deps.Persister != nil {
		return c.deps.Persister
	}
	if c.opts.CheckpointFile != "" {
		return checkpoint.NewFilePersister(c.opts.CheckpointFile)
	}
	return nil
}

func (c *controller) isRoot() bool { return c.parent == nil }

// rootPipeline is the pipeline frame sessions chain after their own.
func (c *controller) rootPipeline() *pipeline.Pipeline {
	if c.parent != nil {
		return c.parent.root
	}
	return c.pipe
}

func (c *controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *controller) RelatedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relatedID
}

func (c *controller) Options() config.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// use applies p. Watchers it adds join the next Record.
func (c *controller) use(p Plugin) error {
	if !c.isRoot() {
		return errInvalidState("use", "plugins apply to root sessions only")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusHalt {
		return errHalted("use")
	}
	p.Apply(&c.hooks)
	return nil
}

func (c *controller) emitHooks() []func(ir.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(ir.Record){}, c.hooks.emit...)
}

// watcherSet returns the factories Record constructs.
func (c *controller) watcherSet(opts config.Options) []watcher.Named {
	if !c.isRoot() {
		return watcher.Select(opts, watcher.Baseline())
	}
	set := c.deps.Watchers
	if set == nil {
		set = watcher.Builtins(opts.Audio, opts.Video.Enabled)
	}
	c.mu.Lock()
	set = append(append([]watcher.Named(nil), set...), c.hooks.watchers...)
	c.mu.Unlock()
	return watcher.Select(opts, set)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
