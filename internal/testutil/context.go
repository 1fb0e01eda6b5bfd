package testutil

import (
	"errors"
	"sync"

	"github.com/roach88/timecat/internal/watcher"
)

// FakeContext is a scriptable target document.
//
// Thread-safety: all methods are safe for concurrent use. Dispatch calls
// listeners without holding the lock.
type FakeContext struct {
	id string

	mu        sync.Mutex
	desc      watcher.Description
	listeners map[string][]*watcher.Listener
	frames    []watcher.Frame
}

// NewFakeContext returns a context with a plausible default description.
func NewFakeContext(id string) *FakeContext {
	return &FakeContext{
		id: id,
		desc: watcher.Description{
			Href:      "https://example.test/" + id,
			Path:      "/" + id,
			Title:     id,
			UserAgent: "timecat-test",
			Width:     1280,
			Height:    720,
		},
		listeners: make(map[string][]*watcher.Listener),
	}
}

func (c *FakeContext) ID() string { return c.id }

func (c *FakeContext) Describe() watcher.Description {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desc
}

// SetDescription replaces what Describe returns.
func (c *FakeContext) SetDescription(d watcher.Description) {
	c.mu.Lock()
	c.desc = d
	c.mu.Unlock()
}

func (c *FakeContext) AddEventListener(name string, l *watcher.Listener, _ watcher.ListenerOptions) {
	c.mu.Lock()
	c.listeners[name] = append(c.listeners[name], l)
	c.mu.Unlock()
}

func (c *FakeContext) RemoveEventListener(name string, l *watcher.Listener, _ watcher.ListenerOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.listeners[name]
	for i, existing := range ls {
		if existing == l {
			c.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(c.listeners[name]) == 0 {
		delete(c.listeners, name)
	}
}

// Dispatch delivers ev to every listener registered for ev.Name.
func (c *FakeContext) Dispatch(ev watcher.Event) {
	c.mu.Lock()
	ls := append([]*watcher.Listener(nil), c.listeners[ev.Name]...)
	c.mu.Unlock()
	for _, l := range ls {
		l.Handle(ev)
	}
}

// ListenerCount returns the number of listeners across all event names.
func (c *FakeContext) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ls := range c.listeners {
		n += len(ls)
	}
	return n
}

// AddFrame embeds f in the document.
func (c *FakeContext) AddFrame(f watcher.Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
}

func (c *FakeContext) Frames() []watcher.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]watcher.Frame(nil), c.frames...)
}

// ErrCrossOrigin is what a cross-origin FakeFrame reports.
var ErrCrossOrigin = errors.New("blocked a frame with a different origin")

// FakeFrame is a scriptable embedded frame.
type FakeFrame struct {
	mu         sync.Mutex
	src        string
	srcErr     error
	ready      bool
	observable bool
	ctx        watcher.Context
	ctxErr     error
	onLoad     []func()
}

// NewFakeFrame returns a same-origin frame with the given source whose
// document is ctx. It starts unloaded with observable load.
func NewFakeFrame(src string, ctx watcher.Context) *FakeFrame {
	return &FakeFrame{src: src, ctx: ctx, observable: true}
}

// NewCrossOriginFrame returns a frame whose source cannot be read.
func NewCrossOriginFrame() *FakeFrame {
	return &FakeFrame{srcErr: ErrCrossOrigin, ctxErr: ErrCrossOrigin, observable: true}
}

// SetObservable controls what OnLoad reports.
func (f *FakeFrame) SetObservable(v bool) *FakeFrame {
	f.mu.Lock()
	f.observable = v
	f.mu.Unlock()
	return f
}

// SetReady marks the frame loaded without firing OnLoad callbacks.
func (f *FakeFrame) SetReady(v bool) *FakeFrame {
	f.mu.Lock()
	f.ready = v
	f.mu.Unlock()
	return f
}

// SetContext replaces the frame's document context and access error.
func (f *FakeFrame) SetContext(ctx watcher.Context, err error) {
	f.mu.Lock()
	f.ctx, f.ctxErr = ctx, err
	f.mu.Unlock()
}

// Load marks the frame ready and fires OnLoad callbacks.
func (f *FakeFrame) Load() {
	f.mu.Lock()
	f.ready = true
	fns := f.onLoad
	f.onLoad = nil
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *FakeFrame) Source() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src, f.srcErr
}

func (f *FakeFrame) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *FakeFrame) OnLoad(fn func()) bool {
	f.mu.Lock()
	if !f.observable {
		f.mu.Unlock()
		return false
	}
	if f.ready {
		f.mu.Unlock()
		fn()
		return true
	}
	f.onLoad = append(f.onLoad, fn)
	f.mu.Unlock()
	return true
}

func (f *FakeFrame) Context() (watcher.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxErr != nil {
		return nil, f.ctxErr
	}
	if f.ctx == nil {
		return nil, errors.New("frame document not available")
	}
	return f.ctx, nil
}
