package watcher

import (
	"encoding/json"
	"sync"

	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
)

// Event is one occurrence delivered by a target context.
type Event struct {
	Name string
	Data json.RawMessage // event-specific payload, may be empty
	Time int64           // epoch ms; zero means "now" to the receiver
}

// Listener receives events. Listeners are compared by pointer identity, so
// the same *Listener must be passed to RemoveEventListener.
type Listener struct {
	Handle func(Event)
}

// NewListener wraps fn.
func NewListener(fn func(Event)) *Listener {
	return &Listener{Handle: fn}
}

// ListenerOptions mirrors the add-listener flags a target context honours.
type ListenerOptions struct {
	Capture bool
	Passive bool
	Once    bool
}

// Description is the environment metadata of a target context.
type Description struct {
	Href       string
	Path       string
	Hash       string
	Title      string
	UserAgent  string
	Width      int
	Height     int
	ScrollTop  int
	ScrollLeft int
	FrameID    *int64 // nil for the top-level document
}

// Context is a document being recorded.
type Context interface {
	// ID identifies the context for logging and store lineage.
	ID() string
	Describe() Description
	AddEventListener(name string, l *Listener, opts ListenerOptions)
	RemoveEventListener(name string, l *Listener, opts ListenerOptions)
	// Frames lists the nested frames currently embedded in the document.
	Frames() []Frame
}

// Frame is an embedded child document.
type Frame interface {
	// Source returns the embedding element's source locator. It fails when
	// the frame cannot be inspected, e.g. cross-origin.
	Source() (string, error)
	// Ready reports whether the frame's document has finished loading.
	Ready() bool
	// OnLoad registers fn to run once the frame loads and reports whether
	// load completion is observable. When it returns false the caller must
	// poll Ready.
	OnLoad(fn func()) bool
	// Context returns the frame's document context.
	Context() (Context, error)
}

// CaptureOptions is handed to the Snapshotter.
type CaptureOptions struct {
	RewriteResource []config.RewriteResource
}

// Snapshotter produces the structural state of a context. It is an
// external collaborator; the recorder only invokes it.
type Snapshotter interface {
	// CaptureFull serializes the whole document. Patches on the result
	// list the resource rewrites applied while capturing.
	CaptureFull(target Context, opts CaptureOptions) (ir.SnapshotData, error)
	// CaptureSurfaces encodes every non-blank renderable surface.
	CaptureSurfaces(target Context) ([]ir.SurfaceData, error)
}

// EmitFunc hands a record to the owning controller.
type EmitFunc func(rec ir.Record)

// Teardown is the shared set of inverse callbacks run on pause.
//
// Thread-safety: safe for concurrent use.
type Teardown struct {
	mu  sync.Mutex
	fns []func()
}

// Add registers fn.
func (t *Teardown) Add(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.fns = append(t.fns, fn)
	t.mu.Unlock()
}

// Len returns the number of pending callbacks.
func (t *Teardown) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}

// Run invokes every callback in registration order and empties the set.
// Callbacks registered while Run executes are kept for the next Run.
func (t *Teardown) Run() {
	t.mu.Lock()
	fns := t.fns
	t.fns = nil
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Registry maps watcher names to the live instances of one session.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]Watcher)}
}

func (r *Registry) Set(name string, w Watcher) {
	r.mu.Lock()
	r.watchers[name] = w
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Watcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.watchers[name]
	return w, ok
}

// Reset forgets every instance.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.watchers = make(map[string]Watcher)
	r.mu.Unlock()
}
