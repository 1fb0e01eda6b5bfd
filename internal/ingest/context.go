package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// EventRecord is the envelope event carrying one captured record.
const EventRecord = "record"

var (
	// ErrUnknownEvent is returned by Deliver for an event it cannot route.
	ErrUnknownEvent = errors.New("unknown envelope event")

	// ErrMissingRecord is returned by Deliver for a record envelope
	// without a record.
	ErrMissingRecord = errors.New("record envelope without record")
)

// Envelope is one message on an ingest connection.
type Envelope struct {
	Event  string     `json:"event"`
	Record *ir.Record `json:"record,omitempty"`
}

// Validate checks that env can be delivered.
func (env Envelope) Validate() error {
	switch env.Event {
	case EventRecord:
		if env.Record == nil {
			return ErrMissingRecord
		}
		return nil
	case "":
		return fmt.Errorf("%w: empty event", ErrUnknownEvent)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// RemoteContext is a target document that lives on the other end of a
// connection. Its description follows the HEAD, LOCATION and top-level
// WINDOW records delivered through it.
//
// Thread-safety: safe for concurrent use. Deliver calls listeners without
// holding the lock.
type RemoteContext struct {
	id string

	mu        sync.Mutex
	desc      watcher.Description
	listeners map[string][]*watcher.Listener
}

// NewRemoteContext returns a context identified by id that starts out
// described by desc.
func NewRemoteContext(id string, desc watcher.Description) *RemoteContext {
	return &RemoteContext{
		id:        id,
		desc:      desc,
		listeners: make(map[string][]*watcher.Listener),
	}
}

func (c *RemoteContext) ID() string { return c.id }

func (c *RemoteContext) Describe() watcher.Description {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desc
}

func (c *RemoteContext) AddEventListener(name string, l *watcher.Listener, _ watcher.ListenerOptions) {
	c.mu.Lock()
	c.listeners[name] = append(c.listeners[name], l)
	c.mu.Unlock()
}

func (c *RemoteContext) RemoveEventListener(name string, l *watcher.Listener, _ watcher.ListenerOptions) {
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

// Frames is always empty: a remote client records its own frames and
// streams them under the same correlation.
func (c *RemoteContext) Frames() []watcher.Frame { return nil }

// Listeners returns the number of listeners across all events.
func (c *RemoteContext) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ls := range c.listeners {
		n += len(ls)
	}
	return n
}

// Deliver updates the description from env and dispatches it to the
// listeners registered for env.Event.
func (c *RemoteContext) Deliver(env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(env.Record)
	if err != nil {
		return fmt.Errorf("encode envelope record: %w", err)
	}

	c.mu.Lock()
	c.observe(*env.Record)
	ls := append([]*watcher.Listener(nil), c.listeners[env.Event]...)
	c.mu.Unlock()

	ev := watcher.Event{Name: env.Event, Data: data, Time: env.Record.Time}
	for _, l := range ls {
		l.Handle(ev)
	}
	return nil
}

// observe must be called with c.mu held. Payloads that fail to decode
// leave the description unchanged.
func (c *RemoteContext) observe(rec ir.Record) {
	switch rec.Type {
	case ir.RecordHead:
		var head ir.HeadData
		if rec.DecodeData(&head) != nil {
			return
		}
		c.desc.Href = head.Href
		c.desc.Title = head.Title
		c.desc.UserAgent = head.UserAgent
		c.desc.Width, c.desc.Height = head.Width, head.Height
	case ir.RecordLocation:
		var loc ir.LocationData
		if rec.DecodeData(&loc) != nil || loc.FrameID != nil {
			return
		}
		c.desc.Href, c.desc.Path, c.desc.Hash = loc.Href, loc.Path, loc.Hash
		if loc.Title != "" {
			c.desc.Title = loc.Title
		}
	case ir.RecordWindow:
		var win ir.WindowData
		if rec.DecodeData(&win) != nil || win.ID != nil {
			return
		}
		c.desc.Width, c.desc.Height = win.Width, win.Height
	case ir.RecordScroll:
		var sc ir.ScrollData
		if rec.DecodeData(&sc) != nil || sc.ID != nil {
			return
		}
		c.desc.ScrollTop, c.desc.ScrollLeft = sc.Top, sc.Left
	}
}
