// Package checkpoint keeps the bounded set of full-state checkpoints a
// session captures periodically, so a bounded read window of the log can
// still be replayed from scratch.
package checkpoint

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// MaxEntries bounds the cache: the current checkpoint plus one prior, so a
// replacement in flight never leaves a window without one.
const MaxEntries = 2

// Cache is the bounded checkpoint ring of one session. It implements
// store.CheckpointReader.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	entries   []ir.Checkpoint
	saveMu    sync.Mutex // serializes saves so a stale copy never lands last
	persister Persister
	logger    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithPersister saves the cache after every change.
func WithPersister(p Persister) Option {
	return func(c *Cache) { c.persister = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the entries with what the persister holds. A missing or
// unreadable file yields an empty cache; Load never fails because of it.
func (c *Cache) Load() {
	if c.persister == nil {
		return
	}
	entries, err := c.persister.Load()
	if err != nil {
		c.logger.Warn("checkpoint cache unreadable, starting empty", "error", err)
		entries = nil
	}
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// ShouldCapture reports whether a record emitted at now needs a new
// checkpoint: the cache is empty or the newest entry is older than
// retention ms.
func (c *Cache) ShouldCapture(now, retention int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return true
	}
	return now-c.entries[len(c.entries)-1].Time > retention
}

// Capture freezes a full structural snapshot and the non-blank surfaces of
// target, tags them with rec's type, time and correlation id, and adds the
// result. Adding a third entry evicts the oldest.
func (c *Cache) Capture(rec ir.Record, snap watcher.Snapshotter, target watcher.Context, opts watcher.CaptureOptions) (ir.Checkpoint, error) {
	if snap == nil {
		return ir.Checkpoint{}, watcher.ErrMissingSnapshotter
	}
	full, err := snap.CaptureFull(target, opts)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("capture checkpoint snapshot: %w", err)
	}
	surfaces, err := snap.CaptureSurfaces(target)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("capture checkpoint surfaces: %w", err)
	}

	snapshot, err := ir.NewRecord(ir.RecordSnapshot, full, rec.RelatedID, rec.Time)
	if err != nil {
		return ir.Checkpoint{}, err
	}
	cp := ir.Checkpoint{
		Type:      rec.Type,
		Time:      rec.Time,
		ID:        rec.ID,
		RelatedID: rec.RelatedID,
		Snapshot:  snapshot,
	}
	for _, s := range surfaces {
		if s.Src == "" {
			continue
		}
		sr, err := ir.NewRecord(ir.RecordCanvasSnapshot, s, rec.RelatedID, rec.Time)
		if err != nil {
			return ir.Checkpoint{}, err
		}
		cp.Surfaces = append(cp.Surfaces, sr)
	}

	c.Add(cp)
	return cp, nil
}

// Add appends cp, evicting index 0 when the bound is exceeded.
func (c *Cache) Add(cp ir.Checkpoint) {
	c.mu.Lock()
	c.entries = append(c.entries, cp)
	if len(c.entries) > MaxEntries {
		c.entries = append([]ir.Checkpoint(nil), c.entries[len(c.entries)-MaxEntries:]...)
	}
	c.mu.Unlock()
	c.persist()
}

// Reconcile records the store-assigned id of a committed record on every
// checkpoint it triggered, matched by type and time. It reports whether
// any entry changed.
func (c *Cache) Reconcile(rec ir.Record) bool {
	if rec.ID == 0 {
		return false
	}
	changed := false
	c.mu.Lock()
	for i := range c.entries {
		if c.entries[i].Type == rec.Type && c.entries[i].Time == rec.Time && c.entries[i].ID != rec.ID {
			c.entries[i].ID = rec.ID
			changed = true
		}
	}
	c.mu.Unlock()
	if changed {
		c.persist()
	}
	return changed
}

// Preceding returns the newest checkpoint older than limit ms at now, i.e.
// the one immediately before the read-window boundary, or nil.
func (c *Cache) Preceding(now, limit int64) *ir.Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.entries) - 1; i >= 0; i-- {
		if now-c.entries[i].Time > limit {
			cp := c.entries[i]
			return &cp
		}
	}
	return nil
}

// RetentionBound returns the id below which records are no longer needed:
// the oldest checkpoint's id, once two checkpoints exist and the oldest has
// been reconciled.
func (c *Cache) RetentionBound() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) < MaxEntries || c.entries[0].ID == 0 {
		return 0, false
	}
	return c.entries[0].ID, true
}

// Entries returns a copy of the entries, oldest first.
func (c *Cache) Entries() []ir.Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ir.Checkpoint(nil), c.entries...)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	c.persist()
}

func (c *Cache) persist() {
	if c.persister == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	entries := c.Entries()
	if err := c.persister.Save(entries); err != nil {
		c.logger.Warn("checkpoint cache not saved", "error", err)
	}
}
