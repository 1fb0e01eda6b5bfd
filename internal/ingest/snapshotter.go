package ingest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// ErrNoSnapshot is returned by CaptureFull before any SNAPSHOT was seen.
var ErrNoSnapshot = errors.New("no snapshot received yet")

// OfflineSnapshotter answers captures from state replayed off the wire.
// It keeps the latest SNAPSHOT and, per surface id, the latest
// CANVAS_SNAPSHOT. A new SNAPSHOT forgets the surfaces seen before it.
//
// Thread-safety: safe for concurrent use.
type OfflineSnapshotter struct {
	mu       sync.Mutex
	snapshot *ir.SnapshotData
	surfaces map[int64]ir.SurfaceData
}

func NewOfflineSnapshotter() *OfflineSnapshotter {
	return &OfflineSnapshotter{surfaces: make(map[int64]ir.SurfaceData)}
}

// Observe caches rec when it carries structural state. It reports whether
// rec was kept.
func (s *OfflineSnapshotter) Observe(rec ir.Record) bool {
	switch rec.Type {
	case ir.RecordSnapshot:
		var snap ir.SnapshotData
		if rec.DecodeData(&snap) != nil {
			return false
		}
		s.mu.Lock()
		s.snapshot = &snap
		s.surfaces = make(map[int64]ir.SurfaceData)
		s.mu.Unlock()
		return true
	case ir.RecordCanvasSnapshot:
		var sd ir.SurfaceData
		if rec.DecodeData(&sd) != nil {
			return false
		}
		s.mu.Lock()
		if sd.Src == "" {
			delete(s.surfaces, sd.ID)
		} else {
			s.surfaces[sd.ID] = sd
		}
		s.mu.Unlock()
		return true
	}
	return false
}

// CaptureFull returns the cached snapshot. The target and rewrite rules
// are ignored: rewrites were applied by the client that captured it.
func (s *OfflineSnapshotter) CaptureFull(target watcher.Context, _ watcher.CaptureOptions) (ir.SnapshotData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return ir.SnapshotData{}, fmt.Errorf("%s: %w", target.ID(), ErrNoSnapshot)
	}
	return *s.snapshot, nil
}

// CaptureSurfaces returns the cached surfaces ordered by id.
func (s *OfflineSnapshotter) CaptureSurfaces(watcher.Context) ([]ir.SurfaceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.SurfaceData, 0, len(s.surfaces))
	for _, sd := range s.surfaces {
		out = append(out, sd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
