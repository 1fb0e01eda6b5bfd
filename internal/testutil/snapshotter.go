package testutil

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// FakeSnapshotter returns a small deterministic tree naming the context it
// captured, plus scripted patches and surfaces.
type FakeSnapshotter struct {
	mu       sync.Mutex
	patches  []json.RawMessage
	surfaces []ir.SurfaceData
	err      error
	full     int
	surface  int
}

// NewFakeSnapshotter returns a snapshotter with no patches or surfaces.
func NewFakeSnapshotter() *FakeSnapshotter {
	return &FakeSnapshotter{}
}

// WithPatches makes every full capture report the given patches.
func (s *FakeSnapshotter) WithPatches(patches ...json.RawMessage) *FakeSnapshotter {
	s.mu.Lock()
	s.patches = patches
	s.mu.Unlock()
	return s
}

// WithSurfaces makes surface captures return the given encodings. Entries
// with an empty Src are blank and skipped.
func (s *FakeSnapshotter) WithSurfaces(surfaces ...ir.SurfaceData) *FakeSnapshotter {
	s.mu.Lock()
	s.surfaces = surfaces
	s.mu.Unlock()
	return s
}

// Fail makes every capture return err.
func (s *FakeSnapshotter) Fail(err error) *FakeSnapshotter {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return s
}

func (s *FakeSnapshotter) CaptureFull(target watcher.Context, _ watcher.CaptureOptions) (ir.SnapshotData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full++
	if s.err != nil {
		return ir.SnapshotData{}, s.err
	}
	d := target.Describe()
	return ir.SnapshotData{
		Tree: json.RawMessage(fmt.Sprintf(`{"tag":"html","ctx":%q}`, target.ID())),
		DocumentMeta: ir.DocumentMeta{
			Doctype:    ir.Doctype{Name: "html"},
			Href:       d.Href,
			ScrollTop:  d.ScrollTop,
			ScrollLeft: d.ScrollLeft,
			Width:      d.Width,
			Height:     d.Height,
			FrameID:    d.FrameID,
		},
		Patches: append([]json.RawMessage(nil), s.patches...),
	}, nil
}

func (s *FakeSnapshotter) CaptureSurfaces(watcher.Context) ([]ir.SurfaceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface++
	if s.err != nil {
		return nil, s.err
	}
	var out []ir.SurfaceData
	for _, sd := range s.surfaces {
		if sd.Src == "" {
			continue
		}
		out = append(out, sd)
	}
	return out, nil
}

// FullCaptures returns how many times CaptureFull ran.
func (s *FakeSnapshotter) FullCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// SurfaceCaptures returns how many times CaptureSurfaces ran.
func (s *FakeSnapshotter) SurfaceCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}
