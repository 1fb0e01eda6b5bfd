package watcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/timecat/internal/ir"
)

// Built-in watcher names, as used by disableWatchers.
const (
	NameSnapshot = "snapshot"
	NameLocation = "location"
	NameWindow   = "window"
	NameScroll   = "scroll"
	NameAudio    = "audio"
	NameVideo    = "video"
)

const (
	windowThrottle = 500 * time.Millisecond
	scrollThrottle = 100 * time.Millisecond
)

// Builtins returns the root watcher set for the given media flags.
func Builtins(audio, video bool) []Named {
	set := []Named{
		{Name: NameSnapshot, Factory: NewSnapshot},
		{Name: NameLocation, Factory: NewLocation},
		{Name: NameWindow, Factory: NewWindow},
		{Name: NameScroll, Factory: NewScroll},
	}
	if audio {
		set = append(set, Named{Name: NameAudio, Factory: NewAudio})
	}
	if video {
		set = append(set, Named{Name: NameVideo, Factory: NewVideo})
	}
	return set
}

// Baseline returns the reduced set nested frame sessions record with.
func Baseline() []Named {
	return []Named{
		{Name: NameSnapshot, Factory: NewSnapshot},
		{Name: NameWindow, Factory: NewWindow},
		{Name: NameScroll, Factory: NewScroll},
	}
}

// Snapshot emits one SNAPSHOT record at construction, followed by a PATCH
// record at time+1 for every resource rewrite the capture applied.
type Snapshot struct {
	*Base
}

func NewSnapshot(args Args) (Watcher, error) {
	base, err := NewBase(NameSnapshot, args)
	if err != nil {
		return nil, err
	}
	if base.Snapshotter == nil {
		return nil, ErrMissingSnapshotter
	}
	w := &Snapshot{Base: base}

	snap, err := base.Snapshotter.CaptureFull(base.Context, CaptureOptions{RewriteResource: base.Options.RewriteResource})
	if err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	now := base.Clock.Now().UnixMilli()
	if err := w.EmitData(ir.RecordSnapshot, snap, At(now)); err != nil {
		return nil, err
	}
	for _, patch := range snap.Patches {
		if err := w.EmitData(ir.RecordPatch, patch, At(now+1)); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Location records navigation within the document.
type Location struct {
	*Base
}

func NewLocation(args Args) (Watcher, error) {
	base, err := NewBase(NameLocation, args)
	if err != nil {
		return nil, err
	}
	w := &Location{Base: base}
	w.RegisterEvent(EventOptions{
		Names:   []string{"popstate", "hashchange", "pushstate", "replacestate"},
		Handler: func(Event) {
			if err := w.emitLocation(); err != nil {
				w.Logger.Warn("location emit failed", "error", err)
			}
		},
	})
	return w, nil
}

// EmitOne emits the current location without waiting for navigation.
func (w *Location) EmitOne() error {
	return w.emitLocation()
}

func (w *Location) emitLocation() error {
	d := w.Context.Describe()
	return w.EmitData(ir.RecordLocation, ir.LocationData{
		Href:    d.Href,
		Path:    d.Path,
		Hash:    d.Hash,
		Title:   d.Title,
		FrameID: d.FrameID,
	})
}

// Window records viewport resizes, throttled.
type Window struct {
	*Base
}

func NewWindow(args Args) (Watcher, error) {
	base, err := NewBase(NameWindow, args)
	if err != nil {
		return nil, err
	}
	w := &Window{Base: base}
	w.RegisterEvent(EventOptions{
		Names:    []string{"resize"},
		Handler:  func(Event) { w.emitWindow() },
		Listener: ListenerOptions{Capture: true},
		Mode:     ModeThrottle,
		Wait:     windowThrottle,
		Leading:  true,
		Trailing: true,
	})
	return w, nil
}

func (w *Window) emitWindow() {
	d := w.Context.Describe()
	if err := w.EmitData(ir.RecordWindow, ir.WindowData{ID: d.FrameID, Width: d.Width, Height: d.Height}); err != nil {
		w.Logger.Warn("window emit failed", "error", err)
	}
}

// Scroll records scroll positions, throttled. Events carrying a payload
// describe an element scroll and are forwarded as is; events without one
// describe the document.
type Scroll struct {
	*Base
}

func NewScroll(args Args) (Watcher, error) {
	base, err := NewBase(NameScroll, args)
	if err != nil {
		return nil, err
	}
	w := &Scroll{Base: base}
	w.RegisterEvent(EventOptions{
		Names:    []string{"scroll"},
		Handler:  w.handle,
		Listener: ListenerOptions{Capture: true, Passive: true},
		Mode:     ModeThrottle,
		Wait:     scrollThrottle,
		Leading:  true,
		Trailing: true,
	})
	return w, nil
}

func (w *Scroll) handle(ev Event) {
	var payload any
	if len(ev.Data) > 0 {
		payload = json.RawMessage(ev.Data)
	} else {
		d := w.Context.Describe()
		payload = ir.ScrollData{ID: d.FrameID, Top: d.ScrollTop, Left: d.ScrollLeft}
	}
	var opts []EmitOption
	if ev.Time != 0 {
		opts = append(opts, At(ev.Time))
	}
	if err := w.EmitData(ir.RecordScroll, payload, opts...); err != nil {
		w.Logger.Warn("scroll emit failed", "error", err)
	}
}

// Media forwards audio or video chunks produced by the context.
type Media struct {
	*Base
	kind ir.RecordType
}

// NewAudio records audio. It emits an "opts" record at construction and
// then one record per audiostart, audiodata and audiostop event.
func NewAudio(args Args) (Watcher, error) {
	return newMedia(NameAudio, ir.RecordAudio, "audio", 0, args)
}

// NewVideo records video frames at the configured fps, throttled to at most
// one frame per 1/fps seconds.
func NewVideo(args Args) (Watcher, error) {
	fps := args.Options.Video.FPS
	if fps <= 0 {
		fps = 24
	}
	return newMedia(NameVideo, ir.RecordVideo, "video", fps, args)
}

func newMedia(name string, kind ir.RecordType, prefix string, fps int, args Args) (Watcher, error) {
	base, err := NewBase(name, args)
	if err != nil {
		return nil, err
	}
	w := &Media{Base: base, kind: kind}
	if err := w.EmitData(kind, ir.MediaData{Kind: "opts", FPS: fps}); err != nil {
		return nil, err
	}

	w.RegisterEvent(EventOptions{
		Names:   []string{prefix + "start", prefix + "stop"},
		Handler: w.forward,
	})
	data := EventOptions{Names: []string{prefix + "data"}, Handler: w.forward}
	if fps > 0 {
		data.Mode = ModeThrottle
		data.Wait = time.Second / time.Duration(fps)
		data.Leading = true
		data.Trailing = true
	}
	w.RegisterEvent(data)
	return w, nil
}

func (w *Media) forward(ev Event) {
	kind := "chunk"
	switch {
	case strings.HasSuffix(ev.Name, "start"):
		kind = "start"
	case strings.HasSuffix(ev.Name, "stop"):
		kind = "stop"
	}
	var opts []EmitOption
	if ev.Time != 0 {
		opts = append(opts, At(ev.Time))
	}
	if err := w.EmitData(w.kind, ir.MediaData{Kind: kind, Chunk: ev.Data}, opts...); err != nil {
		w.Logger.Warn("media emit failed", "watcher", w.Name(), "error", err)
	}
}
