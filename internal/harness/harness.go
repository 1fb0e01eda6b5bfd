package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/recorder"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/testutil"
	"github.com/roach88/timecat/internal/watcher"
)

const (
	rootID = "root"

	// waitTimeout bounds flush and wait_frames in wall-clock time.
	waitTimeout = 5 * time.Second
)

// Harness runs one scenario against a fresh in-memory store, a fake clock
// and fake documents, so identical scenarios produce identical logs.
type Harness struct {
	store  *store.Store
	clock  *clock.FakeClock
	opts   config.Options
	root   *testutil.FakeContext
	docs   map[string]*testutil.FakeContext
	frames map[string]*testutil.FakeFrame
	rec    *recorder.Recorder
	logger *slog.Logger
	halted bool
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes session logs to logger. Logs are discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// Run executes scenario and evaluates its assertions.
//
// Execution flow:
//  1. open an in-memory store and build the fake documents
//  2. start a recorder at the scenario's start time
//  3. run the steps
//  4. flush, collect the log and checkpoints, destroy the session
//  5. evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	sessionOpts, err := scenario.SessionOptions()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  clock.FakeMillis(scenario.StartTime),
		opts:   sessionOpts,
		root:   testutil.NewFakeContext(rootID),
		docs:   make(map[string]*testutil.FakeContext),
		frames: make(map[string]*testutil.FakeFrame),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.buildDocuments(scenario)

	relatedID := scenario.RelatedID
	if relatedID == "" {
		relatedID = "scenario"
	}
	snap := testutil.NewFakeSnapshotter().WithSurfaces(scenario.Surfaces...)
	h.rec, err = recorder.New(ctx, sessionOpts, recorder.Deps{
		Context:     h.root,
		Store:       store.StaticOpener(st),
		Snapshotter: snap,
		Clock:       h.clock,
		Logger:      h.logger,
		IDs:         testutil.NewFixedIDGenerator(relatedID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer h.rec.Destroy(context.WithoutCancel(ctx))

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	result := NewResult()
	if err := h.collect(ctx, scenario, result); err != nil {
		return nil, err
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) buildDocuments(scenario *Scenario) {
	if d := scenario.Document; d != nil {
		desc := h.root.Describe()
		if d.Href != "" {
			desc.Href = d.Href
		}
		if d.Title != "" {
			desc.Title = d.Title
		}
		if d.Width > 0 {
			desc.Width = d.Width
		}
		if d.Height > 0 {
			desc.Height = d.Height
		}
		h.root.SetDescription(desc)
	}

	for i, f := range scenario.Frames {
		var frame *testutil.FakeFrame
		if f.CrossOrigin {
			frame = testutil.NewCrossOriginFrame()
		} else {
			doc := testutil.NewFakeContext(f.ID)
			desc := doc.Describe()
			frameID := int64(i + 1)
			desc.FrameID = &frameID
			doc.SetDescription(desc)
			h.docs[f.ID] = doc

			src := f.Src
			if src == "" {
				src = "/" + f.ID + ".html"
			}
			frame = testutil.NewFakeFrame(src, doc)
		}
		frame.SetReady(f.Ready).SetObservable(!f.Unobservable)
		h.frames[f.ID] = frame
		h.root.AddFrame(frame)
	}
}

// target resolves a step's document.
func (h *Harness) target(step Step) (*testutil.FakeContext, error) {
	if step.Target == "" {
		return h.root, nil
	}
	doc, ok := h.docs[step.Target]
	if !ok {
		return nil, fmt.Errorf("frame %q has no accessible document", step.Target)
	}
	return doc, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.Action {
	case StepClock:
		h.clock.Set(time.UnixMilli(step.At))
	case StepAdvance:
		h.clock.Advance(time.Duration(step.Ms) * time.Millisecond)
	case StepDispatch, StepResize, StepScroll:
		return h.dispatch(step)
	case StepLoadFrame:
		h.frames[step.Frame].Load()
	case StepWaitFrames:
		deadline := time.Now().Add(waitTimeout)
		for h.rec.Frames() < step.Count {
			if time.Now().After(deadline) {
				return fmt.Errorf("%d frame sessions after %s, want %d", h.rec.Frames(), waitTimeout, step.Count)
			}
			time.Sleep(time.Millisecond)
		}
	case StepFlush:
		return h.flush(ctx)
	case StepPause:
		if err := h.flush(ctx); err != nil {
			return err
		}
		h.rec.Pause(ctx)
	case StepRecord:
		return h.rec.Record(ctx, nil)
	case StepDestroy:
		if err := h.flush(ctx); err != nil {
			return err
		}
		h.halted = true
		return h.rec.Destroy(ctx)
	case StepClear:
		return h.rec.ClearDB()
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

func (h *Harness) dispatch(step Step) error {
	doc, err := h.target(step)
	if err != nil {
		return err
	}

	name := step.Event
	switch step.Action {
	case StepResize:
		desc := doc.Describe()
		desc.Width, desc.Height = step.Width, step.Height
		doc.SetDescription(desc)
		name = "resize"
	case StepScroll:
		desc := doc.Describe()
		desc.ScrollTop, desc.ScrollLeft = step.Top, step.Left
		doc.SetDescription(desc)
		name = "scroll"
	}

	ev := watcher.Event{Name: name, Time: step.Time}
	if step.Data != nil {
		data, err := json.Marshal(step.Data)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		ev.Data = data
	}
	doc.Dispatch(ev)
	return nil
}

// flush is a no-op once the session is destroyed; destroy already drained
// the log.
func (h *Harness) flush(ctx context.Context) error {
	if h.halted {
		return nil
	}
	fctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	return h.rec.Flush(fctx)
}

func (h *Harness) collect(ctx context.Context, scenario *Scenario, result *Result) error {
	if err := h.flush(ctx); err != nil {
		return fmt.Errorf("failed to flush session: %w", err)
	}

	recs, err := h.store.ReadRecords(ctx, h.opts.StoreKey)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	if recs != nil {
		result.Log = recs
	}
	if cps := h.rec.Checkpoints(); cps != nil {
		result.Checkpoints = cps
	}

	now := clock.Millis(h.clock)
	for _, a := range scenario.Assertions {
		if a.Type != AssertWindowTypes {
			continue
		}
		if _, done := result.Windows[a.Limit]; done {
			continue
		}
		result.Windows[a.Limit] = store.ApplyWindow(recs, result.Checkpoints, now, a.Limit)
	}
	return nil
}

// typeNames resolves names validated by LoadScenario.
func typeNames(names []string) []ir.RecordType {
	out := make([]ir.RecordType, len(names))
	for i, n := range names {
		out[i], _ = ir.ParseRecordType(n)
	}
	return out
}
