package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/testutil"
	"github.com/roach88/timecat/internal/watcher"
)

const testRelatedID = "session-1"

// probe is a watcher that exposes its Base so tests can emit directly.
type probe struct {
	mu   sync.Mutex
	base *watcher.Base
}

func (p *probe) named() watcher.Named {
	return watcher.Named{Name: "probe", Factory: func(args watcher.Args) (watcher.Watcher, error) {
		b, err := watcher.NewBase("probe", args)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.base = b
		p.mu.Unlock()
		return b, nil
	}}
}

func (p *probe) emit(t *testing.T, typ ir.RecordType, at int64) {
	t.Helper()
	p.mu.Lock()
	b := p.base
	p.mu.Unlock()
	require.NotNil(t, b, "probe not installed")
	require.NoError(t, b.EmitData(typ, map[string]int64{"at": at}, watcher.At(at)))
}

type fixture struct {
	store *store.Store
	clock *clock.FakeClock
	ctx   *testutil.FakeContext
	snap  *testutil.FakeSnapshotter
	probe *probe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "timecat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		store: s,
		clock: clock.FakeMillis(0),
		ctx:   testutil.NewFakeContext("root"),
		snap:  testutil.NewFakeSnapshotter(),
		probe: &probe{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Context:     f.ctx,
		Store:       store.StaticOpener(f.store),
		Snapshotter: f.snap,
		Watchers:    []watcher.Named{f.probe.named()},
		Clock:       f.clock,
		IDs:         testutil.NewFixedIDGenerator(testRelatedID),
	}
}

func probeOptions() config.Options {
	opts := config.Default()
	opts.EmitLocationImmediate = false
	return opts
}

func (f *fixture) start(t *testing.T, opts config.Options, deps Deps) *Recorder {
	t.Helper()
	r, err := New(context.Background(), opts, deps)
	require.NoError(t, err)
	t.Cleanup(func() { r.Destroy(context.Background()) })
	return r
}

func (f *fixture) committed(t *testing.T, key string) []ir.Record {
	t.Helper()
	recs, err := f.store.ReadRecords(context.Background(), key)
	require.NoError(t, err)
	return recs
}

func flush(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Flush(ctx))
}

func types(recs []ir.Record) []ir.RecordType {
	out := make([]ir.RecordType, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func setMillis(c *clock.FakeClock, ms int64) {
	c.Set(time.UnixMilli(ms))
}

func TestNew_BuiltinsEmitHeadSnapshotLocation(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Watchers = nil
	r := f.start(t, config.Default(), deps)

	assert.Equal(t, StatusRunning, r.Status())
	assert.Equal(t, testRelatedID, r.RelatedID())
	flush(t, r)

	recs, err := r.ReadDB(context.Background(), WithLimit(0))
	require.NoError(t, err)
	assert.Equal(t, []ir.RecordType{ir.RecordHead, ir.RecordSnapshot, ir.RecordLocation}, types(recs))

	var head ir.HeadData
	require.NoError(t, recs[0].DecodeData(&head))
	assert.Equal(t, testRelatedID, head.RelatedID)
	assert.Equal(t, "https://example.test/root", head.Href)
	assert.Equal(t, ir.RecorderVersion, head.Version)
	for _, rec := range recs {
		assert.Equal(t, testRelatedID, rec.RelatedID)
	}
	assert.Positive(t, f.ctx.ListenerCount(), "location, window and scroll subscribed")
}

func TestEmit_CommitOrderEqualsEmissionOrder(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())

	const n = 100
	for i := 1; i <= n; i++ {
		f.probe.emit(t, ir.RecordDOM, int64(i))
	}
	flush(t, r)

	recs := f.committed(t, config.DefaultStoreKey)
	require.Len(t, recs, n+1)
	assert.Equal(t, ir.RecordHead, recs[0].Type)
	for i := 1; i <= n; i++ {
		assert.Equal(t, int64(i), recs[i].Time, "record %d out of order", i)
		assert.Greater(t, recs[i].ID, recs[i-1].ID)
	}
}

func TestEmit_ConcurrentEmittersAllCommitted(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())

	f.probe.mu.Lock()
	base := f.probe.base
	f.probe.mu.Unlock()
	require.NotNil(t, base)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, base.EmitData(ir.RecordMouse, nil, watcher.At(0)))
			}
		}()
	}
	wg.Wait()
	flush(t, r)

	n, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 101, n)
}

func TestRecord_TwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Watchers = nil
	r := f.start(t, config.Default(), deps)
	flush(t, r)

	listeners := f.ctx.ListenerCount()
	captures := f.snap.FullCaptures()

	require.NoError(t, r.Record(context.Background(), nil))
	flush(t, r)

	assert.Equal(t, listeners, f.ctx.ListenerCount())
	assert.Equal(t, captures, f.snap.FullCaptures())
	n, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "no second HEAD")
}

func TestDestroy_IdempotentSingleTerminate(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())
	f.probe.emit(t, ir.RecordDOM, 40)
	flush(t, r)

	require.NoError(t, r.Destroy(context.Background()))
	require.NoError(t, r.Destroy(context.Background()))
	assert.Equal(t, StatusHalt, r.Status())

	recs := f.committed(t, config.DefaultStoreKey)
	terminates := 0
	for _, rec := range recs {
		if rec.Type == ir.RecordTerminate {
			terminates++
		}
	}
	assert.Equal(t, 1, terminates)

	last := recs[len(recs)-1]
	assert.Equal(t, ir.RecordTerminate, last.Type)
	assert.Equal(t, int64(41), last.Time)
	assert.False(t, last.HasData(), "TERMINATE carries null data")
	assert.Equal(t, testRelatedID, last.RelatedID)
	assert.Equal(t, int64(41), r.DestroyTime())
	assert.Zero(t, f.ctx.ListenerCount())
}

func TestPause_EmptyStoreSkipsTerminate(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.Write = false
	setMillis(f.clock, 500)
	r := f.start(t, opts, f.deps())

	lastTime, ok := r.Pause(context.Background())
	assert.False(t, ok)
	assert.Zero(t, lastTime)
	assert.Equal(t, StatusPause, r.Status())

	require.NoError(t, r.Destroy(context.Background()))
	assert.Equal(t, StatusHalt, r.Status())
	assert.Equal(t, int64(500), r.DestroyTime(), "destroy time falls back to now")
	assert.Empty(t, f.committed(t, config.DefaultStoreKey))
}

func TestPause_DropsLaterEmissions(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())
	f.probe.emit(t, ir.RecordDOM, 10)
	flush(t, r)

	lastTime, ok := r.Pause(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(11), lastTime)

	f.probe.emit(t, ir.RecordDOM, 20)
	flush(t, r)
	assert.Equal(t, []ir.RecordType{ir.RecordHead, ir.RecordDOM, ir.RecordTerminate}, types(f.committed(t, config.DefaultStoreKey)))

	_, ok = r.Pause(context.Background())
	assert.False(t, ok, "pause only applies from RUNNING")
}

func TestRecord_ResumeAfterPause(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.Keep = true
	r := f.start(t, opts, f.deps())
	flush(t, r)
	_, ok := r.Pause(context.Background())
	require.True(t, ok)

	require.NoError(t, r.Record(context.Background(), nil))
	assert.Equal(t, StatusRunning, r.Status())
	f.probe.emit(t, ir.RecordDOM, 5)
	flush(t, r)

	assert.Equal(t,
		[]ir.RecordType{ir.RecordHead, ir.RecordTerminate, ir.RecordHead, ir.RecordDOM},
		types(f.committed(t, config.DefaultStoreKey)))
}

func TestCheckpoint_CapturedAtHeadAndStaleMutation(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.WriteKeepTime = 50
	r := f.start(t, opts, f.deps())

	f.probe.emit(t, ir.RecordSnapshot, 0)
	setMillis(f.clock, 100)
	f.probe.emit(t, ir.RecordDOM, 100)
	flush(t, r)

	cps := r.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, ir.RecordHead, cps[0].Type)
	assert.Equal(t, int64(0), cps[0].Time)
	assert.Equal(t, ir.RecordDOM, cps[1].Type)
	assert.Equal(t, int64(100), cps[1].Time)

	recs := f.committed(t, config.DefaultStoreKey)
	require.Len(t, recs, 3)
	assert.Equal(t, recs[0].ID, cps[0].ID, "reconciled with the HEAD id")
	assert.Equal(t, recs[2].ID, cps[1].ID, "reconciled with the DOM id")
}

func TestCheckpoint_NeverExceedsTwo(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.WriteKeepTime = 10
	r := f.start(t, opts, f.deps())

	for i := int64(1); i <= 5; i++ {
		setMillis(f.clock, i*100)
		f.probe.emit(t, ir.RecordDOM, i*100)
		assert.LessOrEqual(t, len(r.Checkpoints()), checkpoint.MaxEntries)
	}
	cps := r.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, int64(400), cps[0].Time)
	assert.Equal(t, int64(500), cps[1].Time)
}

func TestReadDB_SplicesPrecedingCheckpoint(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.WriteKeepTime = 1000
	r := f.start(t, opts, f.deps())

	f.probe.emit(t, ir.RecordSnapshot, 0)
	setMillis(f.clock, 1500)
	f.probe.emit(t, ir.RecordDOM, 1500)
	setMillis(f.clock, 2000)
	f.probe.emit(t, ir.RecordDOM, 2000)
	flush(t, r)
	setMillis(f.clock, 2600)

	windowed, err := r.ReadDB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordDOM, ir.RecordDOM}, types(windowed))
	assert.Equal(t, int64(1500), windowed[0].Time, "checkpoint snapshot leads the window")
	assert.Zero(t, windowed[0].ID, "spliced records were never committed")

	full, err := r.ReadDB(context.Background(), WithLimit(0))
	require.NoError(t, err)
	assert.Equal(t, f.committed(t, config.DefaultStoreKey), full)

	cp := r.GetCheckpoint()
	require.NotNil(t, cp)
	assert.Equal(t, int64(1500), cp.Time)
	assert.Nil(t, r.GetCheckpoint(WithLimit(5000)))
}

func TestRetention_TickerTrimsAndStopsOnDestroy(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.WriteKeepTime = 100
	r := f.start(t, opts, f.deps())

	for _, at := range []int64{150, 200, 300} {
		setMillis(f.clock, at)
		f.probe.emit(t, ir.RecordDOM, at)
	}
	flush(t, r)
	require.Len(t, r.Checkpoints(), 2)
	bound, ok := r.c.cache.RetentionBound()
	require.True(t, ok)

	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool {
		n, err := r.Count(context.Background())
		return err == nil && n == 3
	}, 5*time.Second, 5*time.Millisecond)

	for _, rec := range f.committed(t, config.DefaultStoreKey) {
		assert.GreaterOrEqual(t, rec.ID, bound)
	}

	require.NoError(t, r.Destroy(context.Background()))
	assert.Zero(t, f.clock.Pending(), "retention ticker stopped")
}

func TestReadDB_TrimmedLogLedByCoveringCheckpoint(t *testing.T) {
	f := newFixture(t)
	opts := probeOptions()
	opts.WriteKeepTime = 100
	r := f.start(t, opts, f.deps())

	for _, at := range []int64{150, 200, 300} {
		setMillis(f.clock, at)
		f.probe.emit(t, ir.RecordDOM, at)
	}
	flush(t, r)
	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool {
		n, err := r.Count(context.Background())
		return err == nil && n == 3
	}, 5*time.Second, 5*time.Millisecond)

	// Nothing precedes a 1000 ms window, and HEAD is gone.
	windowed, err := r.ReadDB(context.Background(), WithLimit(1000))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(windowed), 4)
	assert.Equal(t, ir.RecordSnapshot, windowed[0].Type)
	assert.Equal(t, int64(150), windowed[0].Time)
	assert.Equal(t, []ir.RecordType{ir.RecordDOM, ir.RecordDOM, ir.RecordDOM}, types(windowed[len(windowed)-3:]))

	require.NoError(t, r.Destroy(context.Background()))
}

func TestWatcherFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	broken := watcher.Named{Name: "broken", Factory: func(watcher.Args) (watcher.Watcher, error) {
		return nil, errors.New("no such api")
	}}
	deps.Watchers = []watcher.Named{broken, f.probe.named()}
	r := f.start(t, probeOptions(), deps)

	assert.Equal(t, StatusRunning, r.Status())
	f.probe.emit(t, ir.RecordDOM, 1)
	flush(t, r)
	assert.Len(t, f.committed(t, config.DefaultStoreKey), 2)
}

func TestDisableWatchers(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Watchers = nil
	opts := config.Default()
	opts.DisableWatchers = []string{watcher.NameSnapshot, watcher.NameLocation}
	r := f.start(t, opts, deps)
	flush(t, r)

	assert.Equal(t, []ir.RecordType{ir.RecordHead}, types(f.committed(t, config.DefaultStoreKey)))
}

func TestOnData_OrderAndHalting(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())
	flush(t, r)

	var mu sync.Mutex
	var calls []string
	note := func(s string) {
		mu.Lock()
		calls = append(calls, s)
		mu.Unlock()
	}
	r.OnData(func(_ context.Context, rec *ir.Record, proceed func()) error {
		note("first:" + rec.Type.String())
		if rec.Type != ir.RecordMouse {
			proceed()
		}
		return nil
	})
	r.OnData(func(_ context.Context, rec *ir.Record, proceed func()) error {
		note("second:" + rec.Type.String())
		proceed()
		return nil
	})

	f.probe.emit(t, ir.RecordMouse, 1)
	f.probe.emit(t, ir.RecordDOM, 2)
	flush(t, r)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first:MOUSE", "first:DOM", "second:DOM"}, calls, "HEAD predates the stages")
	assert.Len(t, f.committed(t, config.DefaultStoreKey), 3, "halting a stage never blocks the write")
}

func TestPlugins_HooksAndWatchers(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var order []string
	var emitted []ir.RecordType
	pluginProbe := &probe{}

	plugin := PluginFunc(func(h *Hooks) {
		h.BeforeRun(func(r *Recorder) { order = append(order, "before:"+r.Status().String()) })
		h.Run(func(r *Recorder) { order = append(order, "run:"+r.Status().String()) })
		h.Emit(func(rec ir.Record) {
			mu.Lock()
			emitted = append(emitted, rec.Type)
			mu.Unlock()
		})
		h.Watcher(pluginProbe.named())
	})

	deps := f.deps()
	deps.Watchers = []watcher.Named{}
	deps.Plugins = []Plugin{plugin}
	r := f.start(t, probeOptions(), deps)

	pluginProbe.emit(t, ir.RecordFont, 3)
	flush(t, r)

	assert.Equal(t, []string{"before:PAUSE", "run:RUNNING"}, order)
	mu.Lock()
	assert.Equal(t, []ir.RecordType{ir.RecordHead, ir.RecordFont}, emitted)
	mu.Unlock()
}

func TestLifecycleErrors(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())
	flush(t, r)
	_, ok := r.Pause(context.Background())
	require.True(t, ok)

	other := probeOptions()
	other.StoreKey = "elsewhere"
	assert.True(t, IsInvalidState(r.Record(context.Background(), &other)))

	require.NoError(t, r.Destroy(context.Background()))
	assert.True(t, IsHalted(r.Record(context.Background(), nil)))
	assert.True(t, IsHalted(r.ClearDB()))
	assert.True(t, IsHalted(r.Use(PluginFunc(func(*Hooks) {}))))

	var le *LifecycleError
	require.ErrorAs(t, r.ClearDB(), &le)
	assert.Equal(t, ErrCodeHalted, le.Code)
	assert.Contains(t, le.Error(), "op=clear")
}

func TestClearDB(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())
	f.probe.emit(t, ir.RecordDOM, 1)
	flush(t, r)

	require.NoError(t, r.ClearDB())
	n, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeep_RestoresPersistedCheckpoints(t *testing.T) {
	f := newFixture(t)
	persister := &checkpoint.MemoryPersister{}
	opts := probeOptions()
	opts.Keep = true

	deps := f.deps()
	deps.Persister = persister
	first := f.start(t, opts, deps)
	flush(t, first)
	require.NoError(t, first.Destroy(context.Background()))

	second := f.start(t, opts, deps)
	flush(t, second)
	cps := second.Checkpoints()
	require.Len(t, cps, 1, "restored, and still fresh so no new capture")
	assert.Equal(t, ir.RecordHead, cps[0].Type)
	assert.NotZero(t, cps[0].ID)

	n, err := second.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "keep leaves the first session's HEAD and TERMINATE")
}

func TestNew_RequiresContextAndStore(t *testing.T) {
	_, err := New(context.Background(), config.Default(), Deps{})
	assert.Error(t, err)

	_, err = New(context.Background(), config.Default(), Deps{Context: testutil.NewFakeContext("x")})
	assert.Error(t, err)
}

func TestFrames_ChildSharesLineageAndDiesFirst(t *testing.T) {
	f := newFixture(t)
	childCtx := testutil.NewFakeContext("child")
	f.ctx.AddFrame(testutil.NewFakeFrame("child.html", childCtx).SetReady(true))
	r := f.start(t, probeOptions(), f.deps())

	require.Eventually(t, func() bool { return len(r.c.spawned()) == 1 }, 5*time.Second, time.Millisecond)
	child := r.c.spawned()[0]
	assert.True(t, child.Options().Keep, "frame sessions never clear")
	assert.Positive(t, childCtx.ListenerCount(), "baseline watchers installed")

	var childStatusAtTerminate Status = -1
	r.OnData(func(_ context.Context, rec *ir.Record, proceed func()) error {
		if rec.Type == ir.RecordTerminate {
			childStatusAtTerminate = child.Status()
		}
		proceed()
		return nil
	})

	flush(t, r)
	require.NoError(t, r.Destroy(context.Background()))

	assert.Equal(t, StatusHalt, childStatusAtTerminate, "child halted before the root terminated")
	assert.Zero(t, childCtx.ListenerCount())

	recs := f.committed(t, config.DefaultStoreKey)
	var snapshots int
	for _, rec := range recs {
		assert.Equal(t, testRelatedID, rec.RelatedID)
		if rec.Type == ir.RecordSnapshot {
			snapshots++
		}
	}
	assert.Equal(t, 1, snapshots, "the child's baseline snapshot")
	assert.Equal(t, ir.RecordTerminate, recs[len(recs)-1].Type)
}

func TestPause_TerminateFollowsChildRecords(t *testing.T) {
	f := newFixture(t)
	childCtx := testutil.NewFakeContext("child")
	f.ctx.AddFrame(testutil.NewFakeFrame("child.html", childCtx).SetReady(true))
	r := f.start(t, probeOptions(), f.deps())

	require.Eventually(t, func() bool { return len(r.c.spawned()) == 1 }, 5*time.Second, time.Millisecond)
	flush(t, r)

	before := len(f.committed(t, config.DefaultStoreKey))
	childCtx.Dispatch(watcher.Event{Name: "scroll", Time: 3000})
	require.Eventually(t, func() bool {
		return len(f.committed(t, config.DefaultStoreKey)) == before+1
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, r.Destroy(context.Background()))

	recs := f.committed(t, config.DefaultStoreKey)
	require.NotEmpty(t, recs)
	term := recs[len(recs)-1]
	require.Equal(t, ir.RecordTerminate, term.Type)
	assert.Equal(t, int64(3001), term.Time)
	for _, rec := range recs[:len(recs)-1] {
		assert.Less(t, rec.Time, term.Time, "%s committed after TERMINATE's stamp", rec.Type)
	}
}

func TestFrames_ChildStagesRunBeforeRoot(t *testing.T) {
	f := newFixture(t)
	childCtx := testutil.NewFakeContext("child")
	f.ctx.AddFrame(testutil.NewFakeFrame("child.html", childCtx).SetReady(true))
	r := f.start(t, probeOptions(), f.deps())

	require.Eventually(t, func() bool { return len(r.c.spawned()) == 1 }, 5*time.Second, time.Millisecond)
	child := r.c.spawned()[0]

	var mu sync.Mutex
	var seen []string
	stage := func(name string) func(context.Context, *ir.Record, func()) error {
		return func(_ context.Context, rec *ir.Record, proceed func()) error {
			if rec.Type == ir.RecordWindow {
				mu.Lock()
				seen = append(seen, name)
				mu.Unlock()
			}
			proceed()
			return nil
		}
	}
	r.OnData(stage("root"))
	child.pipe.Prepend(stage("child"))

	childCtx.Dispatch(watcher.Event{Name: "resize"})
	flush(t, r)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 5*time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"child", "root"}, seen)
	mu.Unlock()
}

func TestAttach_LateFrame(t *testing.T) {
	f := newFixture(t)
	r := f.start(t, probeOptions(), f.deps())

	frame := testutil.NewFakeFrame("late.html", testutil.NewFakeContext("late")).SetReady(true)
	require.NoError(t, r.Attach(context.Background(), frame))
	assert.Len(t, r.c.spawned(), 1)

	require.NoError(t, r.Destroy(context.Background()))
	assert.True(t, IsInvalidState(r.Attach(context.Background(), frame)))
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.Generate()
	b := UUIDv7Generator{}.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "PAUSE", StatusPause.String())
	assert.Equal(t, "RUNNING", StatusRunning.String())
	assert.Equal(t, "HALT", StatusHalt.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
