package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("session-1")
	assert.Equal(t, "session-1", gen.Generate())
	assert.Equal(t, "session-1", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	assert.Equal(t, "test-session", NewFixedIDGenerator("").Generate())
}

func TestFixedIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedIDGenerator("thread-safe")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe", gen.Generate())
			}
		}()
	}
	wg.Wait()
}

func TestFakeContext_AddRemoveDispatch(t *testing.T) {
	ctx := NewFakeContext("doc")
	var got []string
	l := watcher.NewListener(func(ev watcher.Event) { got = append(got, ev.Name) })

	ctx.AddEventListener("scroll", l, watcher.ListenerOptions{})
	ctx.Dispatch(watcher.Event{Name: "scroll"})
	ctx.Dispatch(watcher.Event{Name: "resize"})
	assert.Equal(t, []string{"scroll"}, got)
	assert.Equal(t, 1, ctx.ListenerCount())

	ctx.RemoveEventListener("scroll", l, watcher.ListenerOptions{})
	ctx.Dispatch(watcher.Event{Name: "scroll"})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, ctx.ListenerCount())
}

func TestFakeFrame_OnLoad(t *testing.T) {
	frame := NewFakeFrame("/child.html", NewFakeContext("child"))
	loaded := false
	require.True(t, frame.OnLoad(func() { loaded = true }))
	assert.False(t, loaded)

	frame.Load()
	assert.True(t, loaded)
	assert.True(t, frame.Ready())
}

func TestFakeFrame_CrossOrigin(t *testing.T) {
	frame := NewCrossOriginFrame()
	_, err := frame.Source()
	assert.ErrorIs(t, err, ErrCrossOrigin)
	_, err = frame.Context()
	assert.ErrorIs(t, err, ErrCrossOrigin)
}

func TestFakeSnapshotter_SkipsBlankSurfaces(t *testing.T) {
	snap := NewFakeSnapshotter().WithSurfaces(
		ir.SurfaceData{ID: 1, Src: "data:image/png;base64,AAA"},
		ir.SurfaceData{ID: 2},
	)
	got, err := snap.CaptureSurfaces(NewFakeContext("doc"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}
