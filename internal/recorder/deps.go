package recorder

import (
	"log/slog"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/watcher"
)

// Deps are the collaborators a session is constructed with. Context and
// Store are required; everything else has a default.
type Deps struct {
	// Context is the document to record.
	Context watcher.Context

	// Store resolves the database the session's partition lives in. The
	// session never closes the Store.
	Store store.Opener

	// Snapshotter captures full snapshots for the snapshot watcher and for
	// checkpoints. Without one neither runs.
	Snapshotter watcher.Snapshotter

	// Watchers replaces the built-in root watcher set when non-nil.
	Watchers []watcher.Named

	// Persister overrides the checkpoint file named by the options. It is
	// used only when keep is set.
	Persister checkpoint.Persister

	Plugins    []Plugin
	Clock      clock.Clock
	Logger     *slog.Logger
	IDs        IDGenerator
	LogOptions []store.LogOption
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.IDs == nil {
		d.IDs = UUIDv7Generator{}
	}
	return d
}

// ReadOption adjusts ReadDB and GetCheckpoint.
type ReadOption func(*readSettings)

type readSettings struct {
	limit    int64
	hasLimit bool
}

// WithLimit sets the read window in ms instead of writeKeepTime. Zero
// returns the whole log.
func WithLimit(ms int64) ReadOption {
	return func(s *readSettings) {
		s.limit = ms
		s.hasLimit = true
	}
}
