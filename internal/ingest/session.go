package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/recorder"
	"github.com/roach88/timecat/internal/watcher"
)

// EnvelopeReader is the read half of a connection, e.g. a websocket.
type EnvelopeReader interface {
	ReadJSON(v any) error
}

// Session records one ingest connection.
type Session struct {
	remote  *RemoteContext
	snap    *OfflineSnapshotter
	rec     *recorder.Recorder
	logger  *slog.Logger
	limiter *rate.Limiter
}

// SessionOption configures Start.
type SessionOption func(*sessionSettings)

type sessionSettings struct {
	desc    watcher.Description
	limiter *rate.Limiter
}

// WithDescription sets what the remote context reports until the client
// sends its HEAD record.
func WithDescription(d watcher.Description) SessionOption {
	return func(s *sessionSettings) { s.desc = d }
}

// WithRateLimit caps how fast Consume reads envelopes.
func WithRateLimit(limit rate.Limit, burst int) SessionOption {
	return func(s *sessionSettings) { s.limiter = rate.NewLimiter(limit, burst) }
}

// Start opens a recorder whose only watcher is the ingest watcher. The
// Context, Snapshotter and Watchers of deps are replaced.
func Start(ctx context.Context, id string, opts config.Options, deps recorder.Deps, sopts ...SessionOption) (*Session, error) {
	var settings sessionSettings
	for _, opt := range sopts {
		opt(&settings)
	}

	s := &Session{
		remote:  NewRemoteContext(id, settings.desc),
		snap:    NewOfflineSnapshotter(),
		limiter: settings.limiter,
	}
	deps.Context = s.remote
	deps.Snapshotter = s.snap
	deps.Watchers = []watcher.Named{Named()}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s.logger = deps.Logger.With("session", id)

	rec, err := recorder.New(ctx, opts, deps)
	if err != nil {
		return nil, fmt.Errorf("start ingest session %s: %w", id, err)
	}
	s.rec = rec
	return s, nil
}

// Recorder returns the session's recorder.
func (s *Session) Recorder() *recorder.Recorder { return s.rec }

// Context returns the remote context the recorder observes.
func (s *Session) Context() *RemoteContext { return s.remote }

// Deliver feeds one envelope to the session. Structural records reach the
// snapshotter before the recorder sees them, so a checkpoint triggered by
// a SNAPSHOT captures that snapshot.
func (s *Session) Deliver(env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	s.snap.Observe(*env.Record)
	return s.remote.Deliver(env)
}

// Consume delivers envelopes from r until reading fails or ctx is done,
// and returns that error. Envelopes that cannot be delivered are logged
// and skipped.
func (s *Session) Consume(ctx context.Context, r EnvelopeReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var env Envelope
		if err := r.ReadJSON(&env); err != nil {
			return err
		}
		if err := s.Deliver(env); err != nil {
			s.logger.Warn("envelope rejected", "event", env.Event, "error", err)
		}
	}
}

// Close destroys the recorder. TERMINATE is written one ms after the last
// record received.
func (s *Session) Close(ctx context.Context) error {
	return s.rec.Destroy(ctx)
}
