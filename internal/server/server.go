// Package server exposes recorded partitions and live ingest over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ingest"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/recorder"
	"github.com/roach88/timecat/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server routes the HTTP API. One Server owns a read log per partition it
// has served and every ingest session it accepted.
//
// Thread-safety: safe for concurrent use.
type Server struct {
	store    *store.Store
	opts     config.Options
	logger   *slog.Logger
	clock    clock.Clock
	ids      recorder.IDGenerator
	hub      *Hub
	upgrader websocket.Upgrader
	engine   *gin.Engine

	mu       sync.Mutex
	logs     map[string]*store.Log
	sessions map[string]*ingestConn // by connection id
	closed   bool
}

type ingestConn struct {
	sess *ingest.Session
	conn *websocket.Conn
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithIDs sets the correlation id generator of ingest sessions.
func WithIDs(ids recorder.IDGenerator) Option {
	return func(s *Server) { s.ids = ids }
}

// New returns a server over st. opts are the recorder options every
// ingest session starts from; the store key comes from the request path.
func New(st *store.Store, opts config.Options, options ...Option) *Server {
	s := &Server{
		store:    st,
		opts:     opts.Normalize(),
		logger:   slog.Default(),
		clock:    clock.Real(),
		ids:      recorder.UUIDv7Generator{},
		logs:     make(map[string]*store.Log),
		sessions: make(map[string]*ingestConn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range options {
		opt(s)
	}
	s.hub = NewHub(s.logger)
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ir.RecorderVersion})
	})

	v1 := r.Group("/v1")
	{
		stores := v1.Group("/stores/:key")
		stores.GET("/records", s.readRecords)
		stores.GET("/count", s.countRecords)
		stores.GET("/last", s.lastRecord)
		stores.GET("/checkpoint", s.getCheckpoint)
		stores.DELETE("/records", s.deleteRecords)

		v1.GET("/ingest/:key", s.ingest)
		v1.GET("/live", s.live)
	}
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the live broadcast hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves on addr until ctx is done, then shuts down and closes.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Close(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close destroys every ingest session and closes the read logs. The store
// stays open.
func (s *Server) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := s.sessions
	logs := s.logs
	s.sessions = map[string]*ingestConn{}
	s.logs = map[string]*store.Log{}
	s.mu.Unlock()

	for id, ic := range sessions {
		ic.conn.Close()
		if err := ic.sess.Close(ctx); err != nil {
			s.logger.Warn("ingest session not closed", "session", id, "error", err)
		}
	}
	for _, l := range logs {
		l.Close()
	}
	s.hub.Close()
}

// logFor returns the read log of key, opening it on first use.
func (s *Server) logFor(key string) (*store.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	if l, ok := s.logs[key]; ok {
		return l, nil
	}
	l, err := store.NewLog(store.StaticOpener(s.store), key,
		store.WithLogger(s.logger),
		store.WithClock(s.clock),
	)
	if err != nil {
		return nil, err
	}
	s.logs[key] = l
	return l, nil
}

// recorderFor returns the recorder of the newest live session writing key.
func (s *Server) recorderFor(key string) *recorder.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *recorder.Recorder
	for _, ic := range s.sessions {
		r := ic.sess.Recorder()
		if r.Options().StoreKey != key || r.Status() != recorder.StatusRunning {
			continue
		}
		if newest == nil || r.StartTime() > newest.StartTime() {
			newest = r
		}
	}
	return newest
}

func (s *Server) addSession(id string, sess *ingest.Session, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[id] = &ingestConn{sess: sess, conn: conn}
	return true
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sessions returns the number of open ingest sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
