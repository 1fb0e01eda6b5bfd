package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/timecat/internal/ingest"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/recorder"
	"github.com/roach88/timecat/internal/store"
	"github.com/roach88/timecat/internal/watcher"
)

// checkpoints adapts a live recorder to store.CheckpointReader.
type checkpoints struct {
	rec *recorder.Recorder
}

func (c checkpoints) Entries() []ir.Checkpoint {
	return c.rec.Checkpoints()
}

// queryInt64 parses an optional non-negative query parameter.
func queryInt64(c *gin.Context, name string, def int64) (int64, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func (s *Server) partition(c *gin.Context) (*store.Log, bool) {
	l, err := s.logFor(c.Param("key"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrEmptyKey) {
			status = http.StatusBadRequest
		} else if errors.Is(err, store.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return l, true
}

// readRecords handles GET /v1/stores/:key/records
func (s *Server) readRecords(c *gin.Context) {
	limit, ok := queryInt64(c, "limit", s.opts.WriteKeepTime)
	if !ok {
		return
	}
	l, ok := s.partition(c)
	if !ok {
		return
	}

	var cps store.CheckpointReader
	if r := s.recorderFor(l.Key()); r != nil {
		cps = checkpoints{rec: r}
	}
	recs, err := l.ReadAll(c.Request.Context(), limit, cps)
	if err != nil {
		s.logger.Error("read failed", "store_key", l.Key(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read records"})
		return
	}
	if recs == nil {
		recs = []ir.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// countRecords handles GET /v1/stores/:key/count
func (s *Server) countRecords(c *gin.Context) {
	l, ok := s.partition(c)
	if !ok {
		return
	}
	n, err := l.Count(c.Request.Context())
	if err != nil {
		s.logger.Error("count failed", "store_key", l.Key(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// lastRecord handles GET /v1/stores/:key/last
func (s *Server) lastRecord(c *gin.Context) {
	l, ok := s.partition(c)
	if !ok {
		return
	}
	rec, err := l.Last(c.Request.Context())
	if errors.Is(err, store.ErrEmptyStore) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store is empty"})
		return
	}
	if err != nil {
		s.logger.Error("last failed", "store_key", l.Key(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read last record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// getCheckpoint handles GET /v1/stores/:key/checkpoint
func (s *Server) getCheckpoint(c *gin.Context) {
	limit, ok := queryInt64(c, "limit", s.opts.WriteKeepTime)
	if !ok {
		return
	}
	r := s.recorderFor(c.Param("key"))
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live session"})
		return
	}
	cp := r.GetCheckpoint(recorder.WithLimit(limit))
	if cp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No checkpoint"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp})
}

// deleteRecords handles DELETE /v1/stores/:key/records
func (s *Server) deleteRecords(c *gin.Context) {
	lower, ok := queryInt64(c, "lower", 0)
	if !ok {
		return
	}
	upper, ok := queryInt64(c, "upper", 0)
	if !ok {
		return
	}
	rng := store.DeleteRange{Lower: lower, Upper: upper}
	if !rng.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": store.ErrInvalidRange.Error()})
		return
	}
	l, ok := s.partition(c)
	if !ok {
		return
	}
	if err := l.Delete(rng); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := l.Flush(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete records"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ingest handles GET /v1/ingest/:key
func (s *Server) ingest(c *gin.Context) {
	key := c.Param("key")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ingest upgrade failed", "store_key", key, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With("session", id, "store_key", key)
	opts := s.opts
	opts.StoreKey = key

	plugin := recorder.PluginFunc(func(h *recorder.Hooks) {
		h.BeforeRun(func(r *recorder.Recorder) { r.OnData(s.hub.Stage(key)) })
	})
	ctx := context.WithoutCancel(c.Request.Context())
	sess, err := ingest.Start(ctx, id, opts, recorder.Deps{
		Store:   store.StaticOpener(s.store),
		Plugins: []recorder.Plugin{plugin},
		Clock:   s.clock,
		Logger:  logger,
		IDs:     s.ids,
	}, ingest.WithDescription(watcher.Description{UserAgent: c.Request.UserAgent()}))
	if err != nil {
		logger.Error("ingest session not started", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session not started"))
		return
	}
	if !s.addSession(id, sess, conn) {
		sess.Close(ctx)
		return
	}
	logger.Info("ingest connected", "related_id", sess.Recorder().RelatedID())

	err = sess.Consume(c.Request.Context(), conn)
	if err != nil && !errors.Is(err, io.EOF) &&
		websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logger.Warn("ingest connection failed", "error", err)
	}

	s.removeSession(id)
	if err := sess.Close(ctx); err != nil {
		logger.Warn("ingest session not closed", "error", err)
	}
	logger.Info("ingest disconnected")
}

// live handles GET /v1/live
func (s *Server) live(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("live upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.hub.Serve(conn)
}
