package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/timecat/internal/clock"
	"github.com/roach88/timecat/internal/ir"
)

// RetryDelay is how long the drain waits before retrying while the store
// has not opened yet.
const RetryDelay = 10 * time.Millisecond

// Opener resolves the store a Log writes to. It may block; the log queues
// tasks until it returns.
type Opener func(ctx context.Context) (*Store, error)

// StaticOpener returns an Opener for an already open store.
func StaticOpener(s *Store) Opener {
	return func(context.Context) (*Store, error) { return s, nil }
}

// Log is the queue-serialized handle to one store partition.
//
// Mutations (Add, Delete, Clear) are fire-and-forget and applied strictly
// FIFO by a single drain goroutine. Reads (Count, Last, ReadAll, Flush) are
// queued as barriers behind every mutation enqueued before them.
//
// The Log does not own the Store: Close stops the drain but leaves the
// database open for other partitions.
//
// Thread-safety: all methods are safe for concurrent use.
type Log struct {
	key         string
	logger      *slog.Logger
	clock       clock.Clock
	retryDelay  time.Duration
	openTimeout time.Duration

	queue  *taskQueue
	ctx    context.Context
	cancel context.CancelFunc
	opened chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	store   *Store
	failErr error
	started time.Time
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) { l.logger = logger }
}

// WithClock sets the clock used for retries and read windows.
func WithClock(c clock.Clock) LogOption {
	return func(l *Log) { l.clock = c }
}

// WithRetryDelay overrides RetryDelay.
func WithRetryDelay(d time.Duration) LogOption {
	return func(l *Log) { l.retryDelay = d }
}

// WithOpenTimeout bounds how long the drain waits for the opener. Past it
// the log fails: queued tasks are discarded and reads return
// ErrStoreUnavailable. Zero (the default) waits indefinitely.
func WithOpenTimeout(d time.Duration) LogOption {
	return func(l *Log) { l.openTimeout = d }
}

// NewLog starts a log for key. The key is NFC-normalized and must be
// non-empty. open runs in its own goroutine.
func NewLog(open Opener, key string, opts ...LogOption) (*Log, error) {
	key = norm.NFC.String(key)
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	if open == nil {
		return nil, fmt.Errorf("new log %q: nil opener", key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Log{
		key:        key,
		logger:     slog.Default(),
		clock:      clock.Real(),
		retryDelay: RetryDelay,
		queue:      newTaskQueue(),
		ctx:        ctx,
		cancel:     cancel,
		opened:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.started = l.clock.Now()
	l.logger = l.logger.With("store_key", key)

	go l.open(open)
	go l.run()
	return l, nil
}

// Key returns the normalized store key.
func (l *Log) Key() string { return l.key }

// Add enqueues rec. onCommit, if set, receives the record with its
// store-assigned id after the insert commits.
func (l *Log) Add(rec ir.Record, onCommit func(ir.Record)) {
	l.enqueue(task{kind: taskAdd, record: rec.Clone(), onCommit: onCommit})
}

// Delete enqueues removal of the records inside r. A range without bounds
// is logged and rejected with ErrInvalidRange; nothing is enqueued.
func (l *Log) Delete(r DeleteRange) error {
	if !r.Valid() {
		l.logger.Error("delete skipped", "error", ErrInvalidRange)
		return ErrInvalidRange
	}
	l.enqueue(task{kind: taskDelete, rng: r})
	return nil
}

// Clear enqueues removal of every record in the partition.
func (l *Log) Clear() {
	l.enqueue(task{kind: taskClear})
}

// Count returns the number of committed records.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	err := l.barrier(ctx, func(s *Store) error {
		var err error
		n, err = s.CountRecords(l.ctx, l.key)
		return err
	})
	return n, err
}

// Last returns the most recently committed record, or ErrEmptyStore.
func (l *Log) Last(ctx context.Context) (ir.Record, error) {
	var rec ir.Record
	err := l.barrier(ctx, func(s *Store) error {
		var err error
		rec, err = s.LastRecord(l.ctx, l.key)
		return err
	})
	return rec, err
}

// ReadAll returns the partition's records bounded to the last limit ms,
// led by a checkpoint from cps (see ApplyWindow). A limit of 0 returns
// everything.
func (l *Log) ReadAll(ctx context.Context, limit int64, cps CheckpointReader) ([]ir.Record, error) {
	var records []ir.Record
	err := l.barrier(ctx, func(s *Store) error {
		all, err := s.ReadRecords(l.ctx, l.key)
		if err != nil {
			return err
		}
		now := clock.Millis(l.clock)
		var entries []ir.Checkpoint
		if limit > 0 && cps != nil {
			entries = cps.Entries()
		}
		records = ApplyWindow(all, entries, now, limit)
		return nil
	})
	return records, err
}

// Flush waits until every task enqueued before it has applied.
func (l *Log) Flush(ctx context.Context) error {
	return l.barrier(ctx, func(*Store) error { return nil })
}

// Pending returns the number of queued tasks.
func (l *Log) Pending() int {
	return l.queue.Len()
}

// Close stops accepting tasks, waits for queued tasks to drain, then stops
// the drain goroutine. While the store is still opening, Close waits for
// the opener or the open timeout. It is safe to call more than once.
func (l *Log) Close() {
	l.queue.Close()
	<-l.done
	l.cancel()
}

func (l *Log) enqueue(t task) {
	if !l.queue.Enqueue(t) {
		l.logger.Debug("task dropped on closed log", "task", t.kind.String())
	}
}

func (l *Log) barrier(ctx context.Context, fn func(s *Store) error) error {
	done := make(chan error, 1)
	if !l.queue.Enqueue(task{kind: taskBarrier, read: fn, done: done}) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Log) open(open Opener) {
	s, err := open(l.ctx)

	l.mu.Lock()
	if l.failErr == nil {
		if err != nil {
			l.failErr = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		} else if s == nil {
			l.failErr = fmt.Errorf("%w: opener returned no store", ErrStoreUnavailable)
		} else {
			l.store = s
		}
	}
	failErr := l.failErr
	l.mu.Unlock()

	if failErr != nil {
		l.logger.Error("store open failed", "error", failErr)
	}
	close(l.opened)
	l.queue.Notify()
}

// state returns the open store, or the failure, or neither while opening.
func (l *Log) state() (*Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store, l.failErr
}

func (l *Log) fail(err error) {
	l.mu.Lock()
	if l.failErr == nil {
		l.failErr = err
	}
	l.mu.Unlock()
	l.logger.Error("store unavailable", "error", err)
}

// run is the drain loop. It is the only goroutine that touches the store
// on behalf of this log.
func (l *Log) run() {
	defer close(l.done)

	for {
		s, failErr := l.state()

		switch {
		case failErr != nil:
			l.discard(failErr)
			if l.queue.Drained() {
				return
			}
			<-l.queue.Wait()

		case s == nil:
			if l.queue.Drained() {
				return
			}
			if l.openTimeout > 0 && l.clock.Now().Sub(l.started) >= l.openTimeout {
				l.fail(fmt.Errorf("%w: open timed out after %s", ErrStoreUnavailable, l.openTimeout))
				continue
			}
			select {
			case <-l.opened:
			case <-l.clock.After(l.retryDelay):
			}

		default:
			t, ok := l.queue.TryDequeue()
			if !ok {
				if l.queue.Drained() {
					return
				}
				<-l.queue.Wait()
				continue
			}
			l.apply(s, t)
		}
	}
}

func (l *Log) apply(s *Store, t task) {
	switch t.kind {
	case taskAdd:
		id, err := s.AppendRecord(l.ctx, l.key, t.record)
		if err != nil {
			l.logger.Error("add failed", "type", t.record.Type.String(), "time", t.record.Time, "error", err)
			return
		}
		if t.onCommit != nil {
			rec := t.record
			rec.ID = id
			t.onCommit(rec)
		}

	case taskDelete:
		n, err := s.DeleteRecords(l.ctx, l.key, t.rng)
		if err != nil {
			l.logger.Error("delete failed", "lower", t.rng.Lower, "upper", t.rng.Upper, "error", err)
			return
		}
		l.logger.Debug("records deleted", "lower", t.rng.Lower, "upper", t.rng.Upper, "count", n)

	case taskClear:
		if _, err := s.ClearRecords(l.ctx, l.key); err != nil {
			l.logger.Error("clear failed", "error", err)
		}

	case taskBarrier:
		t.done <- t.read(s)
	}
}

// discard empties the queue after a failure. Barriers receive err.
func (l *Log) discard(err error) {
	dropped := 0
	for {
		t, ok := l.queue.TryDequeue()
		if !ok {
			break
		}
		if t.kind == taskBarrier {
			t.done <- err
			continue
		}
		dropped++
	}
	if dropped > 0 {
		l.logger.Warn("tasks discarded", "count", dropped, "error", err)
	}
}
