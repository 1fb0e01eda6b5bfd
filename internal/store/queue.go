package store

import (
	"sync"

	"github.com/roach88/timecat/internal/ir"
)

// taskKind distinguishes queued store operations.
type taskKind int

const (
	taskAdd taskKind = iota + 1
	taskDelete
	taskClear
	// taskBarrier runs a read after every earlier mutation has applied.
	taskBarrier
)

func (k taskKind) String() string {
	switch k {
	case taskAdd:
		return "ADD"
	case taskDelete:
		return "DELETE"
	case taskClear:
		return "CLEAR"
	case taskBarrier:
		return "BARRIER"
	default:
		return "UNKNOWN"
	}
}

// task is one queued operation against a partition.
type task struct {
	kind     taskKind
	record   ir.Record
	onCommit func(ir.Record)
	rng      DeleteRange
	read     func(s *Store) error
	done     chan error // barrier only, buffered size 1
}

// taskQueue is a thread-safe FIFO queue of tasks.
//
// The queue is unbounded so emitters never block on a slow store.
//
// It uses a channel for signaling so the drain goroutine can wait without
// polling.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds t to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.notifyLocked()
	return true
}

// TryDequeue removes and returns the front task without blocking.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}
	t := q.tasks[0]
	// Nil out the slot so the record payload can be collected.
	q.tasks[0] = task{}
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that signals when tasks may be available. After
// Close it is closed, so receives never block.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Notify wakes the drain goroutine without enqueuing.
func (q *taskQueue) Notify() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifyLocked()
}

func (q *taskQueue) notifyLocked() {
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drained reports whether the queue is closed and empty.
func (q *taskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Close stops accepting tasks. Queued tasks stay and are still drained.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
