// Package recorder implements the session controller: the lifecycle state
// machine that owns a session's watchers, its emit queue, its checkpoint
// cache and its handle on the durable log.
//
// A session starts in PAUSE and is moved to RUNNING by New. Pause returns
// it to PAUSE; Destroy moves it to HALT, which is terminal.
//
// Every record a watcher emits follows the same path:
//
//  1. Checkpoint decision (capture when the cache is empty or stale).
//  2. FIFO emit queue.
//  3. A single drain goroutine writes it to the log and runs the pipeline.
//  4. Plugin emit hooks.
//
// Nested frames are recorded by child controllers that share the root's
// correlation id, store partition and pipeline. The root tears them down
// before it halts.
package recorder
