// Package harness runs scripted recording sessions and checks what they
// committed.
//
// A scenario drives one root session against a fake document, a fake clock
// and an in-memory store, then asserts on the committed log, the cached
// checkpoints and windowed reads.
//
// # Scenario Format
//
//	name: scroll_then_pause
//	description: "A scroll is recorded and pause terminates at last+1"
//	start_time: 1000
//	options:
//	  write_keep_time: 0
//	frames:
//	  - id: child
//	    ready: true
//	steps:
//	  - action: scroll
//	    top: 40
//	  - action: clock
//	    at: 1500
//	  - action: dispatch
//	    target: child
//	    event: resize
//	  - action: pause
//	assertions:
//	  - type: log_types
//	    types: [HEAD, SNAPSHOT, LOCATION, SCROLL, TERMINATE]
//	  - type: terminate_at
//	    time: 1001
//
// # Assertion Types
//
//   - log_types: the exact type sequence of the committed log
//   - log_order: first occurrences appear in the given order
//   - log_count: the committed log has exactly N records
//   - log_contains: a record of the type exists, optionally at a time and
//     with a payload subset
//   - absent: no such record exists
//   - checkpoint_count: the session caches exactly N checkpoints
//   - window_types: the type sequence a windowed read returns for a limit
//   - terminate_at: one trailing TERMINATE at the given time
//   - single_related_id: every record shares one correlation id
//
// # Deterministic Testing
//
// Every run uses a fixed correlation id, a fake clock that only moves on
// clock and advance steps, and a fresh in-memory SQLite database, so
// identical scenarios commit identical logs and golden files compare
// byte for byte.
package harness
