// Package store provides SQLite-backed durable storage for recording logs.
//
// The store is an append-only record log partitioned by store key:
//   - Records: one row per committed record, id assigned on insert
//   - Partitions: rows sharing a store_key form one session log
//
// # Critical Patterns
//
// Monotonic Identity
//   - id is INTEGER PRIMARY KEY AUTOINCREMENT, never reused after deletion
//   - Last() and ReadAll() order by id, so commit order is read order
//
// Queue-Serialized Mutation
//   - Log serializes ADD, DELETE and CLEAR tasks per partition, strictly FIFO
//   - Reads are barrier tasks in the same queue and see every earlier mutation
//   - Each task runs in its own transaction
//
// Self-Sufficient Windows
//   - ReadAll with a limit never returns a bare tail; when records older
//     than the window are cut, the preceding checkpoint is spliced in front
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Payloads are stored as RFC 8785 canonical JSON (see ir.MarshalCanonical)
// so identical logs are byte-identical on disk.
package store
