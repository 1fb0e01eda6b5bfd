// Package ingest records sessions captured elsewhere.
//
// A capture client streams envelopes of the form {"event": "record",
// "record": {...}} over a connection. A Session turns that stream into a
// RemoteContext: every envelope is dispatched to the context's listeners,
// the ingest watcher re-emits the enclosed record through an ordinary
// recorder, and an OfflineSnapshotter answers checkpoint captures from the
// most recent SNAPSHOT and CANVAS_SNAPSHOT records seen on the stream.
package ingest
