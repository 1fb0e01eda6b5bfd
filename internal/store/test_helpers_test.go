package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/timecat/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestLog creates a log over a fresh store.
func createTestLog(t *testing.T, key string, opts ...LogOption) (*Log, *Store) {
	t.Helper()
	s := createTestStore(t)
	l, err := NewLog(StaticOpener(s), key, opts...)
	if err != nil {
		t.Fatalf("NewLog() failed: %v", err)
	}
	t.Cleanup(l.Close)
	return l, s
}

// createTestRecord creates a record with a small JSON payload.
func createTestRecord(typ ir.RecordType, time int64, payload string) ir.Record {
	rec := ir.Record{Type: typ, RelatedID: "rel-1", Time: time}
	if payload != "" {
		rec.Data = json.RawMessage(payload)
	}
	return rec
}
