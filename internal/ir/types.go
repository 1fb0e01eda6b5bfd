package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RecordType tags what a Record describes. Values are part of the wire
// format and must never be renumbered.
type RecordType int

const (
	RecordHead RecordType = iota
	RecordSnapshot
	RecordWindow
	RecordScroll
	RecordMouse
	RecordDOM
	RecordFormEl
	RecordLocation
	RecordAudio
	RecordCanvasSnapshot
	RecordCanvas
	RecordTerminate
	RecordFont
	RecordPatch
	RecordVideo
)

var recordTypeNames = [...]string{
	RecordHead:           "HEAD",
	RecordSnapshot:       "SNAPSHOT",
	RecordWindow:         "WINDOW",
	RecordScroll:         "SCROLL",
	RecordMouse:          "MOUSE",
	RecordDOM:            "DOM",
	RecordFormEl:         "FORM_EL",
	RecordLocation:       "LOCATION",
	RecordAudio:          "AUDIO",
	RecordCanvasSnapshot: "CANVAS_SNAPSHOT",
	RecordCanvas:         "CANVAS",
	RecordTerminate:      "TERMINATE",
	RecordFont:           "FONT",
	RecordPatch:          "PATCH",
	RecordVideo:          "VIDEO",
}

// String returns the upper-case wire name, e.g. "SNAPSHOT".
func (t RecordType) String() string {
	if t >= 0 && int(t) < len(recordTypeNames) {
		return recordTypeNames[t]
	}
	return fmt.Sprintf("RecordType(%d)", int(t))
}

// ParseRecordType resolves a wire name (case-insensitive). MUTATION is
// accepted as an alias for DOM.
func ParseRecordType(name string) (RecordType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "MUTATION" {
		return RecordDOM, nil
	}
	for i, n := range recordTypeNames {
		if n == upper {
			return RecordType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown record type %q", name)
}

// Record is one timestamped captured event.
type Record struct {
	Type      RecordType      `json:"type" cbor:"type"`
	Data      json.RawMessage `json:"data" cbor:"data"`
	RelatedID string          `json:"relatedId" cbor:"related_id"`
	Time      int64           `json:"time" cbor:"time"`                   // epoch milliseconds
	ID        int64           `json:"id,omitempty" cbor:"id,omitempty"` // store-assigned on commit
}

// NewRecord builds a record, encoding data as its JSON payload. A nil data
// value produces a null payload.
func NewRecord(t RecordType, data any, relatedID string, time int64) (Record, error) {
	rec := Record{Type: t, RelatedID: relatedID, Time: time}
	if data == nil {
		return rec, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		rec.Data = raw
		return rec, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	rec.Data = payload
	return rec, nil
}

// HasData reports whether the payload is present and not JSON null.
func (r Record) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// DecodeData unmarshals the payload into v.
func (r Record) DecodeData(v any) error {
	if !r.HasData() {
		return fmt.Errorf("%s record has no data", r.Type)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.Type, err)
	}
	return nil
}

// Clone returns a deep copy; the payload bytes are not shared.
func (r Record) Clone() Record {
	out := r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	return out
}

// Checkpoint is a periodically captured full-state snapshot. It is tagged
// with the record that triggered it; ID stays zero until that record commits.
type Checkpoint struct {
	Type      RecordType `json:"type" cbor:"type"`
	Time      int64      `json:"time" cbor:"time"`
	ID        int64      `json:"id,omitempty" cbor:"id,omitempty"`
	RelatedID string     `json:"relatedId" cbor:"related_id"`
	Snapshot  Record     `json:"snapshot" cbor:"snapshot"`
	Surfaces  []Record   `json:"surfaces,omitempty" cbor:"surfaces,omitempty"`
}

// Records returns the records a reader splices in front of a windowed log:
// the structural snapshot first, then the surface captures.
func (c Checkpoint) Records() []Record {
	out := make([]Record, 0, 1+len(c.Surfaces))
	out = append(out, c.Snapshot)
	out = append(out, c.Surfaces...)
	return out
}

// Reconciled reports whether the triggering record's store id is known.
func (c Checkpoint) Reconciled() bool {
	return c.ID != 0
}
