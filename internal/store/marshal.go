package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/timecat/internal/ir"
)

// marshalData converts a record payload to canonical JSON TEXT. A missing
// or null payload is stored as SQL NULL.
func marshalData(data json.RawMessage) (sql.NullString, error) {
	if len(data) == 0 || string(data) == "null" {
		return sql.NullString{}, nil
	}
	canonical, err := ir.MarshalCanonical(data)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal data: %w", err)
	}
	return sql.NullString{String: string(canonical), Valid: true}, nil
}

// unmarshalData returns the stored payload; SQL NULL reads back as JSON null.
func unmarshalData(data sql.NullString) json.RawMessage {
	if !data.Valid {
		return json.RawMessage("null")
	}
	return json.RawMessage(data.String)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ir.Record, error) {
	var (
		rec  ir.Record
		typ  int
		data sql.NullString
	)
	if err := row.Scan(&rec.ID, &typ, &rec.RelatedID, &rec.Time, &data); err != nil {
		return ir.Record{}, err
	}
	rec.Type = ir.RecordType(typ)
	rec.Data = unmarshalData(data)
	return rec, nil
}
