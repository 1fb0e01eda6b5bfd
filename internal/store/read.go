package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timecat/internal/ir"
)

// ReadRecords returns every record of the partition ordered by id.
//
// Returns an empty slice (not nil) if the partition is empty.
func (s *Store) ReadRecords(ctx context.Context, key string) ([]ir.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, related_id, time, data
		FROM records
		WHERE store_key = ?
		ORDER BY id ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// LastRecord returns the partition's most recent record by id, or
// ErrEmptyStore.
func (s *Store) LastRecord(ctx context.Context, key string) (ir.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, related_id, time, data
		FROM records
		WHERE store_key = ?
		ORDER BY id DESC
		LIMIT 1
	`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, ErrEmptyStore
	}
	if err != nil {
		return ir.Record{}, fmt.Errorf("last record: %w", err)
	}
	return rec, nil
}

// CountRecords returns the number of records in the partition.
func (s *Store) CountRecords(ctx context.Context, key string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE store_key = ?`, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Keys returns every store key that has at least one record, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT store_key FROM records ORDER BY store_key COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}
