package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/timecat/internal/ir"
)

// DeleteRange bounds a deletion by record id. Lower is inclusive. Upper is
// inclusive when Lower is also set and exclusive when it is alone, so
// retention can delete everything before a checkpoint's record.
type DeleteRange struct {
	Lower int64 // 0 means unset
	Upper int64 // 0 means unset
}

// Valid reports whether at least one bound is set.
func (r DeleteRange) Valid() bool {
	return r.Lower > 0 || r.Upper > 0
}

func (r DeleteRange) where() (string, []any) {
	switch {
	case r.Lower > 0 && r.Upper > 0:
		return "id >= ? AND id <= ?", []any{r.Lower, r.Upper}
	case r.Lower > 0:
		return "id >= ?", []any{r.Lower}
	default:
		return "id < ?", []any{r.Upper}
	}
}

// AppendRecord inserts rec into the key's partition and returns the
// assigned id. Any id already set on rec is ignored.
func (s *Store) AppendRecord(ctx context.Context, key string, rec ir.Record) (int64, error) {
	data, err := marshalData(rec.Data)
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO records (store_key, type, related_id, time, data)
			VALUES (?, ?, ?, ?, ?)
		`,
			key,
			int(rec.Type),
			rec.RelatedID,
			rec.Time,
			data,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	return id, nil
}

// DeleteRecords removes the partition's records inside r and returns how
// many were removed.
func (s *Store) DeleteRecords(ctx context.Context, key string, r DeleteRange) (int64, error) {
	if !r.Valid() {
		return 0, ErrInvalidRange
	}
	cond, args := r.where()

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE store_key = ? AND "+cond, append([]any{key}, args...)...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return n, nil
}

// ClearRecords removes every record of the partition.
func (s *Store) ClearRecords(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE store_key = ?`, key)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	return n, nil
}
