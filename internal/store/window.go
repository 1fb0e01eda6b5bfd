package store

import "github.com/roach88/timecat/internal/ir"

// CheckpointReader supplies the checkpoints a read window is led by.
// checkpoint.Cache implements it.
type CheckpointReader interface {
	// Entries returns the cached checkpoints, oldest first.
	Entries() []ir.Checkpoint
}

// ApplyWindow bounds records to the last limit ms before now. cps are the
// session's checkpoints, oldest first. A limit of 0 returns records
// unchanged.
//
// The window is led by the newest checkpoint older than limit: records from
// it on are kept and, unless the kept log starts with HEAD, its snapshot and
// surface records are spliced in front. Without one, records older than
// limit are dropped; if what is left no longer starts with HEAD (the log was
// trimmed, or the session outlived the window), the newest checkpoint at or
// before the first kept record leads it the same way. Only a log with no
// such checkpoint comes back as a bare tail.
func ApplyWindow(records []ir.Record, cps []ir.Checkpoint, now, limit int64) []ir.Record {
	if limit <= 0 {
		return records
	}

	cp := preceding(cps, now, limit)
	if cp == nil {
		kept := make([]ir.Record, 0, len(records))
		for _, rec := range records {
			if now-rec.Time > limit {
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 || kept[0].Type == ir.RecordHead {
			return kept
		}
		if cp = covering(cps, kept[0]); cp == nil {
			return kept
		}
	}
	return spliceFrom(records, cp)
}

// preceding returns the newest checkpoint older than limit ms at now.
func preceding(cps []ir.Checkpoint, now, limit int64) *ir.Checkpoint {
	for i := len(cps) - 1; i >= 0; i-- {
		if now-cps[i].Time > limit {
			return &cps[i]
		}
	}
	return nil
}

// covering returns the newest checkpoint taken at or before first.
func covering(cps []ir.Checkpoint, first ir.Record) *ir.Checkpoint {
	for i := len(cps) - 1; i >= 0; i-- {
		cp := &cps[i]
		if cp.Reconciled() && first.ID != 0 {
			if cp.ID <= first.ID {
				return cp
			}
		} else if cp.Time <= first.Time {
			return cp
		}
	}
	return nil
}

func spliceFrom(records []ir.Record, cp *ir.Checkpoint) []ir.Record {
	kept := make([]ir.Record, 0, len(records))
	for _, rec := range records {
		if cp.Reconciled() {
			if rec.ID < cp.ID {
				continue
			}
		} else if rec.Time < cp.Time {
			continue
		}
		kept = append(kept, rec)
	}

	if len(kept) > 0 && kept[0].Type == ir.RecordHead {
		return kept
	}
	return append(cp.Records(), kept...)
}
