package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/timecat/internal/ir"
)

func rec(id int64, typ ir.RecordType, time int64) ir.Record {
	return ir.Record{ID: id, Type: typ, Time: time, RelatedID: "r"}
}

func types(recs []ir.Record) []ir.RecordType {
	out := make([]ir.RecordType, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Type)
	}
	return out
}

func TestApplyWindow_ZeroLimitReturnsAll(t *testing.T) {
	all := []ir.Record{rec(1, ir.RecordHead, 0), rec(2, ir.RecordDOM, 10)}
	assert.Equal(t, all, ApplyWindow(all, nil, 1_000_000, 0))
}

func TestApplyWindow_NoCheckpointDropsOld(t *testing.T) {
	all := []ir.Record{
		rec(1, ir.RecordHead, 0),
		rec(2, ir.RecordDOM, 900),
		rec(3, ir.RecordDOM, 960),
	}
	got := ApplyWindow(all, nil, 1000, 50)
	assert.Equal(t, []ir.Record{all[2]}, got)
}

func TestApplyWindow_SplicesCheckpoint(t *testing.T) {
	cp := ir.Checkpoint{
		Type: ir.RecordDOM, Time: 100, ID: 3,
		Snapshot: rec(0, ir.RecordSnapshot, 100),
		Surfaces: []ir.Record{rec(0, ir.RecordCanvasSnapshot, 100)},
	}
	all := []ir.Record{
		rec(1, ir.RecordHead, 0),
		rec(2, ir.RecordSnapshot, 0),
		rec(3, ir.RecordDOM, 100),
		rec(4, ir.RecordDOM, 120),
	}

	got := ApplyWindow(all, []ir.Checkpoint{cp}, 200, 50)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordCanvasSnapshot, ir.RecordDOM, ir.RecordDOM}, types(got))
	assert.Equal(t, int64(3), got[2].ID)
}

func TestApplyWindow_NoSpliceWhenHeadKept(t *testing.T) {
	cp := ir.Checkpoint{Type: ir.RecordHead, Time: 0, ID: 1, Snapshot: rec(0, ir.RecordSnapshot, 0)}
	all := []ir.Record{rec(1, ir.RecordHead, 0), rec(2, ir.RecordSnapshot, 0)}

	got := ApplyWindow(all, []ir.Checkpoint{cp}, 1000, 50)
	assert.Equal(t, all, got)
}

func TestApplyWindow_UnreconciledCheckpointUsesTime(t *testing.T) {
	cp := ir.Checkpoint{Type: ir.RecordDOM, Time: 100, Snapshot: rec(0, ir.RecordSnapshot, 100)}
	all := []ir.Record{rec(1, ir.RecordHead, 0), rec(2, ir.RecordDOM, 100), rec(3, ir.RecordDOM, 150)}

	got := ApplyWindow(all, []ir.Checkpoint{cp}, 1000, 50)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordDOM, ir.RecordDOM}, types(got))
}

func TestApplyWindow_CheckpointOnlyWhenNothingKept(t *testing.T) {
	cp := ir.Checkpoint{Type: ir.RecordDOM, Time: 100, ID: 9, Snapshot: rec(0, ir.RecordSnapshot, 100)}
	got := ApplyWindow([]ir.Record{rec(1, ir.RecordHead, 0)}, []ir.Checkpoint{cp}, 1000, 50)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot}, types(got))
}

func TestApplyWindow_TrimmedTailLedByCoveringCheckpoint(t *testing.T) {
	// HEAD and the first snapshot were trimmed; every kept record is inside
	// the window, so no checkpoint precedes it.
	cps := []ir.Checkpoint{
		{Type: ir.RecordDOM, Time: 150, ID: 3, Snapshot: rec(0, ir.RecordSnapshot, 150)},
		{Type: ir.RecordDOM, Time: 300, ID: 5, Snapshot: rec(0, ir.RecordSnapshot, 300)},
	}
	all := []ir.Record{
		rec(3, ir.RecordDOM, 150),
		rec(4, ir.RecordDOM, 200),
		rec(5, ir.RecordDOM, 300),
	}

	got := ApplyWindow(all, cps, 300, 1000)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordDOM, ir.RecordDOM, ir.RecordDOM}, types(got))
	assert.Equal(t, int64(150), got[0].Time)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestApplyWindow_UnreconciledCheckpointCoversByTime(t *testing.T) {
	cps := []ir.Checkpoint{{Type: ir.RecordDOM, Time: 500, Snapshot: rec(0, ir.RecordSnapshot, 500)}}
	all := []ir.Record{rec(7, ir.RecordDOM, 500), rec(8, ir.RecordDOM, 600)}

	got := ApplyWindow(all, cps, 600, 1000)
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordDOM, ir.RecordDOM}, types(got))
}

func TestApplyWindow_NoCoveringCheckpointKeepsTail(t *testing.T) {
	cps := []ir.Checkpoint{{Type: ir.RecordDOM, Time: 550, ID: 9, Snapshot: rec(0, ir.RecordSnapshot, 550)}}
	all := []ir.Record{rec(7, ir.RecordDOM, 500)}

	got := ApplyWindow(all, cps, 600, 1000)
	assert.Equal(t, all, got)
}
