package harness

import "github.com/roach88/timecat/internal/ir"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Log is the partition's committed records, in commit order.
	Log []ir.Record `json:"log"`

	// Checkpoints are the session's cached checkpoints, oldest first.
	Checkpoints []ir.Checkpoint `json:"checkpoints"`

	// Windows holds the windowed read for every limit a window_types
	// assertion names.
	Windows map[int64][]ir.Record `json:"-"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Log:         []ir.Record{},
		Checkpoints: []ir.Checkpoint{},
		Windows:     make(map[int64][]ir.Record),
		Errors:      []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Types returns the record types of recs in order.
func Types(recs []ir.Record) []ir.RecordType {
	out := make([]ir.RecordType, len(recs))
	for i, rec := range recs {
		out[i] = rec.Type
	}
	return out
}
