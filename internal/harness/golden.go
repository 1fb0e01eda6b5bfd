package harness

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timecat/internal/ir"
)

// LogSnapshot is the golden form of a scenario run. Record types are
// written by name and store ids are left out, so goldens read like the
// log they describe.
type LogSnapshot struct {
	ScenarioName string
	Log          []ir.Record
	Checkpoints  []ir.Checkpoint
}

// toCanonicalMap converts a LogSnapshot to a map for canonical JSON
// serialization.
func (s *LogSnapshot) toCanonicalMap() map[string]any {
	log := make([]any, len(s.Log))
	for i, rec := range s.Log {
		log[i] = recordMap(rec)
	}
	cps := make([]any, len(s.Checkpoints))
	for i, cp := range s.Checkpoints {
		cps[i] = map[string]any{
			"type": cp.Type.String(),
			"time": json.Number(itoa(cp.Time)),
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"log":           log,
		"checkpoints":   cps,
	}
}

func recordMap(rec ir.Record) map[string]any {
	m := map[string]any{
		"type":      rec.Type.String(),
		"time":      json.Number(itoa(rec.Time)),
		"relatedId": rec.RelatedID,
	}
	if len(rec.Data) > 0 {
		m["data"] = decodeJSON(rec.Data)
	}
	return m
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// MarshalGolden renders result in its golden form.
func MarshalGolden(name string, result *Result) ([]byte, error) {
	snapshot := LogSnapshot{
		ScenarioName: name,
		Log:          result.Log,
		Checkpoints:  result.Checkpoints,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its log against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalGolden(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
