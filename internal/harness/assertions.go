package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/timecat/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Log      []ir.Record // Committed log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Log) > 0 {
		fmt.Fprintf(&buf, "\nFull log:\n")
		for i, rec := range e.Log {
			fmt.Fprintf(&buf, "  [%d] %s @%d %s\n", i+1, rec.Type, rec.Time, rec.Data)
		}
	}
	return buf.String()
}

func typesEqual(actual, expected []ir.RecordType) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}

func formatTypes(types []ir.RecordType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// assertTypes checks the exact type sequence of recs.
func assertTypes(kind string, recs []ir.Record, assertion Assertion) error {
	expected := typeNames(assertion.Types)
	actual := Types(recs)
	if typesEqual(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: formatTypes(expected),
		Actual:   formatTypes(actual),
		Log:      recs,
	}
}

// assertLogOrder checks that the first occurrence of each type appears in
// the given order. Other records may sit in between.
func assertLogOrder(log []ir.Record, assertion Assertion) error {
	expected := typeNames(assertion.Types)
	positions := make(map[ir.RecordType]int)
	for i, rec := range log {
		if _, seen := positions[rec.Type]; !seen {
			positions[rec.Type] = i + 1
		}
	}

	for _, t := range expected {
		if positions[t] == 0 {
			return &AssertionError{
				Type:     AssertLogOrder,
				Expected: fmt.Sprintf("all types present: %s", formatTypes(expected)),
				Actual:   fmt.Sprintf("missing type: %s", t),
				Log:      log,
			}
		}
	}
	for i := 1; i < len(expected); i++ {
		prev, curr := expected[i-1], expected[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertLogOrder,
				Expected: fmt.Sprintf("types in order: %s", formatTypes(expected)),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Log: log,
			}
		}
	}
	return nil
}

func assertLogCount(log []ir.Record, assertion Assertion) error {
	if len(log) == *assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogCount,
		Expected: fmt.Sprintf("%d records", *assertion.Count),
		Actual:   fmt.Sprintf("%d records", len(log)),
		Log:      log,
	}
}

// matches reports whether rec has the assertion's type, time and payload
// (subset semantics).
func matches(rec ir.Record, assertion Assertion) bool {
	t, _ := ir.ParseRecordType(assertion.Record)
	if rec.Type != t {
		return false
	}
	if assertion.Time != nil && rec.Time != *assertion.Time {
		return false
	}
	return matchData(rec.Data, assertion.Data)
}

func assertLogContains(log []ir.Record, assertion Assertion) error {
	for _, rec := range log {
		if matches(rec, assertion) {
			return nil
		}
	}
	expected := assertion.Record
	if assertion.Time != nil {
		expected += fmt.Sprintf(" at %d", *assertion.Time)
	}
	if len(assertion.Data) > 0 {
		expected += fmt.Sprintf(" with data %v", assertion.Data)
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: expected,
		Actual:   "not found in log",
		Log:      log,
	}
}

func assertAbsent(log []ir.Record, assertion Assertion) error {
	for i, rec := range log {
		if matches(rec, assertion) {
			return &AssertionError{
				Type:     AssertAbsent,
				Expected: fmt.Sprintf("no %s record", assertion.Record),
				Actual:   fmt.Sprintf("found at pos %d", i+1),
				Log:      log,
			}
		}
	}
	return nil
}

func assertCheckpointCount(result *Result, assertion Assertion) error {
	if len(result.Checkpoints) == *assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCheckpointCount,
		Expected: fmt.Sprintf("%d checkpoints", *assertion.Count),
		Actual:   fmt.Sprintf("%d checkpoints", len(result.Checkpoints)),
	}
}

// assertTerminateAt checks that the log ends with exactly one TERMINATE,
// stamped at the given time.
func assertTerminateAt(log []ir.Record, assertion Assertion) error {
	var terms []ir.Record
	for _, rec := range log {
		if rec.Type == ir.RecordTerminate {
			terms = append(terms, rec)
		}
	}
	fail := func(actual string) error {
		return &AssertionError{
			Type:     AssertTerminateAt,
			Expected: fmt.Sprintf("one trailing TERMINATE at %d", *assertion.Time),
			Actual:   actual,
			Log:      log,
		}
	}
	switch {
	case len(terms) != 1:
		return fail(fmt.Sprintf("%d TERMINATE records", len(terms)))
	case log[len(log)-1].Type != ir.RecordTerminate:
		return fail("TERMINATE is not the last record")
	case terms[0].Time != *assertion.Time:
		return fail(fmt.Sprintf("TERMINATE at %d", terms[0].Time))
	}
	return nil
}

// assertSingleRelatedID checks every record shares one correlation id.
func assertSingleRelatedID(log []ir.Record) error {
	for i, rec := range log {
		if rec.RelatedID != log[0].RelatedID {
			return &AssertionError{
				Type:     AssertSingleRelatedID,
				Expected: fmt.Sprintf("relatedId %q on every record", log[0].RelatedID),
				Actual:   fmt.Sprintf("relatedId %q at pos %d", rec.RelatedID, i+1),
				Log:      log,
			}
		}
	}
	return nil
}

// matchData checks if the JSON payload contains all expected keys (subset
// match). Extra keys in the payload are ignored.
func matchData(data json.RawMessage, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	actual, ok := decodeJSON(data).(map[string]any)
	if !ok {
		return false
	}
	exp, ok := normalize(expected).(map[string]any)
	if !ok {
		return false
	}
	for key, want := range exp {
		got, exists := actual[key]
		if !exists || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// normalize round-trips v through encoding/json so YAML-decoded values
// compare equal to decoded payloads (ints become json.Number and so on).
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLogTypes:
			err = assertTypes(AssertLogTypes, result.Log, assertion)
		case AssertLogOrder:
			err = assertLogOrder(result.Log, assertion)
		case AssertLogCount:
			err = assertLogCount(result.Log, assertion)
		case AssertLogContains:
			err = assertLogContains(result.Log, assertion)
		case AssertAbsent:
			err = assertAbsent(result.Log, assertion)
		case AssertCheckpointCount:
			err = assertCheckpointCount(result, assertion)
		case AssertWindowTypes:
			err = assertTypes(AssertWindowTypes, result.Windows[assertion.Limit], assertion)
		case AssertTerminateAt:
			err = assertTerminateAt(result.Log, assertion)
		case AssertSingleRelatedID:
			err = assertSingleRelatedID(result.Log)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
