package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
)

// Scenario scripts one recording session against a fake document.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options are decoded on top of config.Default, with the same keys a
	// config file uses.
	Options yaml.Node `yaml:"options,omitempty"`

	// StartTime is the fake clock's epoch ms when the session is created.
	StartTime int64 `yaml:"start_time,omitempty"`

	// RelatedID is the correlation id the session is given. Defaults to
	// "scenario".
	RelatedID string `yaml:"related_id,omitempty"`

	// Document overrides the fake root document's description.
	Document *Document `yaml:"document,omitempty"`

	// Surfaces are what the fake snapshotter reports as renderable.
	Surfaces []ir.SurfaceData `yaml:"surfaces,omitempty"`

	// Frames are embedded in the root document before the session starts.
	Frames []Frame `yaml:"frames,omitempty"`

	// Steps run in order after the session started.
	Steps []Step `yaml:"steps"`

	// Assertions validate the committed log and checkpoints.
	Assertions []Assertion `yaml:"assertions"`
}

// Document describes a fake document.
type Document struct {
	Href   string `yaml:"href,omitempty"`
	Title  string `yaml:"title,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// Frame is an embedded fake frame. Its document id is ID.
type Frame struct {
	ID          string `yaml:"id"`
	Src         string `yaml:"src,omitempty"`
	CrossOrigin bool   `yaml:"cross_origin,omitempty"`
	Ready       bool   `yaml:"ready,omitempty"`
	// Unobservable frames do not report load; discovery polls them.
	Unobservable bool `yaml:"unobservable,omitempty"`
}

// Step is one scripted action.
type Step struct {
	// Action selects what the step does; see the Step* constants.
	Action string `yaml:"action"`

	// At is the epoch ms the clock is set to (clock).
	At int64 `yaml:"at,omitempty"`

	// Ms is how far the clock moves (advance).
	Ms int64 `yaml:"ms,omitempty"`

	// Target is the document a dispatch, resize or scroll goes to: empty
	// for the root, otherwise a frame id.
	Target string `yaml:"target,omitempty"`

	// Event and Data describe a dispatched event; Time stamps it.
	Event string         `yaml:"event,omitempty"`
	Data  map[string]any `yaml:"data,omitempty"`
	Time  int64          `yaml:"time,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	Top    int `yaml:"top,omitempty"`
	Left   int `yaml:"left,omitempty"`

	// Frame names the frame to load (load_frame).
	Frame string `yaml:"frame,omitempty"`

	// Count is the number of frame sessions to wait for (wait_frames).
	Count int `yaml:"count,omitempty"`
}

// Step actions.
const (
	StepClock      = "clock"   // set the clock to At without firing timers
	StepAdvance    = "advance" // move the clock by Ms, firing due timers
	StepDispatch   = "dispatch"
	StepResize     = "resize"
	StepScroll     = "scroll"
	StepLoadFrame  = "load_frame"
	StepWaitFrames = "wait_frames"
	StepFlush      = "flush"
	StepPause      = "pause"
	StepRecord     = "record"
	StepDestroy    = "destroy"
	StepClear      = "clear"
)

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Types lists record type names (log_types, log_order, window_types).
	Types []string `yaml:"types,omitempty"`

	// Record is a record type name (log_contains, absent, terminate_at).
	Record string `yaml:"record,omitempty"`

	// Time optionally pins the record time (log_contains, terminate_at).
	Time *int64 `yaml:"time,omitempty"`

	// Data is matched against the record payload with subset semantics
	// (log_contains).
	Data map[string]any `yaml:"data,omitempty"`

	// Count is the expected count (log_count, checkpoint_count).
	Count *int `yaml:"count,omitempty"`

	// Limit is the read window in ms (window_types).
	Limit int64 `yaml:"limit,omitempty"`
}

// Assertion types.
const (
	AssertLogTypes        = "log_types"
	AssertLogOrder        = "log_order"
	AssertLogCount        = "log_count"
	AssertLogContains     = "log_contains"
	AssertAbsent          = "absent"
	AssertCheckpointCount = "checkpoint_count"
	AssertWindowTypes     = "window_types"
	AssertTerminateAt     = "terminate_at"
	AssertSingleRelatedID = "single_related_id"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SessionOptions decodes the scenario's options over the defaults.
func (s *Scenario) SessionOptions() (config.Options, error) {
	if s.Options.Kind == 0 {
		return config.Default().Normalize(), nil
	}
	raw, err := yaml.Marshal(&s.Options)
	if err != nil {
		return config.Options{}, fmt.Errorf("options: %w", err)
	}
	return config.ParseYAML(raw)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.SessionOptions(); err != nil {
		return err
	}

	frames := make(map[string]bool, len(s.Frames))
	for i, f := range s.Frames {
		if f.ID == "" {
			return fmt.Errorf("frames[%d]: id is required", i)
		}
		if f.ID == rootID || frames[f.ID] {
			return fmt.Errorf("frames[%d]: duplicate id %q", i, f.ID)
		}
		frames[f.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, frames); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, frames map[string]bool) error {
	if step.Target != "" && !frames[step.Target] {
		return fmt.Errorf("steps[%d]: unknown target %q", index, step.Target)
	}
	switch step.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case StepClock:
		if step.At < 0 {
			return fmt.Errorf("steps[%d]: at must be non-negative for clock", index)
		}
	case StepAdvance:
		if step.Ms <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for advance", index)
		}
	case StepDispatch:
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required for dispatch", index)
		}
	case StepLoadFrame:
		if !frames[step.Frame] {
			return fmt.Errorf("steps[%d]: unknown frame %q", index, step.Frame)
		}
	case StepWaitFrames:
		if step.Count <= 0 {
			return fmt.Errorf("steps[%d]: count must be positive for wait_frames", index)
		}
	case StepResize, StepScroll, StepFlush, StepPause, StepRecord, StepDestroy, StepClear:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	for _, name := range a.Types {
		if _, err := ir.ParseRecordType(name); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	if a.Record != "" {
		if _, err := ir.ParseRecordType(a.Record); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	switch a.Type {
	case AssertLogTypes, AssertWindowTypes:
		if a.Types == nil {
			return fmt.Errorf("assertions[%d]: types list is required for %s", index, a.Type)
		}
	case AssertLogOrder:
		if len(a.Types) < 2 {
			return fmt.Errorf("assertions[%d]: at least two types are required for log_order", index)
		}
	case AssertLogCount, AssertCheckpointCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertLogContains, AssertAbsent:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for %s", index, a.Type)
		}
	case AssertTerminateAt:
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for terminate_at", index)
		}
	case AssertSingleRelatedID:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
