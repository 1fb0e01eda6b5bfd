package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timecat/internal/config"
)

func TestLoadScenario_Valid(t *testing.T) {
	sc := loadTestScenario(t, "frame_session")

	assert.Equal(t, "frame_session", sc.Name)
	assert.Equal(t, int64(2000), sc.StartTime)
	assert.Equal(t, "golden-2", sc.RelatedID)
	require.Len(t, sc.Frames, 1)
	assert.Equal(t, "child", sc.Frames[0].ID)
	require.Len(t, sc.Steps, 5)
	assert.Equal(t, StepScroll, sc.Steps[3].Action)
	assert.Equal(t, "child", sc.Steps[3].Target)
	assert.Equal(t, 5, sc.Steps[3].Top)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: disk
description: "loaded from a temp dir"
steps:
  - action: flush
assertions:
  - type: log_count
    count: 3
`), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "disk", sc.Name)
	require.NotNil(t, sc.Assertions[0].Count)
	assert.Equal(t, 3, *sc.Assertions[0].Count)
}

func TestSessionOptions(t *testing.T) {
	sc := &Scenario{}
	opts, err := sc.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, config.Default().Normalize(), opts)

	sc, err = ParseScenario([]byte(`
name: opts
description: "options override the defaults"
options:
  store_key: scenario-key
  write_keep_time: 1500
  disable_watchers: [scroll]
steps:
  - action: flush
assertions:
  - type: single_related_id
`))
	require.NoError(t, err)
	opts, err = sc.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, "scenario-key", opts.StoreKey)
	assert.Equal(t, int64(1500), opts.WriteKeepTime)
	assert.True(t, opts.Write, "unset keys keep their defaults")
	assert.True(t, opts.WatcherDisabled("scroll"))
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: `
name: n
description: d
steps: []
assertions: [{type: single_related_id}]`,
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: d
steps: [{action: flush}]`,
			want: "assertions list is required",
		},
		{
			name: "unknown field",
			yaml: `
name: n
description: d
flow: []
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: "failed to parse YAML",
		},
		{
			name: "bad options",
			yaml: `
name: n
description: d
options: {write_keep_time: -1}
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: "write_keep_time",
		},
		{
			name: "unknown action",
			yaml: `
name: n
description: d
steps: [{action: teleport}]
assertions: [{type: single_related_id}]`,
			want: `unknown action "teleport"`,
		},
		{
			name: "advance without ms",
			yaml: `
name: n
description: d
steps: [{action: advance}]
assertions: [{type: single_related_id}]`,
			want: "ms must be positive",
		},
		{
			name: "dispatch without event",
			yaml: `
name: n
description: d
steps: [{action: dispatch}]
assertions: [{type: single_related_id}]`,
			want: "event is required",
		},
		{
			name: "unknown target",
			yaml: `
name: n
description: d
steps: [{action: scroll, target: nowhere}]
assertions: [{type: single_related_id}]`,
			want: `unknown target "nowhere"`,
		},
		{
			name: "load unknown frame",
			yaml: `
name: n
description: d
steps: [{action: load_frame, frame: child}]
assertions: [{type: single_related_id}]`,
			want: `unknown frame "child"`,
		},
		{
			name: "duplicate frame",
			yaml: `
name: n
description: d
frames: [{id: a}, {id: a}]
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: `duplicate id "a"`,
		},
		{
			name: "frame named root",
			yaml: `
name: n
description: d
frames: [{id: root}]
steps: [{action: flush}]
assertions: [{type: single_related_id}]`,
			want: `duplicate id "root"`,
		},
		{
			name: "unknown record type",
			yaml: `
name: n
description: d
steps: [{action: flush}]
assertions: [{type: absent, record: KEYPRESS}]`,
			want: "unknown record type",
		},
		{
			name: "log_order needs two types",
			yaml: `
name: n
description: d
steps: [{action: flush}]
assertions: [{type: log_order, types: [HEAD]}]`,
			want: "at least two types",
		},
		{
			name: "count required",
			yaml: `
name: n
description: d
steps: [{action: flush}]
assertions: [{type: checkpoint_count}]`,
			want: "non-negative count is required",
		},
		{
			name: "terminate_at needs time",
			yaml: `
name: n
description: d
steps: [{action: flush}]
assertions: [{type: terminate_at}]`,
			want: "time is required",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: d
steps: [{action: flush}]
assertions: [{type: trace_contains}]`,
			want: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
