package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timecat/internal/ir"
)

const scenarioFixture = "../harness/testdata/scenarios/scroll_then_pause.yaml"

func TestScenarioCommand_Pass(t *testing.T) {
	out, err := runCLI(t, "scenario", scenarioFixture, "--format", "json")
	require.NoError(t, err)

	res := decodeData[ScenarioResult](t, out)
	assert.Equal(t, "scroll_then_pause", res.Name)
	assert.True(t, res.Pass)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Log, 5)
	assert.Equal(t, ir.RecordTerminate, res.Log[4].Type)
}

func TestScenarioCommand_Text(t *testing.T) {
	out, err := runCLI(t, "scenario", scenarioFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "TERMINATE")
	assert.Contains(t, out, "✓ scroll_then_pause")
}

func TestScenarioCommand_FailingAssertion(t *testing.T) {
	data, err := os.ReadFile(scenarioFixture)
	require.NoError(t, err)
	broken := strings.Replace(string(data), "time: 1001", "time: 5000", 1)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	out, err := runCLI(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ scroll_then_pause")
	assert.Contains(t, out, "terminate_at")
}

func TestScenarioCommand_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o644))

	_, err := runCLI(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommand_RequiresFile(t *testing.T) {
	_, err := runCLI(t, "scenario")
	require.Error(t, err)
}
