package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/timecat/internal/harness"
	"github.com/roach88/timecat/internal/ir"
)

// ScenarioResult is the output of scenario.
type ScenarioResult struct {
	Name        string      `json:"name"`
	Pass        bool        `json:"pass"`
	Errors      []string    `json:"errors,omitempty"`
	Log         []ir.Record `json:"log"`
	Checkpoints int         `json:"checkpoints"`
}

func (r ScenarioResult) RenderText(w io.Writer) error {
	for _, rec := range r.Log {
		writeRecord(w, rec)
	}
	fmt.Fprintf(w, "%d record(s), %d checkpoint(s)\n", len(r.Log), r.Checkpoints)
	if r.Pass {
		_, err := fmt.Fprintf(w, "✓ %s\n", r.Name)
		return err
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "Run a recording scenario",
		Long: `Run a harness scenario against an in-memory store and print the log it
committed, followed by its assertion results. --db is not used.

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed
  2 - Command error (invalid scenario, etc.)

Examples:
  timecat scenario ./scenarios/scroll.yaml
  timecat scenario ./scenarios/frames.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sc, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(CodeInvalidInput, WrapExitError(ExitCommandError, "failed to load scenario", err), nil)
	}
	out.VerboseLog("running scenario %s: %s", sc.Name, sc.Description)

	result, err := harness.Run(cmd.Context(), sc, harness.WithLogger(opts.logger(out.GetErrWriter())))
	if err != nil {
		return out.Fail(CodeScenario, WrapExitError(ExitFailure, "scenario execution failed", err), nil)
	}

	res := ScenarioResult{
		Name:        sc.Name,
		Pass:        result.Pass,
		Errors:      result.Errors,
		Log:         result.Log,
		Checkpoints: len(result.Checkpoints),
	}
	if err := out.Success(res); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}
