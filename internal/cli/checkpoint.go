package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/ir"
)

// CheckpointResult is the output of checkpoint.
type CheckpointResult struct {
	File        string          `json:"file"`
	Checkpoints []ir.Checkpoint `json:"checkpoints"`
}

func (r CheckpointResult) RenderText(w io.Writer) error {
	for i, cp := range r.Checkpoints {
		fmt.Fprintf(w, "[%d] %s @%d id=%d related=%s snapshot=%d bytes surfaces=%d\n",
			i, cp.Type, cp.Time, cp.ID, cp.RelatedID, len(cp.Snapshot.Data), len(cp.Surfaces))
	}
	_, err := fmt.Fprintf(w, "%d checkpoint(s) in %s\n", len(r.Checkpoints), r.File)
	return err
}

// CheckpointOptions holds flags for the checkpoint command.
type CheckpointOptions struct {
	*RootOptions
	File string
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect a persisted checkpoint cache",
		Long: `Decode a checkpoint cache file written by a session recording with keep
and print its entries, oldest first.

Exit codes:
  0 - File decoded
  1 - File is corrupt
  2 - Command error (file not found, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "checkpoint cache file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runCheckpoint(opts *CheckpointOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if _, err := os.Stat(opts.File); err != nil {
		return out.Fail(CodeNotFound,
			WrapExitError(ExitCommandError, fmt.Sprintf("checkpoint file not found: %s", opts.File), err), nil)
	}

	entries, err := checkpoint.NewFilePersister(opts.File).Load()
	if err != nil {
		return out.Fail(CodeCheckpoint, WrapExitError(ExitFailure, "failed to decode checkpoint file", err), nil)
	}
	if entries == nil {
		entries = []ir.Checkpoint{}
	}
	return out.Success(CheckpointResult{File: opts.File, Checkpoints: entries})
}
