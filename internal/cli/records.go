package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/config"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/store"
)

// RecordsResult is the output of read.
type RecordsResult struct {
	StoreKey string      `json:"store_key"`
	Records  []ir.Record `json:"records"`
}

func (r RecordsResult) RenderText(w io.Writer) error {
	for _, rec := range r.Records {
		writeRecord(w, rec)
	}
	fmt.Fprintf(w, "%d record(s) in %s\n", len(r.Records), r.StoreKey)
	return nil
}

func writeRecord(w io.Writer, rec ir.Record) {
	data := string(rec.Data)
	if data == "" {
		data = "null"
	}
	fmt.Fprintf(w, "%6d  %-15s %13d  %s  %s\n", rec.ID, rec.Type, rec.Time, rec.RelatedID, data)
}

// CountResult is the output of count.
type CountResult struct {
	StoreKey string `json:"store_key"`
	Count    int    `json:"count"`
}

func (r CountResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.Count)
	return err
}

// LastResult is the output of last.
type LastResult struct {
	StoreKey string    `json:"store_key"`
	Record   ir.Record `json:"record"`
}

func (r LastResult) RenderText(w io.Writer) error {
	writeRecord(w, r.Record)
	return nil
}

// DeleteResult is the output of delete and clear.
type DeleteResult struct {
	StoreKey string `json:"store_key"`
	Deleted  int64  `json:"deleted"`
}

func (r DeleteResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "deleted %d record(s) from %s\n", r.Deleted, r.StoreKey)
	return err
}

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	Key            string
	Limit          int64
	Now            int64
	CheckpointFile string
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print a partition's records",
		Long: `Print the committed records of a store partition in commit order.

With --limit only the last limit ms before --now are kept. When a
persisted checkpoint cache is given, the checkpoint preceding the window
is spliced in front so the output replays on its own.

Examples:
  timecat read --db ./timecat.db --key shop
  timecat read --key shop --limit 30000 --checkpoint-file ./shop.ckpt
  timecat read --key shop --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", config.DefaultStoreKey, "store partition")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "read window in ms (0 reads everything)")
	cmd.Flags().Int64Var(&opts.Now, "now", 0, "window end in epoch ms (defaults to the current time)")
	cmd.Flags().StringVar(&opts.CheckpointFile, "checkpoint-file", "", "persisted checkpoint cache to window with")

	return cmd
}

func runRead(opts *ReadOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if opts.Limit < 0 {
		return out.Fail(CodeInvalidInput, NewExitError(ExitCommandError, "limit must be >= 0"), nil)
	}

	st, err := opts.openExisting()
	if err != nil {
		return out.Fail(CodeStore, asExitError(err), nil)
	}
	defer st.Close()

	recs, err := st.ReadRecords(cmd.Context(), opts.Key)
	if err != nil {
		return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to read records", err), nil)
	}

	if opts.Limit > 0 {
		now := opts.Now
		if now == 0 {
			now = time.Now().UnixMilli()
		}
		var cps []ir.Checkpoint
		if opts.CheckpointFile != "" {
			cache := checkpoint.New(
				checkpoint.WithPersister(checkpoint.NewFilePersister(opts.CheckpointFile)),
				checkpoint.WithLogger(opts.logger(cmd.ErrOrStderr())),
			)
			cache.Load()
			cps = cache.Entries()
		}
		recs = store.ApplyWindow(recs, cps, now, opts.Limit)
		out.VerboseLog("window of %d ms ending at %d, %d checkpoint(s)", opts.Limit, now, len(cps))
	}

	return out.Success(RecordsResult{StoreKey: opts.Key, Records: recs})
}

// KeyOptions holds flags for commands addressing one partition.
type KeyOptions struct {
	*RootOptions
	Key string
}

func keyFlag(cmd *cobra.Command, opts *KeyOptions) {
	cmd.Flags().StringVar(&opts.Key, "key", config.DefaultStoreKey, "store partition")
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of records in a partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openExisting()
			if err != nil {
				return out.Fail(CodeStore, asExitError(err), nil)
			}
			defer st.Close()

			n, err := st.CountRecords(cmd.Context(), opts.Key)
			if err != nil {
				return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to count records", err), nil)
			}
			return out.Success(CountResult{StoreKey: opts.Key, Count: n})
		},
	}
	keyFlag(cmd, opts)
	return cmd
}

// NewLastCommand creates the last command.
func NewLastCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print the most recent record of a partition",
		Long: `Print the most recent record of a partition.

Exit codes:
  0 - Record printed
  1 - The partition is empty
  2 - Command error (database not found, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openExisting()
			if err != nil {
				return out.Fail(CodeStore, asExitError(err), nil)
			}
			defer st.Close()

			rec, err := st.LastRecord(cmd.Context(), opts.Key)
			if errors.Is(err, store.ErrEmptyStore) {
				return out.Fail(CodeNotFound, NewExitError(ExitFailure, fmt.Sprintf("store %s is empty", opts.Key)), nil)
			}
			if err != nil {
				return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to read last record", err), nil)
			}
			return out.Success(LastResult{StoreKey: opts.Key, Record: rec})
		},
	}
	keyFlag(cmd, opts)
	return cmd
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	KeyOptions
	Lower int64
	Upper int64
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{KeyOptions: KeyOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a range of records by id",
		Long: `Delete records by id. Lower is inclusive. Upper is inclusive when lower
is also given and exclusive when it is alone. A zero bound is unset; at
least one bound is required.

Examples:
  timecat delete --key shop --upper 120
  timecat delete --key shop --lower 40 --upper 80`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, cmd)
		},
	}
	keyFlag(cmd, &opts.KeyOptions)
	cmd.Flags().Int64Var(&opts.Lower, "lower", 0, "lowest id deleted (inclusive)")
	cmd.Flags().Int64Var(&opts.Upper, "upper", 0, "highest id deleted (exclusive without --lower)")
	return cmd
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	rng := store.DeleteRange{Lower: opts.Lower, Upper: opts.Upper}
	if opts.Lower < 0 || opts.Upper < 0 || !rng.Valid() {
		return out.Fail(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid range", store.ErrInvalidRange), nil)
	}

	st, err := opts.openExisting()
	if err != nil {
		return out.Fail(CodeStore, asExitError(err), nil)
	}
	defer st.Close()

	n, err := st.DeleteRecords(cmd.Context(), opts.Key, rng)
	if err != nil {
		return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to delete records", err), nil)
	}
	return out.Success(DeleteResult{StoreKey: opts.Key, Deleted: n})
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record of a partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.openExisting()
			if err != nil {
				return out.Fail(CodeStore, asExitError(err), nil)
			}
			defer st.Close()

			n, err := st.ClearRecords(cmd.Context(), opts.Key)
			if err != nil {
				return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to clear records", err), nil)
			}
			return out.Success(DeleteResult{StoreKey: opts.Key, Deleted: n})
		},
	}
	keyFlag(cmd, opts)
	return cmd
}

// KeysResult is the output of keys.
type KeysResult struct {
	Keys []string `json:"keys"`
}

func (r KeysResult) RenderText(w io.Writer) error {
	for _, k := range r.Keys {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	return nil
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the partitions that hold records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			st, err := rootOpts.openExisting()
			if err != nil {
				return out.Fail(CodeStore, asExitError(err), nil)
			}
			defer st.Close()

			keys, err := st.Keys(cmd.Context())
			if err != nil {
				return out.Fail(CodeStore, WrapExitError(ExitFailure, "failed to list partitions", err), nil)
			}
			return out.Success(KeysResult{Keys: keys})
		},
	}
}
