package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timecat/internal/checkpoint"
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/store"
)

func seedDB(t *testing.T, key string, recs ...ir.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timecat.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for _, rec := range recs {
		_, err := st.AppendRecord(context.Background(), key, rec)
		require.NoError(t, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func sessionRecords() []ir.Record {
	return []ir.Record{
		{Type: ir.RecordHead, Time: 1000, RelatedID: "s1", Data: json.RawMessage(`{"relatedId":"s1"}`)},
		{Type: ir.RecordScroll, Time: 2000, RelatedID: "s1", Data: json.RawMessage(`{"id":null,"top":10,"left":0}`)},
		{Type: ir.RecordScroll, Time: 3000, RelatedID: "s1", Data: json.RawMessage(`{"id":null,"top":20,"left":0}`)},
		{Type: ir.RecordScroll, Time: 9000, RelatedID: "s1", Data: json.RawMessage(`{"id":null,"top":30,"left":0}`)},
	}
}

func TestRead_All(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "read", "--db", db, "--key", "shop", "--format", "json")
	require.NoError(t, err)

	res := decodeData[RecordsResult](t, out)
	assert.Equal(t, "shop", res.StoreKey)
	require.Len(t, res.Records, 4)
	assert.Equal(t, ir.RecordHead, res.Records[0].Type)
	for i, rec := range res.Records {
		assert.Equal(t, int64(i+1), rec.ID)
	}
}

func TestRead_OtherPartitionEmpty(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "read", "--db", db, "--key", "blog", "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeData[RecordsResult](t, out).Records)
}

func TestRead_Window(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "read", "--db", db, "--key", "shop",
		"--limit", "5000", "--now", "10000", "--format", "json")
	require.NoError(t, err)

	res := decodeData[RecordsResult](t, out)
	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(9000), res.Records[0].Time)
}

func TestRead_WindowWithCheckpointFile(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)
	cpFile := filepath.Join(t.TempDir(), "shop.ckpt")
	require.NoError(t, checkpoint.NewFilePersister(cpFile).Save([]ir.Checkpoint{{
		Type:      ir.RecordScroll,
		Time:      3000,
		RelatedID: "s1",
		Snapshot:  ir.Record{Type: ir.RecordSnapshot, Time: 3000, RelatedID: "s1", Data: json.RawMessage(`{"vNode":{}}`)},
	}}))

	out, err := runCLI(t, "read", "--db", db, "--key", "shop",
		"--limit", "5000", "--now", "10000", "--checkpoint-file", cpFile, "--format", "json")
	require.NoError(t, err)

	res := decodeData[RecordsResult](t, out)
	types := make([]ir.RecordType, len(res.Records))
	for i, rec := range res.Records {
		types[i] = rec.Type
	}
	assert.Equal(t, []ir.RecordType{ir.RecordSnapshot, ir.RecordScroll, ir.RecordScroll}, types)
	assert.Equal(t, int64(3000), res.Records[1].Time)
}

func TestRead_NegativeLimit(t *testing.T) {
	db := seedDB(t, "shop")
	_, err := runCLI(t, "read", "--db", db, "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRead_Text(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "read", "--db", db, "--key", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, "HEAD")
	assert.Contains(t, out, "SCROLL")
	assert.Contains(t, out, "4 record(s) in shop")
}

func TestMissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.db")
	for _, name := range []string{"read", "count", "last", "clear"} {
		t.Run(name, func(t *testing.T) {
			out, err := runCLI(t, name, "--db", missing, "--format", "json")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeStore, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "database not found")
		})
	}
	assert.NoFileExists(t, missing)
}

func TestCount(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "count", "--db", db, "--key", "shop", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, 4, decodeData[CountResult](t, out).Count)

	out, err = runCLI(t, "count", "--db", db, "--key", "shop")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestLast(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	out, err := runCLI(t, "last", "--db", db, "--key", "shop", "--format", "json")
	require.NoError(t, err)
	res := decodeData[LastResult](t, out)
	assert.Equal(t, int64(9000), res.Record.Time)
	assert.Equal(t, int64(4), res.Record.ID)
}

func TestLast_EmptyPartition(t *testing.T) {
	db := seedDB(t, "shop")

	out, err := runCLI(t, "last", "--db", db, "--key", "shop", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		deleted   int64
		remaining []int64
	}{
		{"upper only is exclusive", []string{"--upper", "3"}, 2, []int64{3, 4}},
		{"lower only", []string{"--lower", "3"}, 2, []int64{1, 2}},
		{"both bounds inclusive", []string{"--lower", "2", "--upper", "3"}, 2, []int64{1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seedDB(t, "shop", sessionRecords()...)

			args := append([]string{"delete", "--db", db, "--key", "shop", "--format", "json"}, tt.args...)
			out, err := runCLI(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, decodeData[DeleteResult](t, out).Deleted)

			out, err = runCLI(t, "read", "--db", db, "--key", "shop", "--format", "json")
			require.NoError(t, err)
			var ids []int64
			for _, rec := range decodeData[RecordsResult](t, out).Records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.remaining, ids)
		})
	}
}

func TestDelete_InvalidRange(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)

	_, err := runCLI(t, "delete", "--db", db, "--key", "shop")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrInvalidRange)

	out, err := runCLI(t, "count", "--db", db, "--key", "shop")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestClear(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.AppendRecord(context.Background(), "blog", ir.Record{Type: ir.RecordHead, Time: 1, RelatedID: "b"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runCLI(t, "clear", "--db", db, "--key", "shop", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, int64(4), decodeData[DeleteResult](t, out).Deleted)

	out, err = runCLI(t, "count", "--db", db, "--key", "blog")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestKeys(t *testing.T) {
	db := seedDB(t, "shop", sessionRecords()...)
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.AppendRecord(context.Background(), "blog", ir.Record{Type: ir.RecordHead, Time: 1, RelatedID: "b"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runCLI(t, "keys", "--db", db, "--format", "json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"blog", "shop"}, decodeData[KeysResult](t, out).Keys)
}
