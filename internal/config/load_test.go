package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	opts, err := Load("testdata/options.yaml")
	require.NoError(t, err)

	assert.Equal(t, "demo", opts.StoreKey)
	assert.True(t, opts.Keep)
	assert.True(t, opts.Write, "omitted fields keep their defaults")
	assert.Equal(t, VideoOptions{Enabled: true, FPS: 12}, opts.Video)
	assert.Equal(t, []string{"scroll"}, opts.DisableWatchers)
	assert.Equal(t, int64(5000), opts.WriteKeepTime)
	require.Len(t, opts.RewriteResource, 1)
	assert.Equal(t, "https://cdn.example.test", opts.RewriteResource[0].Rewrite.ReplaceOrigin)
}

func TestLoad_CUE(t *testing.T) {
	opts, err := Load("testdata/options.cue")
	require.NoError(t, err)

	assert.Equal(t, "demo", opts.StoreKey)
	assert.False(t, opts.Write)
	assert.True(t, opts.EmitLocationImmediate)
	assert.Equal(t, VideoOptions{Enabled: true, FPS: 24}, opts.Video)
	assert.Equal(t, int64(1000), opts.WriteKeepTime)
}

func TestLoad_CUERejectsHighFPS(t *testing.T) {
	_, err := Load("testdata/bad_fps.cue")
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeValidation), "got %v", err)
}

func TestLoad_CUERejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.cue")
	require.NoError(t, os.WriteFile(path, []byte("colour: \"red\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeValidation), "got %v", err)
}

func TestLoad_YAMLRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colour: red\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeParse))
}

func TestLoad_YAMLRejectsNegativeKeepTime(t *testing.T) {
	_, err := ParseYAML([]byte("write_keep_time: -1\n"))
	assert.True(t, IsLoadError(err, ErrCodeValidation))
}

func TestLoad_EmptyYAMLIsDefault(t *testing.T) {
	opts, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Normalize(), opts)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, IsLoadError(err, ErrCodeNotFound))
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := Load(path)
	assert.True(t, IsLoadError(err, ErrCodeUnsupported))
}
