// Package config holds the recording options a session is created with,
// their defaults, and loaders for YAML and CUE option files.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultStoreKey names the store partition used when none is given.
	DefaultStoreKey = "timecat"

	// DefaultMode is the only recording mode the recorder defines.
	DefaultMode = "default"

	// DefaultWriteKeepTime is the checkpoint interval and default read
	// window, in milliseconds.
	DefaultWriteKeepTime int64 = 30000

	// MaxVideoFPS caps video capture frame rate.
	MaxVideoFPS = 24
)

// Options configures one recording session. Zero values are not defaults;
// start from Default() and override.
type Options struct {
	StoreKey              string            `yaml:"store_key" json:"store_key"`
	Mode                  string            `yaml:"mode" json:"mode"`
	Write                 bool              `yaml:"write" json:"write"`
	Keep                  bool              `yaml:"keep" json:"keep"`
	Audio                 bool              `yaml:"audio" json:"audio"`
	Video                 VideoOptions      `yaml:"video" json:"video"`
	EmitLocationImmediate bool              `yaml:"emit_location_immediate" json:"emit_location_immediate"`
	RewriteResource       []RewriteResource `yaml:"rewrite_resource" json:"rewrite_resource"`
	DisableWatchers       []string          `yaml:"disable_watchers" json:"disable_watchers"`
	WriteKeepTime         int64             `yaml:"write_keep_time" json:"write_keep_time"` // ms; 0 disables windowing
	CheckpointFile        string            `yaml:"checkpoint_file" json:"checkpoint_file,omitempty"`
}

// RewriteResource is one resource-URL rewrite rule handed to the snapshot
// collaborator. The recorder does not interpret it.
type RewriteResource struct {
	Matches []string      `yaml:"matches" json:"matches"`
	Type    string        `yaml:"type" json:"type,omitempty"`
	Rewrite RewriteConfig `yaml:"rewrite" json:"rewrite"`
}

// RewriteConfig describes how matched resource URLs are rewritten.
type RewriteConfig struct {
	ReplaceOrigin string `yaml:"replace_origin" json:"replace_origin,omitempty"`
	FolderPath    string `yaml:"folder_path" json:"folder_path,omitempty"`
	CrossURL      string `yaml:"cross_url" json:"cross_url,omitempty"`
}

// VideoOptions enables video capture. In files it is written either as a
// bool or as {fps: n}.
type VideoOptions struct {
	Enabled bool
	FPS     int
}

// Default returns the options a session uses when nothing is overridden.
func Default() Options {
	return Options{
		StoreKey:              DefaultStoreKey,
		Mode:                  DefaultMode,
		Write:                 true,
		EmitLocationImmediate: true,
		WriteKeepTime:         DefaultWriteKeepTime,
	}
}

// Normalize fills empty fields with defaults, NFC-normalizes the store key,
// and clamps video fps. Enabling video without an fps means MaxVideoFPS.
func (o Options) Normalize() Options {
	if strings.TrimSpace(o.StoreKey) == "" {
		o.StoreKey = DefaultStoreKey
	}
	o.StoreKey = norm.NFC.String(o.StoreKey)
	if o.Mode == "" {
		o.Mode = DefaultMode
	}
	if o.WriteKeepTime < 0 {
		o.WriteKeepTime = 0
	}
	if o.Video.FPS > 0 {
		o.Video.Enabled = true
	}
	if o.Video.Enabled && (o.Video.FPS <= 0 || o.Video.FPS > MaxVideoFPS) {
		o.Video.FPS = MaxVideoFPS
	}
	if !o.Video.Enabled {
		o.Video.FPS = 0
	}
	o.RewriteResource = append([]RewriteResource(nil), o.RewriteResource...)
	o.DisableWatchers = append([]string(nil), o.DisableWatchers...)
	return o
}

// WatcherDisabled reports whether name appears in DisableWatchers.
func (o Options) WatcherDisabled(name string) bool {
	for _, n := range o.DisableWatchers {
		if n == name {
			return true
		}
	}
	return false
}

type videoObject struct {
	FPS int `yaml:"fps" json:"fps"`
}

func (v *VideoOptions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return fmt.Errorf("video: expected bool or {fps: n}: %w", err)
		}
		*v = VideoOptions{Enabled: enabled}
		return nil
	}
	var obj videoObject
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	*v = VideoOptions{Enabled: true, FPS: obj.FPS}
	return nil
}

func (v VideoOptions) MarshalYAML() (any, error) {
	if !v.Enabled || v.FPS == 0 {
		return v.Enabled, nil
	}
	return videoObject{FPS: v.FPS}, nil
}

func (v *VideoOptions) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*v = VideoOptions{Enabled: enabled}
		return nil
	}
	var obj videoObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("video: expected bool or {fps: n}: %w", err)
	}
	*v = VideoOptions{Enabled: true, FPS: obj.FPS}
	return nil
}

func (v VideoOptions) MarshalJSON() ([]byte, error) {
	if !v.Enabled || v.FPS == 0 {
		return json.Marshal(v.Enabled)
	}
	return json.Marshal(videoObject{FPS: v.FPS})
}
