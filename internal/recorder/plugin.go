package recorder

import (
	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/watcher"
)

// Plugin extends a root session. Apply runs once, before the session's
// BeforeRun hooks.
type Plugin interface {
	Apply(h *Hooks)
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(h *Hooks)

func (f PluginFunc) Apply(h *Hooks) { f(h) }

// Hooks collects what plugins contribute.
type Hooks struct {
	beforeRun []func(*Recorder)
	run       []func(*Recorder)
	emit      []func(ir.Record)
	watchers  []watcher.Named
}

// BeforeRun registers fn to run before the first Record.
func (h *Hooks) BeforeRun(fn func(*Recorder)) { h.beforeRun = append(h.beforeRun, fn) }

// Run registers fn to run after the first Record.
func (h *Hooks) Run(fn func(*Recorder)) { h.run = append(h.run, fn) }

// Emit registers fn to receive every record after the pipeline ran.
func (h *Hooks) Emit(fn func(ir.Record)) { h.emit = append(h.emit, fn) }

// Watcher adds a watcher to the root watcher set. Frame sessions never
// receive plugin watchers.
func (h *Hooks) Watcher(n watcher.Named) { h.watchers = append(h.watchers, n) }
