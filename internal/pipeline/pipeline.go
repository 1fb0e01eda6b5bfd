// Package pipeline runs every emitted record through an ordered list of
// stages before it is considered committed.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/timecat/internal/ir"
)

// Stage observes or rewrites one record. It must call proceed before
// returning for later stages to run; a stage that does not, or that
// returns an error, ends the chain for that record only.
type Stage func(ctx context.Context, rec *ir.Record, proceed func()) error

// Pipeline is an ordered stage list, optionally followed by the stages of
// a parent pipeline (a nested session's chain runs its own stages, then
// the root's).
//
// Thread-safety: all methods are safe for concurrent use. Run works on a
// copy of the stage list taken when it starts.
type Pipeline struct {
	mu     sync.RWMutex
	stages []Stage // newest first
	next   *Pipeline
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNext chains next after this pipeline's own stages.
func WithNext(next *Pipeline) Option {
	return func(p *Pipeline) { p.next = next }
}

// WithLogger sets the logger stage failures go to.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepend adds s to the head of the stage list. The chain is walked from
// the tail, so stages execute in registration order. Records already
// inside Run are not affected.
func (p *Pipeline) Prepend(s Stage) {
	if s == nil {
		return
	}
	p.mu.Lock()
	p.stages = append([]Stage{s}, p.stages...)
	p.mu.Unlock()
}

// Len returns the number of own stages, excluding the chained pipeline.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stages)
}

// Next returns the chained pipeline, or nil.
func (p *Pipeline) Next() *Pipeline { return p.next }

// Run passes rec through every stage and returns the record as the last
// stage saw it, plus whether the whole chain proceeded to the end.
func (p *Pipeline) Run(ctx context.Context, rec ir.Record) (ir.Record, bool) {
	return p.Chain().Run(ctx, rec)
}

// Chain freezes the current stage list, chained pipelines included. A
// record carries the chain taken when it was emitted, so stages
// registered later never see it.
func (p *Pipeline) Chain() Chain {
	var stages []Stage
	for cur := p; cur != nil; cur = cur.next {
		stages = append(stages, cur.ordered()...)
	}
	return Chain{stages: stages, logger: p.logger}
}

// ordered returns the own stages in execution order.
func (p *Pipeline) ordered() []Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Stage, len(p.stages))
	for i, s := range p.stages {
		out[len(p.stages)-1-i] = s
	}
	return out
}

// Chain is a frozen stage list.
type Chain struct {
	stages []Stage
	logger *slog.Logger
}

// Len returns the number of stages.
func (ch Chain) Len() int { return len(ch.stages) }

// Run walks the stages in order. Each stage gets a proceed callback that
// marks continuation; the walk is a loop, never recursion.
func (ch Chain) Run(ctx context.Context, rec ir.Record) (ir.Record, bool) {
	for _, stage := range ch.stages {
		if !ch.step(ctx, stage, &rec) {
			return rec, false
		}
	}
	return rec, true
}

func (ch Chain) step(ctx context.Context, stage Stage, rec *ir.Record) bool {
	proceeded := false
	if err := stage(ctx, rec, func() { proceeded = true }); err != nil {
		logger := ch.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("pipeline stage failed",
			"type", rec.Type.String(),
			"time", rec.Time,
			"related_id", rec.RelatedID,
			"error", err,
		)
		return false
	}
	return proceeded
}

// Passthrough wraps fn as a stage that always proceeds after it returns.
func Passthrough(fn func(ctx context.Context, rec ir.Record)) Stage {
	return func(ctx context.Context, rec *ir.Record, proceed func()) error {
		fn(ctx, *rec)
		proceed()
		return nil
	}
}
