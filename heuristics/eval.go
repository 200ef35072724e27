// Package heuristics implements spec.md §4.7's EvalHeuristic and §4.8's
// UfsHeuristic strategy families, plus the skip-program bookkeeping the
// UfsHeuristic needs to decide when a partial unfounded-set check is worth
// running.
package heuristics

import "github.com/dlvgo/hexcore/ground"

// WatchStrategy names how many of an inner external atom's scope atoms a
// heuristic asks to have watched at once: one (WatchSingle) or all
// (WatchAll). engine.ModelGenerator keeps no watch list and does not read
// it; it asks ShouldEvaluate for every inner external atom on every
// propagator callback.
type WatchStrategy int

const (
	WatchSingle WatchStrategy = iota
	WatchAll
)

// EvalContext is what an EvalHeuristic needs to decide whether to ask the
// oracle now (spec.md §4.7 step 2, first bullet): the external atom's scope
// and the component's program mask, plus the current partial assignment.
type EvalContext struct {
	Scope          *ground.Interpretation
	ProgramMask    *ground.Interpretation
	Assigned       *ground.Interpretation
	Changed        *ground.Interpretation
	UnassignedScope int
}

// EvalHeuristic decides, for one inner external atom on one propagator
// callback, whether to actually call the oracle now (spec.md §4.7).
type EvalHeuristic interface {
	ShouldEvaluate(ctx EvalContext) bool
	Watch() WatchStrategy
}

// LowFrequency reports WatchSingle and evaluates whenever the engine asks.
// Since the engine asks on every propagator callback regardless of Watch,
// it evaluates exactly as often as HighFrequency.
type LowFrequency struct{}

func (LowFrequency) ShouldEvaluate(EvalContext) bool { return true }
func (LowFrequency) Watch() WatchStrategy            { return WatchSingle }

// HighFrequency reports WatchAll and evaluates whenever the engine asks;
// the engine does not read Watch, so it evaluates exactly as often as
// LowFrequency.
type HighFrequency struct{}

func (HighFrequency) ShouldEvaluate(EvalContext) bool { return true }
func (HighFrequency) Watch() WatchStrategy            { return WatchAll }

// AlwaysAtEnd only evaluates once every scope atom is assigned, trading
// oracle calls for certainty (no unknown tuples are possible once the whole
// scope is decided).
type AlwaysAtEnd struct{}

func (AlwaysAtEnd) ShouldEvaluate(ctx EvalContext) bool { return ctx.UnassignedScope == 0 }
func (AlwaysAtEnd) Watch() WatchStrategy                { return WatchSingle }
