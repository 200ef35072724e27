// Package solver implements spec.md §4.4's GroundSolver: a CDCL engine over
// ground nogoods, with an assumption stack, model enumeration, and a
// propagator callback hook. Two backends are provided: GiniBackend, which
// drives github.com/irifrance/gini's incremental SAT core, and
// InternalBackend, a from-scratch reference implementation that compiles
// each rule to its rule nogood and searches by chronological backtracking.
// InternalBackend adds no completion (support) nogoods and no loop nogoods.
package solver

import (
	"context"
	"fmt"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

// PartialAssignment is the read-only view handed to a Propagator after unit
// propagation (spec.md §4.4 attach_propagator / §5 "Ordering guarantees").
type PartialAssignment struct {
	// Assigned marks atoms that currently have a truth value.
	Assigned *ground.Interpretation
	// Value holds the current truth value; meaningful only where Assigned
	// is set.
	Value *ground.Interpretation
	// Changed marks atoms whose truth value may have changed since the
	// previous callback. Atomic with respect to Assigned/Value within one
	// callback. Both shipped backends pass the model's true atoms here; they
	// do not compute a diff against the previous callback.
	Changed *ground.Interpretation
}

// Truth reports the three-valued truth of atom under this partial
// assignment: (true,true)=true, (false,true)=false, (_,false)=unassigned.
func (p PartialAssignment) Truth(atom idstore.Id) (isTrue, isAssigned bool) {
	if !p.Assigned.Test(atom) {
		return false, false
	}
	return p.Value.Test(atom), true
}

// Propagator is the callback hook of spec.md §4.4. It may return nogoods to
// add; an empty (zero-literal) nogood signals a top-level conflict.
type Propagator func(ctx context.Context, partial PartialAssignment) ([]*nogood.Nogood, error)

// CostVector is a weak-constraint cost, compared lexicographically with the
// highest level given the most weight (SPEC_FULL.md supplemented feature 1,
// dlvhex2's Rule.h/ID.h ordering; printed as `<[w_k:k],…,[w_0:0]>` per
// spec.md §6).
type CostVector []int

// Less reports whether c is strictly better (lower cost) than other under
// the lexicographic order with the highest index compared first.
func (c CostVector) Less(other CostVector) bool {
	n := len(c)
	if len(other) > n {
		n = len(other)
	}
	for i := n - 1; i >= 0; i-- {
		var a, b int
		if i < len(c) {
			a = c[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			return a < b
		}
	}
	return false
}

func (c CostVector) String() string {
	s := "<"
	for i := len(c) - 1; i >= 0; i-- {
		if i != len(c)-1 {
			s += ","
		}
		s += fmt.Sprintf("[%d:%d]", c[i], i)
	}
	return s + ">"
}

// GroundSolver is spec.md §4.4's required public operation set.
type GroundSolver interface {
	// AddProgram admits additional rules. Both shipped backends ignore
	// frozenMask; fixed truth values are imposed only through
	// RestartWithAssumptions.
	AddProgram(ag *ground.AnnotatedGround, frozenMask *ground.Interpretation) error

	// AddNogood may be called at any time, including during propagation.
	AddNogood(ng *nogood.Nogood) error

	// RestartWithAssumptions restarts with the given signed literals forced
	// true as assumptions at decision level 0.
	RestartWithAssumptions(lits []idstore.Id) error

	// SetOptimum requires future models to be strictly better on the cost
	// lexicographic order.
	SetOptimum(cost CostVector)

	// NextModel drives search to the next model; returns nil, nil on
	// exhaustion.
	NextModel(ctx context.Context) (*ground.Interpretation, error)

	// InconsistencyCause is only valid immediately after NextModel returned
	// nil, nil; it returns a subset of explanationAtoms whose assumed
	// values suffice to derive unsatisfiability.
	InconsistencyCause(explanationAtoms []idstore.Id) (*nogood.Nogood, error)

	// AttachPropagator/DetachPropagator install/remove a propagator
	// callback. Both shipped backends invoke it once per complete model
	// found by NextModel, before that model is returned, and not after
	// intermediate propagation steps.
	AttachPropagator(cb Propagator)
	DetachPropagator(cb Propagator)
}
