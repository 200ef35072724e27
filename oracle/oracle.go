// Package oracle implements spec.md §4.5's Oracle ABI: the boundary between
// the engine core and external-atom evaluators, plus the query→answer cache
// keyed per §4.5/§9 and SPEC_FULL.md's supplemented clarification of the
// program-mask-size cache-key component.
package oracle

import (
	"context"
	"errors"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

// InputType classifies one position of an external atom's input tuple
// (spec.md §4.5 "Oracle ABI"): a whole predicate extension, a single
// constant, or (at most once, and only last) a variable-length tuple.
type InputType int

const (
	InputPredicate InputType = iota
	InputConstant
	InputTuple
)

// Query bundles everything a Retrieve/LearnSupportSets call needs (spec.md
// §4.5): the interpretation and assigned/changed sets, already projected to
// the external atom's scope mask by the caller, the concrete input tuple,
// the output pattern (which may contain nonground term ids, i.e.
// variables), and the cache-invalidation count.
type Query struct {
	ExternalAtom idstore.Id

	// Interpretation, Assigned and Changed are pre-projected to the
	// external atom's scope mask; Assigned and Changed are nil when the
	// oracle did not request cares-about-assigned / cares-about-changed.
	Interpretation *ground.Interpretation
	Assigned       *ground.Interpretation
	Changed        *ground.Interpretation

	Input         []idstore.Id // concrete input tuple
	OutputPattern []idstore.Id // output tuple pattern; variable positions are nonground term ids

	// ProgramMaskSize is the count of ground atoms ever interned over this
	// external atom's input predicates (SPEC_FULL.md supplemented feature
	// 3), supplied by the caller since only it tracks per-predicate growth
	// as grounding proceeds. It is part of the cache key so a cached
	// negative conclusion is invalidated the moment new ground atoms appear
	// over an input predicate, even if Interpretation/Assigned are
	// unchanged.
	ProgramMaskSize int
}

// Answer is spec.md §4.5's retrieve result: which output tuples definitely
// hold, which might hold under some completion, and any justifying nogoods
// (each of which must be valid under every completion of the query's
// partial assignment).
type Answer struct {
	Positive [][]idstore.Id
	Unknown  [][]idstore.Id
	Nogoods  []*nogood.Nogood
}

// Oracle is the mandatory part of spec.md §4.5/§9's Oracle ABI.
type Oracle interface {
	Predicate() idstore.Id
	InputTypes() []InputType
	// OutputArity reports the output arity, or variableArity=true if the
	// external atom declares variable output arity (idstore.
	// ExternalAtomProperties.VariableOutputArity).
	OutputArity() (arity int, variableArity bool)

	Retrieve(ctx context.Context, q Query) (Answer, error)
}

// SupportSetLearner is implemented by oracles that advertise
// provides-support-sets; LearnSupportSets is called once during
// initialisation (spec.md §4.5).
type SupportSetLearner interface {
	LearnSupportSets(ctx context.Context, q Query) ([]*nogood.Nogood, error)
}

// SupportSetGuard is implemented by oracles that want runtime validation of
// cached support sets (spec.md §4.5 "Oracle ABI": optional
// guard_support_set).
type SupportSetGuard interface {
	GuardSupportSet(ng *nogood.Nogood) (keep bool, shrunk *nogood.Nogood, err error)
}

// ErrProtocolViolation names the oracle protocol errors enumerated in
// spec.md §7: an invalid support set, a contradictory nogood, or a declared
// monotonicity property empirically violated by an emitted nogood. Nothing
// in this module returns it; the engine wraps an oracle's Retrieve error
// with engine.ErrOracleProtocol instead.
var ErrProtocolViolation = errors.New("oracle: protocol violation")
