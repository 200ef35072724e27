package engine

import "errors"

// Sentinel errors for the static-programming and oracle-protocol failure
// classes of spec.md §7. ErrNoMoreModels is deliberately NOT one of these:
// solver exhaustion is a normal outcome (§7 "Solver-internal contradictions
// ... not an error"), signalled by NextModel returning (nil, nil).
var (
	// ErrArityMismatch: an external-atom occurrence's argument count
	// disagrees with its registered input/output arity.
	ErrArityMismatch = errors.New("engine: external atom arity mismatch")
	// ErrUnknownExternalAtom: a component references a predicate with no
	// registered oracle.
	ErrUnknownExternalAtom = errors.New("engine: unknown external atom")
	// ErrPropertyContradiction: a component or oracle declared properties
	// that cannot jointly hold (e.g. an index both monotonic and
	// antimonotonic without being constant).
	ErrPropertyContradiction = errors.New("engine: contradictory external atom properties")
	// ErrOracleProtocol: an oracle violated its ABI contract (invalid
	// support set, nogood over unknown atoms it should not emit, declared
	// monotonicity empirically violated).
	ErrOracleProtocol = errors.New("engine: oracle protocol violation")
)
