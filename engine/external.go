package engine

import (
	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/oracle"
)

// externalState is the per-inner-external-atom bookkeeping of spec.md §4.7:
// evaluated/verified flags and the changed-since-last-eval set for
// cares-about-changed sources.
//
// spec.md §4.7 also specifies a verify-watch/unverify-watch scheme that
// evaluates an external atom only once its watched scope atom is decided.
// Both shipped GroundSolver backends hand the propagator a fully-decided
// candidate on every call (see this package's DESIGN.md entry), which makes
// every scope atom simultaneously "just decided" on the very first
// callback; a watch-list only pays off against a backend that calls the
// propagator incrementally per decision, so it is not implemented here.
type externalState struct {
	id      idstore.Id
	ea      *idstore.ExternalAtom
	oracle  oracle.Oracle
	scope   *ground.Interpretation
	replPos idstore.Id
	replNeg idstore.Id

	evaluated bool
	verified  bool

	// changedSinceLastEval accumulates atoms of scope that changed since X
	// was last evaluated; only populated when ea.Properties.CaresAboutChanged.
	changedSinceLastEval *ground.Interpretation
}

func (x *externalState) unverify() {
	x.evaluated = false
	x.verified = false
}
