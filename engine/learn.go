package engine

import (
	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

// scopeLiterals renders X's scope under a total candidate value as one
// signed literal per scope atom — the "assignment I on scope" half of
// spec.md §4.7's input/output nogood. Both GroundSolver backends only
// invoke the propagator once a candidate is completely decided (§5's
// single-threaded cooperative model: the callback point is after a full
// candidate is found), so an atom absent from value is taken as decided
// false, not as unassigned.
func scopeLiterals(store *idstore.Store, value, scope *ground.Interpretation) []idstore.Id {
	var lits []idstore.Id
	it := scope.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		atom := store.IdAtAddress(uint64(addr))
		if value.Test(atom) {
			lits = append(lits, atom)
		} else {
			lits = append(lits, atom.WithNaf())
		}
	}
	return lits
}

// guessState reports the guessing rule's current decision for X's
// replacement pair: which polarity (if either) is currently true.
func guessState(value *ground.Interpretation, x *externalState) (guessedPos, guessedAssigned bool) {
	pos := value.Test(x.replPos)
	neg := value.Test(x.replNeg)
	return pos, pos || neg
}

// tupleIn reports whether target occurs (by exact id-sequence equality)
// among tuples.
func tupleIn(tuples [][]idstore.Id, target []idstore.Id) bool {
	for _, t := range tuples {
		if idSliceEqual(t, target) {
			return true
		}
	}
	return false
}

func idSliceEqual(a, b []idstore.Id) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// learnIO derives spec.md §4.7's "input/output behaviour" nogood: the
// current scope assignment together with the wrong guess for X's
// replacement cannot hold simultaneously. Returns nil when the guess
// already agrees with the oracle (nothing to learn) or the oracle left the
// tuple's status undecided.
func learnIO(x *externalState, scopeLits []idstore.Id, positive, decided, guessedPos, guessedPosAssigned bool) *nogood.Nogood {
	if !decided || !guessedPosAssigned {
		return nil
	}
	if positive == guessedPos {
		return nil // guess already agrees, nothing to forbid
	}
	lits := append(append([]idstore.Id(nil), scopeLits...), boolGuessLiteral(x, guessedPos))
	return nogood.New(lits...)
}

// boolGuessLiteral returns the literal asserting "the wrong guess currently
// holds": replPos true when the oracle says negative, replNeg true when the
// oracle says positive.
func boolGuessLiteral(x *externalState, guessedPos bool) idstore.Id {
	if guessedPos {
		return x.replPos
	}
	return x.replNeg
}

// functionalGroup groups occurrences of a functional external atom sharing
// the same oracle, input tuple and output prefix up to FunctionalStartIndex
// (spec.md §4.7 "Functionality"): at most one member of a group may have its
// positive replacement true at once.
type functionalGroup struct {
	members []idstore.Id // replPos ids already known true in this group
}

func functionalKey(x *externalState) string {
	k := x.ea.Oracle.String()
	for _, in := range x.ea.Input {
		k += "|" + in.String()
	}
	start := x.ea.Properties.FunctionalStartIndex
	for i := 0; i < start && i < len(x.ea.Output); i++ {
		k += "#" + x.ea.Output[i].String()
	}
	return k
}

// learnFunctional records x's replPos (now known true) into its functional
// group and returns one nogood per pre-existing group member forbidding
// both from being true simultaneously.
func (mg *ModelGenerator) learnFunctional(x *externalState) []*nogood.Nogood {
	if !x.ea.Properties.Functional {
		return nil
	}
	mg.groupMu.Lock()
	defer mg.groupMu.Unlock()
	key := functionalKey(x)
	g, ok := mg.functionalGroups[key]
	if !ok {
		g = &functionalGroup{}
		mg.functionalGroups[key] = g
	}
	var learned []*nogood.Nogood
	for _, other := range g.members {
		if other == x.replPos {
			continue
		}
		learned = append(learned, nogood.New(other, x.replPos))
	}
	g.members = append(g.members, x.replPos)
	return learned
}

// programMaskSize is SPEC_FULL.md supplemented feature 3: the count of
// ground atoms ever interned over the external atom's input predicates
// (spec.md §9's Open Question on cache invalidation). AuxInputMasks only
// covers the optional AuxInputPredicate, which is Fail for a plain
// predicate-input external atom, so this counts ground atoms per predicate
// in ea.Input directly via the store instead.
func programMaskSize(ag *ground.AnnotatedGround, eaID idstore.Id) int {
	ea := ag.Store.LookupExternalAtom(eaID)
	n := 0
	for _, pred := range ea.Input {
		n += ag.Store.PredicateGroundAtomCount(pred)
	}
	return n
}
