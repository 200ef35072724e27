package engine

import (
	"context"
	"fmt"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

// analyzeInconsistency implements spec.md §4.9's transitive-unit-learning
// algorithm, run once when a component's solver exhausts models on its very
// first NextModel call: find the predecessor-supplied atoms responsible, so
// the predecessor unit can add a nogood that avoids reproducing them.
//
// The diagnosis runs against a fresh solver instance rather than mg.solv:
// the extensibility trick (step 2) deliberately relaxes the component's own
// optimisations, which would be unsound to keep around for production
// model search once the diagnosis is done.
func (mg *ModelGenerator) analyzeInconsistency(ctx context.Context) (*nogood.Nogood, error) {
	explanation, markerOf := mg.collectExplanationAtoms()
	if len(explanation) == 0 {
		return nil, nil
	}

	diag := mg.cfg.newSolver(mg.store)
	if err := diag.AddProgram(mg.ag, nil); err != nil {
		return nil, fmt.Errorf("engine: analyzeInconsistency: AddProgram: %w", err)
	}

	// Step 2: an extension rule a :- &x(a) for every explanation atom, so
	// that any head derivation blocked only by a missing predecessor fact
	// is still reachable through its marker.
	emptyEDB := ground.NewInterpretation(mg.store)
	for a, marker := range markerOf {
		r := &idstore.Rule{Head: []idstore.Id{a}, Body: []idstore.Id{marker}}
		rid := mg.store.InternRule(r)
		extAg := &ground.AnnotatedGround{Store: mg.store, EDB: emptyEDB, IDB: []idstore.Id{rid}}
		if err := diag.AddProgram(extAg, nil); err != nil {
			return nil, fmt.Errorf("engine: analyzeInconsistency: extension rule: %w", err)
		}
	}

	// Step 3 + 4: assume each explanation atom true iff it held in the
	// component's EDB; markers are left free for the search itself (forcing
	// one true would defeat the point of adding it), but are still offered
	// to InconsistencyCause below, forced true there, so the diagnostic
	// pass can tell whether the relaxation itself — not a predecessor
	// fact — is what the conflict hinges on.
	var assumptions, fullExplanation []idstore.Id
	markerSet := make(map[idstore.Id]bool, len(markerOf))
	for a, marker := range markerOf {
		markerSet[marker] = true
		fullExplanation = append(fullExplanation, marker)
		if mg.ag.EDB.Test(a) {
			assumptions = append(assumptions, a)
			fullExplanation = append(fullExplanation, a)
		} else {
			assumptions = append(assumptions, a.WithNaf())
			fullExplanation = append(fullExplanation, a.WithNaf())
		}
	}

	if err := diag.RestartWithAssumptions(assumptions); err != nil {
		return nil, fmt.Errorf("engine: analyzeInconsistency: %w", err)
	}
	model, err := diag.NextModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: analyzeInconsistency: %w", err)
	}
	if model != nil {
		// The relaxed program has a model: the original inconsistency was
		// genuinely due to the component's own rules, not a predecessor
		// fact, so there is nothing to publish upward.
		return nil, nil
	}

	cause, err := diag.InconsistencyCause(fullExplanation)
	if err != nil {
		return nil, fmt.Errorf("engine: analyzeInconsistency: %w", err)
	}

	// Step 6: discard any result that leans on an extension marker — that
	// would only be an artifact of the extensibility trick.
	for _, lit := range cause.Literals {
		if markerSet[lit.WithoutNaf()] {
			return nil, nil
		}
	}
	return cause, nil
}

// collectExplanationAtoms is spec.md §4.9 step 1: ground atoms whose
// predicate occurs in the component but is never a rule head there — these
// are EDB-like inputs supplied by a predecessor unit. Each gets a fresh
// explanation marker in the dedicated AuxExplanation namespace (class 'e'
// in idstore.Store.AuxSymbol), distinct from the 'x' class assumption
// rounds already used by ufs.AssumptionChecker.
func (mg *ModelGenerator) collectExplanationAtoms() ([]idstore.Id, map[idstore.Id]idstore.Id) {
	defined := make(map[idstore.Id]bool) // predicates with a rule head in the component
	for _, rid := range mg.ag.IDB {
		r := mg.store.LookupRule(rid)
		for _, h := range r.Head {
			if hu := h.WithoutNaf(); hu.IsOrdinaryAtom() {
				defined[mg.store.LookupAtom(hu).Predicate] = true
			}
		}
	}

	seen := make(map[idstore.Id]bool)
	var explanation []idstore.Id
	markerOf := make(map[idstore.Id]idstore.Id)
	it := mg.ag.ProgramMask.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		a := mg.store.IdAtAddress(uint64(addr))
		if !a.IsOrdinaryAtom() || seen[a] || defined[mg.store.LookupAtom(a).Predicate] {
			continue
		}
		seen[a] = true
		explanation = append(explanation, a)
		markerOf[a] = mg.store.AuxSymbol('e', a)
	}
	return explanation, markerOf
}
