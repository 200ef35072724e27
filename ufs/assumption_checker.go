package ufs

import (
	"context"
	"fmt"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
	"github.com/dlvgo/hexcore/solver"
)

// AssumptionChecker implements spec.md §4.8's "assumption-based" UFS
// checker: one solver.InternalBackend and one u-shadow-atom registration is
// built per component at construction time (NewAssumptionChecker), and
// every Check call re-solves that same backend rather than building a fresh
// one.
//
// A rule's violation condition is a function of which atoms are currently
// true in the candidate, so its nogood content cannot be fixed once and for
// all; what IS fixed is the variable space. To keep nogoods contributed by
// earlier calls from leaking into later ones (a later candidate may make a
// different head true, which would make an earlier round's nogood
// unsound), every nogood a call contributes is additionally conjoined with
// that call's own "round" shadow atom. RestartWithAssumptions then assumes
// the current round true and every earlier round false, so only the
// current call's nogoods can ever fire — earlier ones become permanently
// inert without ever being retracted.
type AssumptionChecker struct {
	Store *idstore.Store

	backend        *solver.InternalBackend
	componentAtoms []idstore.Id
	shadowOf       map[idstore.Id]idstore.Id
	rounds         []idstore.Id
	nextRound      int
}

// NewAssumptionChecker builds the static scaffold for one component: the
// u-shadow atom for every atom appearing in any rule of component, and the
// nonempty(U) nogood (spec.md §4.8: an unfounded set must be nonempty),
// both registered once and reused by every subsequent Check call.
func NewAssumptionChecker(store *idstore.Store, component []idstore.Id) *AssumptionChecker {
	c := &AssumptionChecker{
		Store:    store,
		backend:  solver.NewInternalBackend(store),
		shadowOf: make(map[idstore.Id]idstore.Id),
	}

	seen := make(map[idstore.Id]bool)
	addAtom := func(a idstore.Id) {
		if seen[a] {
			return
		}
		seen[a] = true
		c.componentAtoms = append(c.componentAtoms, a)
		c.shadowOf[a] = uShadow(store, a)
	}
	for _, r := range component {
		rule := store.LookupRule(r)
		for _, h := range rule.Head {
			addAtom(h.WithoutNaf())
		}
		for _, b := range rule.Body {
			atom := b.WithoutNaf()
			if atom.IsOrdinaryAtom() || atom.IsReplacementAtom() {
				addAtom(atom)
			}
		}
	}

	var nonEmpty []idstore.Id
	for _, a := range c.componentAtoms {
		nonEmpty = append(nonEmpty, c.shadowOf[a].WithNaf())
	}
	if len(nonEmpty) > 0 {
		c.backend.AddNogood(nogood.New(nonEmpty...))
	}
	return c
}

func (c *AssumptionChecker) newRound() idstore.Id {
	round := c.Store.AuxSymbol('x', c.Store.InternInteger(int64(c.nextRound)))
	c.nextRound++
	c.rounds = append(c.rounds, round)
	return round
}

func (c *AssumptionChecker) Check(ctx context.Context, candidate *ground.Interpretation, component []idstore.Id, skip map[idstore.Id]bool, verified *ground.Interpretation) (*ground.Interpretation, *nogood.Nogood, error) {
	round := c.newRound()

	anyTrue := false
	for _, a := range c.componentAtoms {
		if candidate.Test(a) {
			anyTrue = true
			break
		}
	}
	if !anyTrue {
		return nil, nil, nil
	}

	for _, r := range component {
		if skip[r] {
			continue
		}
		trueHeads, truePosBody, bodyTrueInI := ruleParts(c.Store, r, candidate)
		if !bodyTrueInI {
			continue
		}
		lits := []idstore.Id{round}
		for _, h := range trueHeads {
			lits = append(lits, c.shadowOf[h])
		}
		for _, b := range truePosBody {
			lits = append(lits, c.shadowOf[b].WithNaf())
		}
		if len(lits) == 1 {
			continue // round literal alone: no component atom of this rule is live, never violated
		}
		if err := c.backend.AddNogood(nogood.New(lits...)); err != nil {
			return nil, nil, fmt.Errorf("ufs: AssumptionChecker: %w", err)
		}
	}

	var assumptions []idstore.Id
	for _, rd := range c.rounds {
		if rd == round {
			assumptions = append(assumptions, rd)
		} else {
			assumptions = append(assumptions, rd.WithNaf())
		}
	}
	// An atom never true in this candidate can never belong to U either:
	// force its shadow false so the solver doesn't waste a decision on it.
	for _, a := range c.componentAtoms {
		if !candidate.Test(a) {
			assumptions = append(assumptions, c.shadowOf[a].WithNaf())
		}
	}
	if err := c.backend.RestartWithAssumptions(assumptions); err != nil {
		return nil, nil, err
	}

	model, err := c.backend.NextModel(ctx)
	if err != nil {
		return nil, nil, err
	}
	if model == nil {
		return nil, nil, nil
	}

	u := ground.NewInterpretation(c.Store)
	var ufsLits []idstore.Id
	for _, a := range c.componentAtoms {
		if model.Test(c.shadowOf[a]) {
			u.Set(a)
			ufsLits = append(ufsLits, a)
		}
	}
	return u, nogood.New(ufsLits...), nil
}

var _ Checker = (*AssumptionChecker)(nil)
