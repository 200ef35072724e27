package nogood

import (
	"github.com/dlvgo/hexcore/idstore"
)

// Grounder instantiates nonground Templates against a live assignment
// (spec.md §3 "NogoodGrounder"). It needs read access to the store (to
// inspect atom predicate/args) and to the current program mask (candidate
// ground atoms to unify nonground literals against).
type Grounder struct {
	Store *idstore.Store
}

// NewGrounder returns a Grounder bound to store.
func NewGrounder(store *idstore.Store) *Grounder {
	return &Grounder{Store: store}
}

// Ground instantiates template against candidates — every ground atom
// currently known to the program (e.g. AnnotatedGround.ProgramMask's true
// set) — producing one ground Nogood per consistent unification of the
// template's nonground literals. Literals in the template that are already
// ground pass through unchanged and must appear verbatim among candidates'
// predicates (constants are not unified, only matched).
func (g *Grounder) Ground(template *Template, candidatesByPredicate map[idstore.Id][]idstore.Id) []*Nogood {
	var results []*Nogood
	bindings := map[idstore.Id]idstore.Id{}
	g.groundFrom(template.Literals, 0, bindings, candidatesByPredicate, &results)
	return results
}

func (g *Grounder) groundFrom(lits []idstore.Id, i int, bindings map[idstore.Id]idstore.Id, candidates map[idstore.Id][]idstore.Id, out *[]*Nogood) {
	if i == len(lits) {
		ground := make([]idstore.Id, len(lits))
		for j, l := range lits {
			ground[j] = g.substituteLiteral(l, bindings)
		}
		*out = append(*out, New(ground...))
		return
	}

	lit := lits[i]
	atomID := lit.WithoutNaf()
	if !atomID.IsOrdinaryAtom() || atomID.IsGround() {
		// Already ground, or a builtin/aux marker that needs no unification.
		g.groundFrom(lits, i+1, bindings, candidates, out)
		return
	}

	atom := g.Store.LookupAtom(atomID)
	for _, cand := range candidates[atom.Predicate] {
		trial := cloneBindings(bindings)
		if g.unify(atom, cand, trial) {
			g.groundFrom(lits, i+1, trial, candidates, out)
		}
	}
}

func cloneBindings(b map[idstore.Id]idstore.Id) map[idstore.Id]idstore.Id {
	out := make(map[idstore.Id]idstore.Id, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// unify attempts to unify nonground atom pat against ground atom id
// candID, extending bindings in place. Returns false on conflict.
func (g *Grounder) unify(pat *idstore.OrdinaryAtom, candID idstore.Id, bindings map[idstore.Id]idstore.Id) bool {
	cand := g.Store.LookupAtom(candID)
	if pat.Predicate != cand.Predicate || len(pat.Args) != len(cand.Args) {
		return false
	}
	for i, pArg := range pat.Args {
		cArg := cand.Args[i]
		if !pArg.IsTerm() {
			continue
		}
		term := g.Store.LookupTerm(pArg)
		if term.Kind == idstore.TermVariable {
			if bound, ok := bindings[pArg]; ok {
				if bound != cArg {
					return false
				}
				continue
			}
			bindings[pArg] = cArg
			continue
		}
		if pArg != cArg {
			return false
		}
	}
	return true
}

// substituteLiteral rebuilds a (possibly nonground) literal id with its
// variable arguments replaced per bindings, preserving naf.
func (g *Grounder) substituteLiteral(lit idstore.Id, bindings map[idstore.Id]idstore.Id) idstore.Id {
	naf := lit.IsNaf()
	atomID := lit.WithoutNaf()
	if !atomID.IsOrdinaryAtom() || atomID.IsGround() {
		return lit
	}
	atom := g.Store.LookupAtom(atomID)
	args := make([]idstore.Id, len(atom.Args))
	ground := true
	for i, a := range atom.Args {
		if bound, ok := bindings[a]; ok {
			args[i] = bound
		} else {
			args[i] = a
			ground = false
		}
	}
	newAtom := g.Store.InternAtom(atom.Predicate, args, ground)
	if naf {
		return newAtom.WithNaf()
	}
	return newAtom
}
