package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

// InternalBackend is a from-scratch GroundSolver: it never leaves the nogood
// representation, compiling each rule directly to the rule nogood
// NB(r) = B+(r) ∪ {not b | b ∈ B-(r)} ∪ {not h | h ∈ H(r)} (the canonical ASP
// rule nogood also used by dlvhex2's internal CDNLSolver, grounded on
// original_source's NogoodGrounder.h) instead of translating through a CNF
// completion. Propagation is a fixpoint full-scan over the active nogood set
// rather than a watched-literal scheme: correct and simple, traded for
// O(passes·|nogoods|·|literals|) per decision, which is fine for a reference
// backend meant to run small-to-medium ground instances and to double-check
// GiniBackend's answers.
//
// Model enumeration backtracks chronologically with naive two-branch
// decisions (no VSIDS, no 1-UIP learning beyond keeping whatever nogoods the
// caller or a UfsChecker feeds back in).
type InternalBackend struct {
	mu sync.Mutex

	store   *idstore.Store
	atoms   map[idstore.Id]bool
	nogoods *nogood.Store

	assumptions []idstore.Id
	optimum     CostVector
	costOf      func(*ground.Interpretation) CostVector

	propagators []Propagator
	lastModel   *ground.Interpretation
}

// NewInternalBackend returns an empty backend bound to store.
func NewInternalBackend(store *idstore.Store) *InternalBackend {
	return &InternalBackend{
		store:   store,
		atoms:   make(map[idstore.Id]bool),
		nogoods: nogood.NewStore(),
	}
}

// SetCostFunction mirrors GiniBackend.SetCostFunction.
func (b *InternalBackend) SetCostFunction(f func(*ground.Interpretation) CostVector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.costOf = f
}

func (b *InternalBackend) registerAtom(id idstore.Id) {
	b.atoms[id.WithoutNaf()] = true
}

func (b *InternalBackend) registerLiterals(lits []idstore.Id) {
	for _, l := range lits {
		b.registerAtom(l)
	}
}

// AddProgram compiles each rule of ag into its rule nogood and each EDB fact
// into a unit nogood.
func (b *InternalBackend) AddProgram(ag *ground.AnnotatedGround, frozenMask *ground.Interpretation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, rid := range ag.IDB {
		r := b.store.LookupRule(rid)
		var lits []idstore.Id
		for _, bl := range r.Body {
			u := bl.WithoutNaf()
			if !u.IsOrdinaryAtom() && !u.IsReplacementAtom() {
				continue // builtins already evaluated at grounding time
			}
			lits = append(lits, bl)
		}
		for _, h := range r.Head {
			lits = append(lits, h.WithNaf())
		}
		b.registerLiterals(lits)
		b.nogoods.AddGround(nogood.New(lits...))
	}

	it := ag.EDB.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		id := idstore.GroundAtomId(addr)
		b.registerAtom(id)
		b.nogoods.AddGround(nogood.New(id.WithNaf()))
	}

	_ = frozenMask
	return nil
}

// AddNogood registers ng directly, discovering any new atoms it mentions.
func (b *InternalBackend) AddNogood(ng *nogood.Nogood) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerLiterals(ng.Literals)
	b.nogoods.AddGround(ng)
	return nil
}

// RestartWithAssumptions replaces the level-0 forced literals for the next
// NextModel call and discards the previous model-blocking state.
func (b *InternalBackend) RestartWithAssumptions(lits []idstore.Id) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assumptions = append([]idstore.Id(nil), lits...)
	b.registerLiterals(lits)
	b.lastModel = nil
	return nil
}

func (b *InternalBackend) SetOptimum(cost CostVector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.optimum = cost
}

func (b *InternalBackend) sortedAtoms() []idstore.Id {
	out := make([]idstore.Id, 0, len(b.atoms))
	for a := range b.atoms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// frame is one decision point in the chronological search stack.
type frame struct {
	atom      idstore.Id
	trailMark int
	secondTry bool
}

// propagateLocked runs nogood-driven unit propagation to a fixpoint,
// reporting whether a conflict (a fully-violated nogood) was reached.
func (b *InternalBackend) propagateLocked(assigned, value map[idstore.Id]bool, trail *[]idstore.Id) bool {
	for {
		changed := false
		for _, ng := range b.nogoods.All() {
			holds, unassignedCount := 0, 0
			var lastUnassigned idstore.Id
			falseFound := false
			for _, lit := range ng.Literals {
				atom := lit.WithoutNaf()
				want := !lit.IsNaf()
				if assigned[atom] {
					if value[atom] == want {
						holds++
					} else {
						falseFound = true
						break
					}
				} else {
					unassignedCount++
					lastUnassigned = lit
				}
			}
			if falseFound {
				continue
			}
			if unassignedCount == 0 {
				return true
			}
			if unassignedCount != 1 {
				continue
			}
			atom := lastUnassigned.WithoutNaf()
			forced := lastUnassigned.IsNaf() // force atom false iff the remaining literal wants it true
			if assigned[atom] {
				if value[atom] != forced {
					return true
				}
				continue
			}
			assigned[atom] = true
			value[atom] = forced
			*trail = append(*trail, atom)
			changed = true
		}
		if !changed {
			return false
		}
	}
}

func (b *InternalBackend) backtrack(stack *[]*frame, assigned, value map[idstore.Id]bool, trail *[]idstore.Id) bool {
	for len(*stack) > 0 {
		fr := (*stack)[len(*stack)-1]
		for len(*trail) > fr.trailMark {
			last := (*trail)[len(*trail)-1]
			*trail = (*trail)[:len(*trail)-1]
			delete(assigned, last)
			delete(value, last)
		}
		if !fr.secondTry {
			fr.secondTry = true
			assigned[fr.atom] = true
			value[fr.atom] = false
			*trail = append(*trail, fr.atom)
			if !b.propagateLocked(assigned, value, trail) {
				return true
			}
		}
		*stack = (*stack)[:len(*stack)-1]
	}
	return false
}

// search runs one full DPLL search under the current assumptions and nogood
// set, returning the first model found or nil, nil on exhaustion.
func (b *InternalBackend) search(ctx context.Context) (*ground.Interpretation, error) {
	assigned := make(map[idstore.Id]bool)
	value := make(map[idstore.Id]bool)
	var trail []idstore.Id
	for _, a := range b.assumptions {
		atom := a.WithoutNaf()
		assigned[atom] = true
		value[atom] = !a.IsNaf()
		trail = append(trail, atom)
	}
	if b.propagateLocked(assigned, value, &trail) {
		return nil, nil
	}

	order := b.sortedAtoms()
	var stack []*frame

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var next idstore.Id
		found := false
		for _, a := range order {
			if !assigned[a] {
				next = a
				found = true
				break
			}
		}
		if !found {
			model := ground.NewInterpretation(b.store)
			for a, v := range value {
				if v {
					model.Set(a)
				}
			}
			return model, nil
		}

		fr := &frame{atom: next, trailMark: len(trail)}
		assigned[next] = true
		value[next] = true
		trail = append(trail, next)
		stack = append(stack, fr)

		if b.propagateLocked(assigned, value, &trail) {
			if !b.backtrack(&stack, assigned, value, &trail) {
				return nil, nil
			}
		}
	}
}

func (b *InternalBackend) blockModel(model *ground.Interpretation) {
	lits := make([]idstore.Id, 0, len(b.atoms))
	for a := range b.atoms {
		if model.Test(a) {
			lits = append(lits, a)
		} else {
			lits = append(lits, a.WithNaf())
		}
	}
	b.nogoods.AddGround(nogood.New(lits...))
}

func (b *InternalBackend) runPropagatorsLocked(ctx context.Context, model *ground.Interpretation) error {
	assigned := ground.NewInterpretation(b.store) // every registered atom is decided once search returns a model
	for a := range b.atoms {
		assigned.Set(a)
	}
	pa := PartialAssignment{Assigned: assigned, Value: model, Changed: model}
	for _, p := range b.propagators {
		ngs, err := p(ctx, pa)
		if err != nil {
			return fmt.Errorf("solver: propagator error: %w", err)
		}
		for _, ng := range ngs {
			b.registerLiterals(ng.Literals)
			b.nogoods.AddGround(ng)
		}
	}
	return nil
}

// NextModel drives the search, blocking the previous model before retrying,
// and rejects models that do not strictly improve the configured optimum.
func (b *InternalBackend) NextModel(ctx context.Context) (*ground.Interpretation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastModel != nil {
		b.blockModel(b.lastModel)
		b.lastModel = nil
	}

	for {
		model, err := b.search(ctx)
		if err != nil || model == nil {
			return nil, err
		}

		if b.costOf != nil && b.optimum != nil {
			cost := b.costOf(model)
			if !cost.Less(b.optimum) {
				b.blockModel(model)
				continue
			}
		}

		if err := b.runPropagatorsLocked(ctx, model); err != nil {
			return nil, err
		}

		b.lastModel = model
		return model, nil
	}
}

// InconsistencyCause assigns the atoms of explanationAtoms one at a time, in
// order, as level-0 assumptions and returns the prefix up to the first one
// whose unit propagation conflicts; this backend has no resolution proof to
// mine. No search is done: when propagating the whole set finds no conflict,
// an error is returned.
func (b *InternalBackend) InconsistencyCause(explanationAtoms []idstore.Id) (*nogood.Nogood, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	assigned := make(map[idstore.Id]bool)
	value := make(map[idstore.Id]bool)
	var trail []idstore.Id
	var kept []idstore.Id
	for _, a := range explanationAtoms {
		atom := a.WithoutNaf()
		if assigned[atom] {
			continue
		}
		assigned[atom] = true
		value[atom] = !a.IsNaf()
		trail = append(trail, atom)
		kept = append(kept, a)
		if b.propagateLocked(assigned, value, &trail) {
			return nogood.New(kept...), nil
		}
	}
	return nil, fmt.Errorf("solver: InconsistencyCause: explanationAtoms do not derive a conflict")
}

func (b *InternalBackend) AttachPropagator(cb Propagator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.propagators = append(b.propagators, cb)
}

func (b *InternalBackend) DetachPropagator(cb Propagator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := fmt.Sprintf("%p", cb)
	filtered := b.propagators[:0]
	for _, p := range b.propagators {
		if fmt.Sprintf("%p", p) != target {
			filtered = append(filtered, p)
		}
	}
	b.propagators = filtered
}

var _ GroundSolver = (*InternalBackend)(nil)
