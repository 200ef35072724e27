package ground

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/katalvlaran/lvlath/core"

	"github.com/dlvgo/hexcore/idstore"
)

// edgeWeightOrdinary/edgeWeightExternal tag lvlath edges with the
// ordinary-edge/e-edge distinction of spec.md §4.3 step 3. lvlath's Graph
// has no notion of edge "kind"; weight is the only free per-edge integer it
// carries, so we overload it as a two-valued tag.
const (
	edgeWeightOrdinary int64 = 0
	edgeWeightExternal int64 = 1
)

// SCC is one strongly connected component of the atom-dependency graph.
type SCC struct {
	Atoms         []int // ground-atom addresses, in ascending order
	HeadCycle     bool  // some rule has ≥2 head atoms in this SCC
	ExternalCycle bool  // some e-edge has both endpoints in this SCC
	// ChoiceEncoded marks a component the caller has declared is compiled to
	// a choice-rule disjunctive encoding; per spec.md §9 Open Questions, the
	// UFS check must not be skipped for such a component even when it is
	// otherwise head-cycle-free and external-cycle-free.
	ChoiceEncoded bool
}

// AnnotatedGround owns a ground program plus every fact about it that the
// rest of the engine needs without recomputing: the program mask, external
// atom scope/aux-input masks, the atom-dependency graph and its SCCs, and
// the per-SCC sub-programs (spec.md §4.3).
type AnnotatedGround struct {
	Store *idstore.Store

	EDB *Interpretation
	IDB []idstore.Id // rule ids

	ProgramMask *Interpretation

	ExternalAtoms []idstore.Id // active external atoms in this component

	ScopeMasks    map[idstore.Id]*Interpretation
	AuxInputMasks map[idstore.Id]*Interpretation

	// ReplacementToExternal maps a replacement-auxiliary ground atom id back
	// to the external atom id it was generated from (spec.md §4.3 "reverse
	// map").
	ReplacementToExternal map[idstore.Id]idstore.Id

	Graph *core.Graph // vertices are strconv.Itoa(groundAtomAddress)

	SCCs    []*SCC
	sccOf   map[int]int // atom address -> index into SCCs
	SubProg [][]idstore.Id
}

// DependencyFilter decides whether an e-edge from a head atom to an
// external-atom input atom should be pruned (spec.md §4.3 step 3, filters
// (a) and (b)). Built-in filter FLPDecisionCriterionEM is always applied;
// additional oracle-declared filters can be passed to Build.
type DependencyFilter func(ea *idstore.ExternalAtom, eaID idstore.Id, inputAtom idstore.Id) (prune bool)

// FLPDecisionCriterionEM drops the e-edge when the external atom's
// corresponding input parameter is antimonotonic (or monotonic, if the
// external atom occurs naf'd in its rule) — a monotone parameter cannot be
// the source of a non-monotone cycle (spec.md §4.3 step 3(a)).
func FLPDecisionCriterionEM(store *idstore.Store, naf bool) DependencyFilter {
	return func(ea *idstore.ExternalAtom, eaID idstore.Id, inputAtom idstore.Id) bool {
		var pred idstore.Id = idstore.Fail
		if inputAtom.IsOrdinaryAtom() {
			pred = store.LookupAtom(inputAtom.WithoutNaf()).Predicate
		}
		for idx, in := range ea.Input {
			if in != pred {
				continue // not the parameter inputAtom feeds
			}
			mono := ea.Properties.Monotonic[idx]
			anti := ea.Properties.Antimonotonic[idx]
			if !naf && anti {
				return true
			}
			if naf && mono {
				return true
			}
		}
		return false
	}
}

// BuildInput bundles the construction parameters of spec.md §4.3.
type BuildInput struct {
	Store         *idstore.Store
	EDB           *Interpretation
	IDB           []idstore.Id
	ExternalAtoms []idstore.Id
	// ExternalAtomNaf reports, for each external atom in ExternalAtoms,
	// whether its occurrence in the component is default-negated (feeds
	// FLPDecisionCriterionEM).
	ExternalAtomNaf map[idstore.Id]bool
	// ExternalAtomInputAtoms supplies, for each external atom, the set of
	// ground atoms that constitute its input (scope-mask construction would
	// otherwise require a grounder, which is out of scope per spec.md §1).
	ExternalAtomInputAtoms map[idstore.Id][]idstore.Id
	// ExternalAtomReplacements supplies the positive/negative replacement
	// atom ids for each external atom occurrence, keyed by external atom id.
	ExternalAtomReplacements map[idstore.Id][2]idstore.Id // [0]=positive, [1]=negative
	// ExtraFilters are oracle-declared atom-dependency filters (spec.md §4.3
	// step 3(b)); the core trusts them without validation (§9).
	ExtraFilters []DependencyFilter
	// ChoiceEncodedAtoms marks, by atom address, atoms whose SCC's
	// disjunction is compiled via choice rules (spec.md §9).
	ChoiceEncodedAtoms map[int]bool
}

// Build constructs an AnnotatedGround following spec.md §4.3 steps 1-7.
func Build(in BuildInput) (*AnnotatedGround, error) {
	if in.Store == nil {
		return nil, fmt.Errorf("ground: Build: Store is nil")
	}
	ag := &AnnotatedGround{
		Store:                  in.Store,
		EDB:                    in.EDB,
		IDB:                    append([]idstore.Id(nil), in.IDB...),
		ExternalAtoms:          append([]idstore.Id(nil), in.ExternalAtoms...),
		ScopeMasks:             make(map[idstore.Id]*Interpretation),
		AuxInputMasks:          make(map[idstore.Id]*Interpretation),
		ReplacementToExternal:  make(map[idstore.Id]idstore.Id),
		sccOf:                  make(map[int]int),
	}

	// Step 1: program mask = EDB ∪ occurrence set of every literal in every rule.
	ag.ProgramMask = in.EDB.Clone()
	for _, rid := range ag.IDB {
		r := in.Store.LookupRule(rid)
		for _, h := range r.Head {
			ag.ProgramMask.Set(h.WithoutNaf())
		}
		for _, b := range r.Body {
			if b.IsOrdinaryAtom() {
				ag.ProgramMask.Set(b.WithoutNaf())
			}
		}
	}

	// Step 2: per-external-atom scope mask, aux-input mask, reverse map.
	for _, eaID := range ag.ExternalAtoms {
		ea := in.Store.LookupExternalAtom(eaID)
		scope := NewInterpretation(in.Store)
		for _, a := range in.ExternalAtomInputAtoms[eaID] {
			scope.Set(a)
		}
		if repl, ok := in.ExternalAtomReplacements[eaID]; ok {
			for _, r := range repl {
				if !r.IsFail() {
					scope.Set(r)
					ag.ReplacementToExternal[r] = eaID
				}
			}
		}
		ag.ScopeMasks[eaID] = scope

		aux := NewInterpretation(in.Store)
		if !ea.AuxInputPredicate.IsFail() {
			for _, a := range in.ExternalAtomInputAtoms[eaID] {
				atom := in.Store.LookupAtom(a)
				if atom.Predicate == ea.AuxInputPredicate {
					aux.Set(a)
				}
			}
		}
		ag.AuxInputMasks[eaID] = aux
	}

	// Step 3: atom-dependency graph.
	ag.Graph = core.NewGraph(core.WithDirected(true), core.WithWeighted(), core.WithMultiEdges(), core.WithLoops())
	ensureVertex := func(addr int) {
		id := strconv.Itoa(addr)
		if !ag.Graph.HasVertex(id) {
			_ = ag.Graph.AddVertex(id)
		}
	}
	// Self-loops from rules like p :- p. still matter for SCC/head-cycle
	// detection, hence WithLoops() above.
	addEdge := func(from, to int, weight int64) {
		ensureVertex(from)
		ensureVertex(to)
		_, _ = ag.Graph.AddEdge(strconv.Itoa(from), strconv.Itoa(to), weight)
	}

	extByHead := map[int][]idstore.Id{} // head atom address -> external atoms used in that rule's body
	nafByExt := in.ExternalAtomNaf
	for _, rid := range ag.IDB {
		r := in.Store.LookupRule(rid)
		isWeight := r.Subkind == idstore.RuleWeight
		var headAddrs []int
		for _, h := range r.Head {
			headAddrs = append(headAddrs, int(h.WithoutNaf().Address()))
		}
		var bodyExternals []idstore.Id
		for _, b := range r.Body {
			if b.IsExternalAtom() {
				bodyExternals = append(bodyExternals, b)
				continue
			}
			if !b.IsOrdinaryAtom() {
				// Both solver backends expect external atoms to already be
				// folded into their ordinary replacement atom by the time
				// rules reach them (solver.GiniBackend/InternalBackend.
				// AddProgram); recover the e-edge source from the reverse
				// map built in step 2 when that convention is in play.
				if eaID, ok := ag.ReplacementToExternal[b.WithoutNaf()]; ok {
					bodyExternals = append(bodyExternals, eaID)
				}
				continue // builtin comparison/aggregate: no atom-dependency edge
			}
			if b.IsNaf() && !isWeight {
				continue // ordinary edges only from non-naf body atoms, except weight rules
			}
			bodyAddr := int(b.WithoutNaf().Address())
			for _, h := range headAddrs {
				addEdge(h, bodyAddr, edgeWeightOrdinary)
			}
		}
		for _, h := range headAddrs {
			extByHead[h] = append(extByHead[h], bodyExternals...)
		}
	}

	for headAddr, exts := range extByHead {
		for _, eaID := range exts {
			ea := in.Store.LookupExternalAtom(eaID)
			naf := nafByExt[eaID]
			for _, inputAtom := range in.ExternalAtomInputAtoms[eaID] {
				pruned := FLPDecisionCriterionEM(in.Store, naf)(ea, eaID, inputAtom)
				for _, f := range in.ExtraFilters {
					if pruned {
						break
					}
					pruned = f(ea, eaID, inputAtom)
				}
				if pruned {
					continue
				}
				addEdge(headAddr, int(inputAtom.WithoutNaf().Address()), edgeWeightExternal)
			}
		}
	}

	// Step 5: strongly connected components (Tarjan, grounded on the
	// three-color DFS discipline used throughout the dependency-analysis
	// corpus: White/unvisited, Gray/on-stack, Black/done).
	comps := tarjanSCC(ag.Graph)
	ag.SCCs = make([]*SCC, 0, len(comps))
	for _, comp := range comps {
		addrs := make([]int, len(comp))
		for i, v := range comp {
			addrs[i], _ = strconv.Atoi(v)
		}
		sort.Ints(addrs)
		scc := &SCC{Atoms: addrs}
		for _, a := range addrs {
			ag.sccOf[a] = len(ag.SCCs)
			if in.ChoiceEncodedAtoms[a] {
				scc.ChoiceEncoded = true
			}
		}
		ag.SCCs = append(ag.SCCs, scc)
	}

	inSameSCC := func(a, b int) bool {
		ia, ok1 := ag.sccOf[a]
		ib, ok2 := ag.sccOf[b]
		return ok1 && ok2 && ia == ib
	}

	// Step 6: headCycle / externalCycle flags.
	for _, rid := range ag.IDB {
		r := in.Store.LookupRule(rid)
		if len(r.Head) < 2 {
			continue
		}
		for i := 0; i < len(r.Head); i++ {
			for j := i + 1; j < len(r.Head); j++ {
				ai := int(r.Head[i].WithoutNaf().Address())
				aj := int(r.Head[j].WithoutNaf().Address())
				if inSameSCC(ai, aj) {
					ag.SCCs[ag.sccOf[ai]].HeadCycle = true
				}
			}
		}
	}
	for _, e := range ag.Graph.Edges() {
		if e.Weight != edgeWeightExternal {
			continue
		}
		from, _ := strconv.Atoi(e.From)
		to, _ := strconv.Atoi(e.To)
		if inSameSCC(from, to) {
			ag.SCCs[ag.sccOf[from]].ExternalCycle = true
		}
	}

	// Step 7: partition IDB by "SCC of some head atom".
	ag.SubProg = make([][]idstore.Id, len(ag.SCCs))
	for _, rid := range ag.IDB {
		r := in.Store.LookupRule(rid)
		seen := map[int]bool{}
		for _, h := range r.Head {
			addr := int(h.WithoutNaf().Address())
			idx, ok := ag.sccOf[addr]
			if !ok || seen[idx] {
				continue
			}
			seen[idx] = true
			ag.SubProg[idx] = append(ag.SubProg[idx], rid)
		}
	}

	return ag, nil
}

// SCCIndex returns the index into SCCs containing the atom at addr, or -1.
func (ag *AnnotatedGround) SCCIndex(addr int) int {
	if idx, ok := ag.sccOf[addr]; ok {
		return idx
	}
	return -1
}

// tarjanSCC computes strongly connected components of g using Tarjan's
// index/lowlink algorithm, mirroring the three-color DFS discipline of
// katalvlaran/lvlath's dfs.DetectCycles: White=unvisited, Gray=on the
// current DFS stack, Black=fully explored.
func tarjanSCC(g *core.Graph) [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	index := map[string]int{}
	lowlink := map[string]int{}
	state := map[string]int{}
	var stack []string
	onStack := map[string]bool{}
	counter := 0
	var result [][]string

	verts := g.Vertices()
	sort.Strings(verts) // deterministic traversal order

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		state[v] = gray
		stack = append(stack, v)
		onStack[v] = true

		neighbors, _ := g.NeighborIDs(v)
		sort.Strings(neighbors)
		for _, w := range neighbors {
			if state[w] == white {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			result = append(result, comp)
		}
		state[v] = black
	}

	for _, v := range verts {
		if state[v] == white {
			strongconnect(v)
		}
	}
	return result
}
