package heuristics

import "github.com/dlvgo/hexcore/idstore"

// UfsContext is what a UfsHeuristic needs to decide whether now is a good
// time to run a partial unfounded-set check (spec.md §4.8 last paragraph).
type UfsContext struct {
	// ReadyRules is the number of rules in the component whose
	// assigned-and-verified atom count has reached their total atom count
	// (tracked by SkipProgramTracker).
	ReadyRules int
	TotalRules int
	// StepsSinceLastCheck counts propagator callbacks since the last UFS
	// check fired, for the Periodic strategy.
	StepsSinceLastCheck int
}

// UfsHeuristic decides whether the engine should run a (partial) unfounded
// set check now, on the skip-program projection (spec.md §4.8).
type UfsHeuristic interface {
	ShouldCheck(ctx UfsContext) bool
}

// AlwaysAtEnd (UFS variant) only checks once every rule in the component is
// ready — the most conservative, fewest-redundant-checks strategy.
type UfsAlwaysAtEnd struct{}

func (UfsAlwaysAtEnd) ShouldCheck(ctx UfsContext) bool {
	return ctx.TotalRules > 0 && ctx.ReadyRules == ctx.TotalRules
}

// UfsMaxPropagation checks on every propagator callback at which at least
// one rule is ready, maximizing how early an unfounded set can be caught at
// the cost of more checks.
type UfsMaxPropagation struct{}

func (UfsMaxPropagation) ShouldCheck(ctx UfsContext) bool { return ctx.ReadyRules > 0 }

// UfsPeriodic checks every N propagator callbacks regardless of readiness
// counts, bounding worst-case check frequency independent of program shape.
type UfsPeriodic struct {
	Every int
}

func (p UfsPeriodic) ShouldCheck(ctx UfsContext) bool {
	if p.Every <= 0 {
		return false
	}
	return ctx.StepsSinceLastCheck >= p.Every
}

// SkipProgramTracker maintains, per spec.md §4.8's last paragraph, the
// per-rule count of assigned-and-verified participating atoms and derives
// the skip program (rules with at least one unassigned-or-unverified scope
// atom) that a partial UFS check is projected onto.
type SkipProgramTracker struct {
	ruleAtoms map[idstore.Id][]idstore.Id // rule -> atoms it participates in (head ∪ body ∪ scope-of-body-externals)
	atomRules map[idstore.Id][]idstore.Id // atom -> rules it participates in
	ready     map[idstore.Id]int          // rule -> count of currently assigned-and-verified participating atoms
	doneAtom  map[idstore.Id]bool
}

// NewSkipProgramTracker builds a tracker from the component's rule → atom
// participation map (heads, ordinary body atoms, and the scope atoms of any
// body external atoms, exactly as spec.md §4.8 describes: "per atom a list
// of rules it participates in and per rule the count of assigned-and-verified
// atoms").
func NewSkipProgramTracker(ruleAtoms map[idstore.Id][]idstore.Id) *SkipProgramTracker {
	t := &SkipProgramTracker{
		ruleAtoms: ruleAtoms,
		atomRules: make(map[idstore.Id][]idstore.Id),
		ready:     make(map[idstore.Id]int),
		doneAtom:  make(map[idstore.Id]bool),
	}
	for rule, atoms := range ruleAtoms {
		for _, a := range atoms {
			t.atomRules[a] = append(t.atomRules[a], rule)
		}
	}
	return t
}

// MarkReady records that atom just became assigned-and-verified, returning
// the rules that just became fully ready as a result (every one of their
// participating atoms is now assigned-and-verified).
func (t *SkipProgramTracker) MarkReady(atom idstore.Id) []idstore.Id {
	if t.doneAtom[atom] {
		return nil
	}
	t.doneAtom[atom] = true

	var justReady []idstore.Id
	for _, rule := range t.atomRules[atom] {
		t.ready[rule]++
		if t.ready[rule] == len(t.ruleAtoms[rule]) {
			justReady = append(justReady, rule)
		}
	}
	return justReady
}

// Unmark reverts atom to not-assigned-and-verified (e.g. on backtrack or
// unverify), decrementing every rule it participates in.
func (t *SkipProgramTracker) Unmark(atom idstore.Id) {
	if !t.doneAtom[atom] {
		return
	}
	t.doneAtom[atom] = false
	for _, rule := range t.atomRules[atom] {
		t.ready[rule]--
	}
}

// ReadyCount returns the number of fully-ready rules.
func (t *SkipProgramTracker) ReadyCount() int {
	n := 0
	for rule, atoms := range t.ruleAtoms {
		if t.ready[rule] == len(atoms) {
			n++
		}
	}
	return n
}

// TotalRules returns the number of rules tracked.
func (t *SkipProgramTracker) TotalRules() int { return len(t.ruleAtoms) }

// SkipProgram returns every rule that is not yet fully ready — the set the
// UfsChecker is told to ignore (spec.md §4.8's `skip` parameter).
func (t *SkipProgramTracker) SkipProgram() []idstore.Id {
	var skip []idstore.Id
	for rule, atoms := range t.ruleAtoms {
		if t.ready[rule] != len(atoms) {
			skip = append(skip, rule)
		}
	}
	return skip
}
