package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/heuristics"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
	"github.com/dlvgo/hexcore/oracle"
	"github.com/dlvgo/hexcore/solver"
	"github.com/dlvgo/hexcore/ufs"
)

// ExternalRegistration binds one inner external atom's oracle predicate to
// its evaluator (spec.md §4.6 construction step 2 refers to "inner external
// atoms"). Which occurrences are naf'd already fed the FLPDecisionCriterionEM
// filter applied upstream when the caller built ag, so the engine package
// itself never needs to consult it again.
type ExternalRegistration struct {
	Oracle oracle.Oracle
}

// ModelGenerator is spec.md §4.6's top-level orchestrator for one component:
// it owns the GroundSolver, installs itself as the propagator, drives the
// next-model loop, and applies the final compatibility and FLP/UFS checks.
//
// Construction accepts an already-ground, already-annotated program
// (ground.AnnotatedGround); building the extended non-ground program
// (construction steps 1-2 of spec.md §4.6: folding outer external atoms,
// synthesizing guessing rules `&r ∨ &n :- body`) and grounding it is a
// parser/grounder responsibility upstream of this package (spec.md §1 scopes
// the grounder out). Rule bodies in ag are expected to already carry each
// inner external atom's positive/negative replacement atom in place of the
// atom itself (idstore.Id.IsReplacementAtom), matching what both
// solver.GiniBackend and solver.InternalBackend expect.
type ModelGenerator struct {
	store *idstore.Store
	ag    *ground.AnnotatedGround
	cfg   *Config
	log   *zap.Logger

	session SessionID

	solv    solver.GroundSolver
	nogoods *nogood.Store
	trie    *nogood.VerificationTrie

	inner []*externalState
	byEA  map[idstore.Id]*externalState

	skipTracker        *heuristics.SkipProgramTracker
	stepsSinceUfsCheck int
	needsUfs           bool

	// groupMu guards functionalGroups against concurrent writers. The
	// synchronous next-model loop never contends on it; async.go's verifier
	// fans evaluate calls for several external atoms of one candidate out
	// across a worker pool, and those goroutines all reach learnFunctional.
	groupMu          sync.Mutex
	functionalGroups map[string]*functionalGroup

	firstCall           bool
	inconsistencyNogood *nogood.Nogood

	optimizing     bool
	currentOptimum solver.CostVector
}

// NewModelGenerator builds a ModelGenerator for one component (spec.md §4.6
// construction steps 3-6): validating every inner external atom occurrence
// against its registration, instantiating the configured GroundSolver and
// seeding it with ag's rules plus initialNogoods (previously-learned nogoods
// from successor components or transmitted from outside, per step 5),
// attaching the propagator, and running support-set learning for oracles
// that advertise it.
//
// registrations is keyed by oracle predicate id (idstore.ExternalAtom.
// Oracle), not by external-atom occurrence: one oracle may back many ground
// occurrences. frozenMask is passed on to the solver's AddProgram; neither
// shipped GroundSolver backend reads it.
func NewModelGenerator(ctx context.Context, cfg *Config, ag *ground.AnnotatedGround, registrations map[idstore.Id]ExternalRegistration, initialNogoods []*nogood.Nogood, frozenMask *ground.Interpretation) (*ModelGenerator, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if ec, ok := cfg.ufsChecker.(ufs.EncodingChecker); ok && ec.Store == nil {
		bound := *cfg
		bound.ufsChecker = ufs.EncodingChecker{Store: ag.Store}
		cfg = &bound
	}
	session := newSessionID()
	mg := &ModelGenerator{
		store:            ag.Store,
		ag:               ag,
		cfg:              cfg,
		log:              cfg.logger.With(zap.String("session", string(session))),
		session:          session,
		nogoods:          cfg.newNogoodStore(),
		trie:             nogood.NewVerificationTrie(),
		byEA:             make(map[idstore.Id]*externalState),
		functionalGroups: make(map[string]*functionalGroup),
		firstCall:        true,
	}

	ruleAtoms := make(map[idstore.Id][]idstore.Id, len(ag.IDB))
	for _, rid := range ag.IDB {
		ruleAtoms[rid] = ruleParticipants(ag, rid)
	}
	mg.skipTracker = heuristics.NewSkipProgramTracker(ruleAtoms)

	for _, eaID := range ag.ExternalAtoms {
		x, err := mg.buildExternalState(eaID, registrations)
		if err != nil {
			return nil, err
		}
		mg.inner = append(mg.inner, x)
		mg.byEA[eaID] = x
	}

	for _, scc := range ag.SCCs {
		if scc.HeadCycle || scc.ExternalCycle || scc.ChoiceEncoded {
			mg.needsUfs = true
			break
		}
	}

	mg.solv = cfg.newSolver(ag.Store)
	if err := mg.solv.AddProgram(ag, frozenMask); err != nil {
		return nil, fmt.Errorf("engine: NewModelGenerator: AddProgram: %w", err)
	}
	for _, ng := range initialNogoods {
		if err := mg.solv.AddNogood(ng); err != nil {
			return nil, fmt.Errorf("engine: NewModelGenerator: seeding initial nogood: %w", err)
		}
		mg.nogoods.AddGround(ng)
	}
	mg.solv.AttachPropagator(mg.propagate)

	if err := mg.learnInitialSupportSets(ctx, registrations); err != nil {
		return nil, err
	}

	return mg, nil
}

// ruleParticipants is heuristics.SkipProgramTracker's "rule -> atoms it
// participates in (head ∪ body ∪ scope-of-body-externals)": every ordinary
// body/head atom plus, for a body literal that is an external-atom
// replacement, every atom in that external atom's scope mask.
func ruleParticipants(ag *ground.AnnotatedGround, rid idstore.Id) []idstore.Id {
	r := ag.Store.LookupRule(rid)
	var atoms []idstore.Id
	for _, h := range r.Head {
		atoms = append(atoms, h.WithoutNaf())
	}
	for _, b := range r.Body {
		u := b.WithoutNaf()
		if u.IsReplacementAtom() {
			if eaID, ok := ag.ReplacementToExternal[u]; ok {
				if scope := ag.ScopeMasks[eaID]; scope != nil {
					it := scope.IterTrue()
					for {
						addr, ok := it.Next()
						if !ok {
							break
						}
						atoms = append(atoms, ag.Store.IdAtAddress(uint64(addr)))
					}
				}
			}
			continue
		}
		if u.IsOrdinaryAtom() {
			atoms = append(atoms, u)
		}
	}
	return atoms
}

// buildExternalState validates one external-atom occurrence against its
// registration (spec.md §7's static-programming error class: arity
// mismatch, unknown external atom, contradictory properties) and recovers
// its replacement atom pair by inverting ag.ReplacementToExternal.
func (mg *ModelGenerator) buildExternalState(eaID idstore.Id, registrations map[idstore.Id]ExternalRegistration) (*externalState, error) {
	ea := mg.store.LookupExternalAtom(eaID)
	reg, ok := registrations[ea.Oracle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExternalAtom, mg.store.Print(ea.Oracle))
	}

	arity, variableArity := reg.Oracle.OutputArity()
	if !variableArity && arity != len(ea.Output) {
		return nil, fmt.Errorf("%w: %s expects %d outputs, occurrence has %d", ErrArityMismatch, mg.store.Print(ea.Oracle), arity, len(ea.Output))
	}
	for idx := range ea.Input {
		if ea.Properties.Monotonic[idx] && ea.Properties.Antimonotonic[idx] {
			return nil, fmt.Errorf("%w: %s position %d declared both monotonic and antimonotonic", ErrPropertyContradiction, mg.store.Print(ea.Oracle), idx)
		}
	}

	var replPos, replNeg idstore.Id = idstore.Fail, idstore.Fail
	for atom, owner := range mg.ag.ReplacementToExternal {
		if owner != eaID {
			continue
		}
		switch atom.Kind() {
		case idstore.KindAux | idstore.AuxReplacementPos:
			replPos = atom
		case idstore.KindAux | idstore.AuxReplacementNeg:
			replNeg = atom
		}
	}

	x := &externalState{
		id:      eaID,
		ea:      ea,
		oracle:  oracle.NewCache(reg.Oracle, ea.Properties.CaresAboutChanged),
		scope:   mg.ag.ScopeMasks[eaID],
		replPos: replPos,
		replNeg: replNeg,
	}
	if ea.Properties.CaresAboutChanged {
		x.changedSinceLastEval = ground.NewInterpretation(mg.store)
	}
	return x, nil
}

// learnInitialSupportSets runs spec.md §4.5's "learn_support_sets(query)"
// call for every oracle that advertises provides-support-sets, storing the
// result as ground nogoods and, when supportSetInlining is enabled, as
// entries of the verification trie (spec.md §4.7 last paragraph).
func (mg *ModelGenerator) learnInitialSupportSets(ctx context.Context, registrations map[idstore.Id]ExternalRegistration) error {
	for _, x := range mg.inner {
		if !x.ea.Properties.ProvidesSupportSets {
			continue
		}
		reg := registrations[x.ea.Oracle]
		learner, ok := reg.Oracle.(oracle.SupportSetLearner)
		if !ok {
			continue
		}
		q := oracle.Query{
			ExternalAtom:    x.id,
			Input:           x.ea.Input,
			OutputPattern:   x.ea.Output,
			ProgramMaskSize: programMaskSize(mg.ag, x.id),
		}
		nogoods, err := learner.LearnSupportSets(ctx, q)
		if err != nil {
			return fmt.Errorf("engine: learn_support_sets for %s: %w", mg.store.Print(x.ea.Oracle), err)
		}
		for _, ng := range nogoods {
			mg.nogoods.AddGround(ng)
			if !mg.cfg.supportSetInlining {
				continue
			}
			if aux, ok := supportSetAux(ng, x.replPos, x.replNeg); ok {
				mg.trie.Add(ng, aux)
			}
		}
	}
	return nil
}

func supportSetAux(ng *nogood.Nogood, replPos, replNeg idstore.Id) (idstore.Id, bool) {
	for _, lit := range ng.Literals {
		u := lit.WithoutNaf()
		if u == replPos || u == replNeg {
			return u, true
		}
	}
	return idstore.Fail, false
}

// buildQuery projects the candidate onto x's scope mask and fills in the
// cache-relevant fields of spec.md §4.5's Query.
func (mg *ModelGenerator) buildQuery(x *externalState, value *ground.Interpretation) oracle.Query {
	proj := value.Clone()
	proj.IntersectWith(x.scope)

	q := oracle.Query{
		ExternalAtom:    x.id,
		Interpretation:  proj,
		Input:           x.ea.Input,
		OutputPattern:   x.ea.Output,
		ProgramMaskSize: programMaskSize(mg.ag, x.id),
	}
	if x.ea.Properties.CaresAboutAssigned {
		// Both GroundSolver backends only invoke the propagator on a
		// completely decided candidate (see engine's DESIGN.md entry), so
		// the assigned set under that invariant is simply the projected
		// value itself.
		q.Assigned = proj
	}
	if x.ea.Properties.CaresAboutChanged {
		chProj := x.changedSinceLastEval.Clone()
		chProj.IntersectWith(x.scope)
		q.Changed = chProj
		x.changedSinceLastEval = ground.NewInterpretation(mg.store)
	}
	return q
}

// propagate is the GroundSolver propagator callback: spec.md §4.7's
// three-step algorithm, run once per completed candidate (see this
// package's DESIGN.md entry on why both shipped backends only call the
// propagator that way rather than incrementally per decision).
func (mg *ModelGenerator) propagate(ctx context.Context, partial solver.PartialAssignment) ([]*nogood.Nogood, error) {
	value := partial.Value
	var learned []*nogood.Nogood

	changedAtoms := make(map[idstore.Id]bool)
	it := partial.Changed.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		changedAtoms[mg.store.IdAtAddress(uint64(addr))] = true
	}

	// Accumulate changed-since-last-eval for cares-about-changed sources,
	// independent of verified status: an oracle that cares about changed
	// atoms needs the full diff since its own last Retrieve call, not since
	// X was last verified.
	for _, x := range mg.inner {
		if x.changedSinceLastEval == nil {
			continue
		}
		x.changedSinceLastEval.UnionWith(partial.Changed)
	}

	// Step 1: unverify on scope change.
	for _, x := range mg.inner {
		if !x.verified {
			continue
		}
		scopeIt := x.scope.IterTrue()
		for {
			addr, ok := scopeIt.Next()
			if !ok {
				break
			}
			if changedAtoms[mg.store.IdAtAddress(uint64(addr))] {
				x.unverify()
				break
			}
		}
	}

	// Every atom present in the program is decided once the backend hands
	// us a completed candidate; mark them all ready so SkipProgramTracker's
	// counts reflect that (see DESIGN.md: this degenerates the UfsHeuristic
	// family to "always ready" under the current backends, which is sound,
	// if not latency-optimal).
	progIt := mg.ag.ProgramMask.IterTrue()
	for {
		addr, ok := progIt.Next()
		if !ok {
			break
		}
		mg.skipTracker.MarkReady(mg.store.IdAtAddress(uint64(addr)))
	}

	// Step 2: evaluate every inner external atom whose heuristic says to.
	for _, x := range mg.inner {
		evalCtx := heuristics.EvalContext{
			Scope:           x.scope,
			ProgramMask:     mg.ag.ProgramMask,
			Assigned:        value,
			Changed:         partial.Changed,
			UnassignedScope: 0,
		}
		if !mg.cfg.evalHeuristic.ShouldEvaluate(evalCtx) {
			continue
		}
		ngs, err := mg.evaluate(ctx, x, value)
		if err != nil {
			return nil, err
		}
		learned = append(learned, ngs...)
	}

	// Step 3: UFS heuristic.
	mg.stepsSinceUfsCheck++
	ufsCtx := heuristics.UfsContext{
		ReadyRules:          mg.skipTracker.ReadyCount(),
		TotalRules:          mg.skipTracker.TotalRules(),
		StepsSinceLastCheck: mg.stepsSinceUfsCheck,
	}
	if mg.cfg.ufsHeuristic.ShouldCheck(ufsCtx) {
		mg.stepsSinceUfsCheck = 0
		skip := make(map[idstore.Id]bool)
		for _, r := range mg.skipTracker.SkipProgram() {
			skip[r] = true
		}
		_, ufsNogood, err := mg.cfg.ufsChecker.Check(ctx, value, mg.ag.IDB, skip, mg.verifiedReplacements(value))
		if err != nil {
			return nil, fmt.Errorf("engine: propagate: partial UFS check: %w", err)
		}
		if ufsNogood != nil {
			mg.nogoods.AddGround(ufsNogood)
			learned = append(learned, ufsNogood)
		}
	}

	return learned, nil
}

// evaluate queries x's oracle, learns input/output and functionality
// nogoods from the answer, and updates x's evaluated/verified flags.
func (mg *ModelGenerator) evaluate(ctx context.Context, x *externalState, value *ground.Interpretation) ([]*nogood.Nogood, error) {
	scopeLits := scopeLiterals(mg.store, value, x.scope)
	guessedPos, guessedAssigned := guessState(value, x)

	q := mg.buildQuery(x, value)
	ans, err := x.oracle.Retrieve(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOracleProtocol, mg.store.Print(x.ea.Oracle), err)
	}

	var learned []*nogood.Nogood
	for _, ng := range ans.Nogoods {
		if mg.nogoods.AddGround(ng) {
			learned = append(learned, ng)
		}
	}

	positive := tupleIn(ans.Positive, x.ea.Output)
	decided := !tupleIn(ans.Unknown, x.ea.Output)

	if ng := learnIO(x, scopeLits, positive, decided, guessedPos, guessedAssigned); ng != nil {
		mg.nogoods.AddGround(ng)
		learned = append(learned, ng)
	}

	if decided {
		x.evaluated = true
		x.verified = guessedAssigned && positive == guessedPos
		if x.verified && guessedPos {
			learned = append(learned, mg.learnFunctional(x)...)
		}
	}

	return learned, nil
}

// verifiedReplacements builds the "currently verified" set spec.md §4.8's
// UfsChecker.Check expects: for every inner external atom whose verified
// flag is set, the replacement atom (positive or negative) that currently
// agrees with value.
func (mg *ModelGenerator) verifiedReplacements(value *ground.Interpretation) *ground.Interpretation {
	v := ground.NewInterpretation(mg.store)
	for _, x := range mg.inner {
		if !x.verified {
			continue
		}
		if value.Test(x.replPos) {
			v.Set(x.replPos)
		} else {
			v.Set(x.replNeg)
		}
	}
	return v
}

// finalCompatibilityCheck is spec.md §4.6's final_compatibility_check: any
// external atom the propagator already evaluated is trusted (accepted if
// verified, rejected if falsified); anything the propagator never got
// around to is verified directly now.
func (mg *ModelGenerator) finalCompatibilityCheck(ctx context.Context, candidate *ground.Interpretation) (bool, error) {
	for _, x := range mg.inner {
		if x.evaluated {
			if !x.verified {
				return false, nil
			}
			continue
		}
		ngs, err := mg.evaluate(ctx, x, candidate)
		if err != nil {
			return false, err
		}
		for _, ng := range ngs {
			if err := mg.solv.AddNogood(ng); err != nil {
				return false, fmt.Errorf("engine: finalCompatibilityCheck: %w", err)
			}
		}
		if !x.evaluated || !x.verified {
			return false, nil
		}
	}
	return true, nil
}

// isModel decides FLP-minimality (spec.md §4.6's is_model / §4.8): trivially
// true when no SCC of the component needs a check, otherwise the configured
// UfsChecker decides, and any UFS nogood found is fed back to the solver
// immediately so the same unfounded set is never reintroduced.
func (mg *ModelGenerator) isModel(ctx context.Context, candidate *ground.Interpretation) (bool, error) {
	if !mg.needsUfs {
		return true, nil
	}
	unfounded, ufsNogood, err := mg.cfg.ufsChecker.Check(ctx, candidate, mg.ag.IDB, nil, mg.verifiedReplacements(candidate))
	if err != nil {
		return false, fmt.Errorf("engine: isModel: %w", err)
	}
	if unfounded == nil || unfounded.Count() == 0 {
		return true, nil
	}
	if ufsNogood != nil {
		mg.nogoods.AddGround(ufsNogood)
		if err := mg.solv.AddNogood(ufsNogood); err != nil {
			return false, fmt.Errorf("engine: isModel: %w", err)
		}
	}
	return false, nil
}

// stripAuxiliaries projects candidate down to the non-auxiliary atoms of the
// component (spec.md §6 "Model emission"): the program mask, minus every
// inner external atom's replacement pair.
func (mg *ModelGenerator) stripAuxiliaries(candidate *ground.Interpretation) *ground.Interpretation {
	out := candidate.Clone()
	out.IntersectWith(mg.ag.ProgramMask)
	for _, x := range mg.inner {
		out.Clear(x.replPos)
		out.Clear(x.replNeg)
	}
	return out
}

// SetOptimum enables weak-constraint optimisation: every subsequent
// NextModel call requires the candidate's cost to be strictly better than
// cost under solver.CostVector.Less (SPEC_FULL.md supplemented feature 1).
func (mg *ModelGenerator) SetOptimum(cost solver.CostVector) {
	mg.optimizing = true
	mg.currentOptimum = cost
	mg.solv.SetOptimum(cost)
}

// CostOf computes candidate's weak-constraint cost vector, summing each
// satisfied weak constraint's weight into its level (highest level = highest
// priority, per solver.CostVector.Less).
func (mg *ModelGenerator) CostOf(candidate *ground.Interpretation) solver.CostVector {
	var cost solver.CostVector
	for _, rid := range mg.ag.IDB {
		r := mg.store.LookupRule(rid)
		if r.Subkind != idstore.RuleWeak {
			continue
		}
		if !bodyTrue(candidate, r) {
			continue
		}
		for len(cost) <= r.WeakLevel {
			cost = append(cost, 0)
		}
		cost[r.WeakLevel] += r.WeakWeight
	}
	return cost
}

// bodyTrue reports whether r's body holds under candidate. Ordinary atoms
// and external-atom replacement atoms (idstore.Id.IsReplacementAtom) are
// both addressed directly in candidate's bitset, matching how both
// GroundSolver backends treat rule bodies; builtins are assumed already
// resolved at grounding time.
func bodyTrue(candidate *ground.Interpretation, r *idstore.Rule) bool {
	for _, b := range r.Body {
		u := b.WithoutNaf()
		if !u.IsOrdinaryAtom() && !u.IsReplacementAtom() {
			continue
		}
		if candidate.Test(u) != !b.IsNaf() {
			return false
		}
	}
	return true
}

// InconsistencyNogood returns the nogood produced by the most recent
// transitive-unit-learning analysis (spec.md §4.9), or nil if none has run
// or none was found. Valid to call any time after a NextModel call that
// returned (nil, nil) on the component's first call.
func (mg *ModelGenerator) InconsistencyNogood() *nogood.Nogood { return mg.inconsistencyNogood }

// NextModel drives the component's search to its next answer set (spec.md
// §4.6's next-model loop), or returns (nil, nil) on exhaustion.
func (mg *ModelGenerator) NextModel(ctx context.Context) (*ground.Interpretation, error) {
	for {
		if mg.optimizing {
			mg.solv.SetOptimum(mg.currentOptimum)
		}

		candidate, err := mg.solv.NextModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: NextModel: %w", err)
		}
		if candidate == nil {
			if mg.firstCall && mg.cfg.transitiveUnitLearning {
				ng, err := mg.analyzeInconsistency(ctx)
				if err != nil {
					mg.log.Warn("transitive-unit learning failed", zap.Error(err))
				} else {
					mg.inconsistencyNogood = ng
				}
			}
			mg.firstCall = false
			return nil, nil
		}
		mg.firstCall = false

		ok, err := mg.finalCompatibilityCheck(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		ok, err = mg.isModel(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if mg.optimizing {
			mg.currentOptimum = mg.CostOf(candidate)
		}
		return mg.stripAuxiliaries(candidate), nil
	}
}
