package idstore

// OrdinaryAtom is the tuple (predicate, arg1, …, argk) of term ids, plus a
// cached printable form (spec.md §3). Ground and nonground atoms share the
// id space but are stored in separate arenas (§4.1).
type OrdinaryAtom struct {
	Predicate Id
	Args      []Id
	Ground    bool
	text      string
}

func (a *OrdinaryAtom) repr(s *Store) string {
	if a.text != "" {
		return a.text
	}
	b := s.Print(a.Predicate)
	if len(a.Args) > 0 {
		b += "("
		for i, arg := range a.Args {
			if i > 0 {
				b += ","
			}
			b += s.Print(arg)
		}
		b += ")"
	}
	a.text = b
	return b
}

// ExternalAtomProperties carries the per-parameter and per-atom flags of
// spec.md §3 "ExternalAtomProperties". Properties attached to a specific
// occurrence override global plugin defaults by set union.
type ExternalAtomProperties struct {
	Monotonic                  map[int]bool
	Antimonotonic              map[int]bool
	PredicateNameIrrelevant    map[int]bool
	FiniteOutputDomain         map[int]bool
	RelativeFiniteOutputDomain map[[2]int]bool
	WellorderingStrlen         map[[2]int]bool
	WellorderingNatural        map[[2]int]bool

	Functional                 bool
	FunctionalStartIndex       int
	AtomLevelLinear            bool
	TupleLevelLinear           bool
	UsesEnvironment            bool
	FiniteFiber                bool
	ProvidesSupportSets        bool
	CompletePositiveSupportSet bool
	CompleteNegativeSupportSet bool
	VariableOutputArity        bool
	CaresAboutAssigned         bool
	CaresAboutChanged          bool
}

// Union merges other into p in place, following the "never contradict" rule
// of spec.md §3: boolean flags OR together, per-index sets union.
func (p *ExternalAtomProperties) Union(other ExternalAtomProperties) {
	p.Functional = p.Functional || other.Functional
	if other.Functional && other.FunctionalStartIndex > p.FunctionalStartIndex {
		p.FunctionalStartIndex = other.FunctionalStartIndex
	}
	p.AtomLevelLinear = p.AtomLevelLinear || other.AtomLevelLinear
	p.TupleLevelLinear = p.TupleLevelLinear || other.TupleLevelLinear
	p.UsesEnvironment = p.UsesEnvironment || other.UsesEnvironment
	p.FiniteFiber = p.FiniteFiber || other.FiniteFiber
	p.ProvidesSupportSets = p.ProvidesSupportSets || other.ProvidesSupportSets
	p.CompletePositiveSupportSet = p.CompletePositiveSupportSet || other.CompletePositiveSupportSet
	p.CompleteNegativeSupportSet = p.CompleteNegativeSupportSet || other.CompleteNegativeSupportSet
	p.VariableOutputArity = p.VariableOutputArity || other.VariableOutputArity
	p.CaresAboutAssigned = p.CaresAboutAssigned || other.CaresAboutAssigned
	p.CaresAboutChanged = p.CaresAboutChanged || other.CaresAboutChanged

	mergeIntSet(&p.Monotonic, other.Monotonic)
	mergeIntSet(&p.Antimonotonic, other.Antimonotonic)
	mergeIntSet(&p.PredicateNameIrrelevant, other.PredicateNameIrrelevant)
	mergeIntSet(&p.FiniteOutputDomain, other.FiniteOutputDomain)
	mergePairSet(&p.RelativeFiniteOutputDomain, other.RelativeFiniteOutputDomain)
	mergePairSet(&p.WellorderingStrlen, other.WellorderingStrlen)
	mergePairSet(&p.WellorderingNatural, other.WellorderingNatural)
}

func mergeIntSet(dst *map[int]bool, src map[int]bool) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[int]bool, len(src))
	}
	for k, v := range src {
		(*dst)[k] = (*dst)[k] || v
	}
}

func mergePairSet(dst *map[[2]int]bool, src map[[2]int]bool) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[[2]int]bool, len(src))
	}
	for k, v := range src {
		(*dst)[k] = (*dst)[k] || v
	}
}

// ExternalAtom is `&g[t1,…,tk](u1,…,ul)` (spec.md §3). Input and Output are
// term id tuples; AuxInputPredicate and AuxInputMapping describe the
// optional auxiliary input predicate used when the oracle is parameterised
// by a whole predicate extension rather than fixed constants.
type ExternalAtom struct {
	Oracle            Id // predicate id of the oracle
	Input             []Id
	Output            []Id
	AuxInputPredicate Id // Fail if none
	AuxInputMapping   []int
	Properties        ExternalAtomProperties

	// Derived, filled in by AnnotatedGround construction (ground package);
	// kept here because they are properties of the occurrence, not of a
	// particular component's analysis.
	PredicateInputMask uint64 // opaque handle to a ground.Interpretation, set by ground package
	AuxInputMask       uint64
}

// Rule is spec.md §3 "Rule": head disjuncts, body literals, and the
// optional extensions for choice, weight and weak-constraint rules.
type Rule struct {
	Subkind Kind // RuleRegular, RuleConstraint, RuleWeak, RuleWeight

	Head      []Id // ordinary-atom ids, disjunction
	HeadGuard *HeadGuard
	Body      []Id // literal ids (atom ids, optionally WithNaf, or external-atom/builtin ids)

	// RuleWeight
	BodyWeights []int
	WeightBound int

	// RuleWeak
	WeakWeight int
	WeakLevel  int
}

// HeadGuard supports variable-length disjunction (e.g. cardinality-bounded
// choice over a head predicate).
type HeadGuard struct {
	Lower, Upper int // Upper < 0 means unbounded
}

// HasDisjunction reports whether the rule head has more than one atom.
func (r *Rule) HasDisjunction() bool { return len(r.Head) > 1 }
