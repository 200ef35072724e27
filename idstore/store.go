package idstore

import (
	"fmt"
	"strconv"
	"sync"
)

// Store is the IdStore of spec.md §4.1: five append-only arenas (terms,
// ground atoms, nonground atoms, rules, external atoms) plus the aux_symbol
// namespace. Terms, ground atoms and nonground atoms have a secondary hash
// index from printable content to id; rules and external atoms have none,
// so every InternRule/InternExternalAtom call appends a fresh entry. Ids are
// never recycled for the lifetime of a Store.
//
// Invariant: for terms and atoms, distinct ids imply distinct printable
// content; id equality implies structural equality. This is enforced by
// always probing the content index before appending to those arenas. Two
// rule ids or two external-atom ids may carry equal content.
type Store struct {
	mu sync.RWMutex

	terms     []Term
	termIndex map[string]Id

	groundAtoms  []*OrdinaryAtom
	groundIndex  map[string]Id
	nongroundAtm []*OrdinaryAtom
	nongroundIdx map[string]Id

	rules []*Rule

	externalAtoms []*ExternalAtom

	aux map[auxKey]Id
	// auxAddrKind maps an aux symbol's address (see auxAddrBase) back to its
	// Kind, so a raw bitset address can be turned back into a full Id without
	// guessing. Populated alongside aux in AuxSymbol.
	auxAddrKind map[uint64]Kind
}

// AuxAddrBase is the first address ever handed to an aux symbol. Ground
// atoms are addressed from 0 by InternAtom; aux symbols are addressed from
// this disjoint band instead of their own from-zero counter, so a ground
// atom and an aux/replacement atom can never land on the same bit of a
// ground.Interpretation (which keys solely on Address, discarding Kind).
// Exported so ground.Interpretation can route a bit into the right
// independently zero-based word array without guessing the threshold.
const AuxAddrBase = uint64(1) << 40

type auxKey struct {
	class byte
	arg   Id
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		termIndex:    make(map[string]Id),
		groundIndex:  make(map[string]Id),
		nongroundIdx: make(map[string]Id),
		aux:          make(map[auxKey]Id),
		auxAddrKind:  make(map[uint64]Kind),
	}
}

// InternInteger returns the id for an integer term. Integers bypass
// interning: their value lives directly in the address field (spec.md §3).
func (s *Store) InternInteger(v int64) Id {
	if v < 0 {
		// Negative integers are rare in ground ASP (arithmetic normally
		// stays within maxint); fold the sign into the low bit so the
		// value still fits the address field without a table lookup.
		return newId(KindTerm|TermInteger, (uint64(-v)<<1)|1)
	}
	return newId(KindTerm|TermInteger, uint64(v)<<1)
}

// IsInteger reports whether id names an integer term, and if so its value.
func IsInteger(id Id) (int64, bool) {
	if id.Kind() != KindTerm|TermInteger {
		return 0, false
	}
	addr := id.Address()
	if addr&1 != 0 {
		return -int64(addr >> 1), true
	}
	return int64(addr >> 1), true
}

// InternConstant interns a constant term, optionally quoted.
func (s *Store) InternConstant(name string, quoted bool) Id {
	t := Term{Kind: TermConstant, Constant: name, Quoted: quoted}
	return s.internTerm(t)
}

// InternVariable interns a variable term.
func (s *Store) InternVariable(name string, anonymous bool) Id {
	t := Term{Kind: TermVariable, VarName: name, Anonymous: anonymous}
	return s.internTerm(t)
}

// InternBuiltin interns a builtin operator term.
func (s *Store) InternBuiltin(op BuiltinOp) Id {
	return s.internTerm(Term{Kind: TermBuiltin, Op: op})
}

// InternNested interns a nested term: a function symbol applied to arguments.
func (s *Store) InternNested(functor Id, args []Id) Id {
	return s.internTerm(Term{Kind: TermNested, Functor: functor, Args: append([]Id(nil), args...)})
}

func (s *Store) internTerm(t Term) Id {
	key := t.repr(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.termIndex[key]; ok {
		return id
	}
	idx := uint64(len(s.terms))
	s.terms = append(s.terms, t)
	id := newId(KindTerm|t.Kind, idx)
	s.termIndex[key] = id
	return id
}

// InternAtom interns an ordinary atom. ground must match the actual
// groundness of predicate+args (every arg ground and predicate a constant).
func (s *Store) InternAtom(predicate Id, args []Id, ground bool) Id {
	a := &OrdinaryAtom{Predicate: predicate, Args: append([]Id(nil), args...), Ground: ground}
	key := a.repr(s)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ground {
		if id, ok := s.groundIndex[key]; ok {
			return id
		}
		idx := uint64(len(s.groundAtoms))
		s.groundAtoms = append(s.groundAtoms, a)
		id := newId(KindOrdinaryAtomGround, idx)
		s.groundIndex[key] = id
		return id
	}
	if id, ok := s.nongroundIdx[key]; ok {
		return id
	}
	idx := uint64(len(s.nongroundAtm))
	s.nongroundAtm = append(s.nongroundAtm, a)
	id := newId(KindOrdinaryAtomNonground, idx)
	s.nongroundIdx[key] = id
	return id
}

// InternRule interns a rule, returning a fresh id (rules are not
// content-deduplicated: two syntactically identical rules from different
// source locations are allowed to coexist, matching dlvhex2's IDB model).
func (s *Store) InternRule(r *Rule) Id {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := uint64(len(s.rules))
	s.rules = append(s.rules, r)
	kind := KindRule | r.Subkind
	if r.HasDisjunction() {
		kind |= RuleHasDisjunction
	}
	return newId(kind, idx)
}

// InternExternalAtom interns an external atom, returning a fresh id.
func (s *Store) InternExternalAtom(ea *ExternalAtom) Id {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := uint64(len(s.externalAtoms))
	s.externalAtoms = append(s.externalAtoms, ea)
	return newId(KindExternalAtom, idx)
}

// AuxSymbol implements spec.md §4.1 aux_symbol: a deterministic mapping from
// a (type_char, payload) pair into a reserved, stable auxiliary id.
func (s *Store) AuxSymbol(class byte, payload Id) Id {
	key := auxKey{class, payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.aux[key]; ok {
		return id
	}
	sub, ok := auxClassKind(class)
	if !ok {
		panic(fmt.Sprintf("idstore: unknown aux class %q", class))
	}
	addr := AuxAddrBase + uint64(len(s.aux))
	id := newId(KindAux|sub, addr)
	s.aux[key] = id
	s.auxAddrKind[addr] = KindAux | sub
	return id
}

func auxClassKind(class byte) (Kind, bool) {
	switch class {
	case 'r':
		return AuxReplacementPos, true
	case 'n':
		return AuxReplacementNeg, true
	case 'i':
		return AuxInput, true
	case 'F':
		return AuxInlineF, true
	case 'x':
		return AuxInlineX, true
	case 'e':
		return AuxExplanation, true
	case 'm':
		return AuxFLPMarker, true
	case 'b':
		return AuxRuleBody, true
	default:
		return 0, false
	}
}

// LookupTerm returns the term behind id. Panics on Fail or a non-term id;
// callers that accept arbitrary ids should check IsTerm/IsInteger first.
func (s *Store) LookupTerm(id Id) Term {
	if iv, ok := IsInteger(id); ok {
		return Term{Kind: TermInteger, Constant: strconv.FormatInt(iv, 10)}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terms[id.Address()]
}

// LookupAtom returns the ordinary atom behind id.
func (s *Store) LookupAtom(id Id) *OrdinaryAtom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id.Kind() == KindOrdinaryAtomGround {
		return s.groundAtoms[id.Address()]
	}
	return s.nongroundAtm[id.Address()]
}

// LookupRule returns the rule behind id.
func (s *Store) LookupRule(id Id) *Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules[id.Address()]
}

// LookupExternalAtom returns the external atom behind id.
func (s *Store) LookupExternalAtom(id Id) *ExternalAtom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.externalAtoms[id.Address()]
}

// GroundAtomCount returns the number of interned ground atoms. The oracle
// cache key's program-mask-size component is built from
// PredicateGroundAtomCount instead.
func (s *Store) GroundAtomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groundAtoms)
}

// PredicateGroundAtomCount returns the number of interned ground atoms whose
// predicate is pred; used by the oracle cache key to size the input-predicate
// component of programMaskSize (spec.md §9).
func (s *Store) PredicateGroundAtomCount(pred Id) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.groundAtoms {
		if a.Predicate == pred {
			n++
		}
	}
	return n
}

// IdAtAddress reconstructs the full Id that owns a raw bitset address, the
// kind-aware counterpart to GroundAtomId. A ground.Interpretation bit can
// belong to either the ground-atom arena (addresses below AuxAddrBase) or an
// aux/replacement symbol (addresses at or above it); any caller iterating a
// bitset that may contain both kinds must use this instead of assuming
// KindOrdinaryAtomGround. Panics if addr names an aux address never minted by
// AuxSymbol on this Store.
func (s *Store) IdAtAddress(addr uint64) Id {
	if addr < AuxAddrBase {
		return newId(KindOrdinaryAtomGround, addr)
	}
	s.mu.RLock()
	kind, ok := s.auxAddrKind[addr]
	s.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("idstore: no aux symbol at address %d", addr))
	}
	return newId(kind, addr)
}

// Print returns the canonical printable form of any id: term, atom, rule or
// aux symbol. It never panics on Fail, returning "<fail>" instead.
func (s *Store) Print(id Id) string {
	if id.IsFail() {
		return "<fail>"
	}
	if iv, ok := IsInteger(id); ok {
		return strconv.FormatInt(iv, 10)
	}
	if id.IsTerm() {
		s.mu.RLock()
		t := s.terms[id.Address()]
		s.mu.RUnlock()
		return t.repr(s)
	}
	if id.IsOrdinaryAtom() {
		a := s.LookupAtom(id)
		naf := ""
		if id.IsNaf() {
			naf = "not "
		}
		return naf + a.repr(s)
	}
	if id.IsAux() {
		return fmt.Sprintf("aux_%s_%d", id.Kind(), id.Address())
	}
	return id.String()
}
