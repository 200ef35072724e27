// Package idstore interns terms, ordinary atoms, rules and external atoms
// into a single tagged-variant id space (see spec.md §3 "Id" and §4.1
// "IdStore"). All cross-object references in hexcore are Id handles into
// the arenas owned by a Store; the objects themselves form no cycles.
package idstore

import "fmt"

// Id is a 64-bit tagged handle: the high bits carry a Kind (main category
// plus subcategory and property bits), the low bits carry an Address (an
// index into the store's arena for that kind, or the literal integer value
// for integer terms, which bypass interning).
type Id uint64

const (
	addressBits = 48
	addressMask = (uint64(1) << addressBits) - 1
)

// Fail is the distinguished id denoting "none". It is never returned by a
// successful intern or lookup.
const Fail Id = ^Id(0)

// Kind is the tag half of an Id. It packs a main category, a subcategory and
// a handful of independent property bits so dispatch in the core happens by
// a single integer compare/mask rather than by an interface type switch.
type Kind uint16

// Main categories.
const (
	KindTerm Kind = (iota + 1) << 12
	KindOrdinaryAtomGround
	KindOrdinaryAtomNonground
	KindExternalAtom
	KindRule
	KindAux
)

// Term subcategories (OR'd onto KindTerm).
const (
	TermConstant Kind = iota << 8
	TermInteger
	TermVariable
	TermBuiltin
	TermNested
)

// Property bits, valid on atom/literal ids.
const (
	PropStrongNegation Kind = 1 << 0 // classical negation marker on an atom
	PropDefaultNegated Kind = 1 << 1 // naf on a literal
)

// Auxiliary subtypes, used with KindAux (spec.md §4.1 aux_symbol).
const (
	AuxReplacementPos  Kind = iota << 4 // 'r' positive external-atom replacement
	AuxReplacementNeg                  // 'n' negative external-atom replacement
	AuxInput                           // 'i' external-atom input auxiliary
	AuxInlineF                         // 'F' inlining helper
	AuxInlineX                         // 'x' inlining helper
	AuxExplanation                     // 'e' explanation marker (§4.9)
	AuxFLPMarker                       // FLP-reduct marker constant
	AuxRuleBody                        // reified rule-body atom (internal solver backend)
)

// Rule subkinds, valid when Kind's main category is KindRule.
const (
	RuleRegular Kind = iota << 4
	RuleConstraint
	RuleWeak
	RuleWeight
)

// Rule flag bits.
const (
	RuleHasDisjunction  Kind = 1 << 8
	RuleHasExternalAtom Kind = 1 << 9
)

func mainCategory(k Kind) Kind { return k & 0xF000 }

func newId(k Kind, addr uint64) Id {
	if addr > addressMask {
		panic(fmt.Sprintf("idstore: address %d overflows %d-bit address space", addr, addressBits))
	}
	return Id(uint64(k)<<addressBits | addr)
}

// Kind extracts the tag half of the id.
func (id Id) Kind() Kind { return Kind(uint64(id) >> addressBits) }

// Address extracts the payload half of the id: an arena index, or (for
// KindTerm|TermInteger ids) the integer value itself.
func (id Id) Address() uint64 { return uint64(id) & addressMask }

// GroundAtomId reconstructs the id of a ground ordinary atom from its arena
// address. Used by the ground package to translate bitset positions (which
// are addresses, not ids) back into ids for printing and lookup.
func GroundAtomId(addr int) Id { return newId(KindOrdinaryAtomGround, uint64(addr)) }

// IsFail reports whether id is the distinguished "none" value.
func (id Id) IsFail() bool { return id == Fail }

// IsTerm reports whether id names a term of any subcategory.
func (id Id) IsTerm() bool { return mainCategory(id.Kind()) == KindTerm }

// IsOrdinaryAtom reports whether id names an ordinary ground or nonground atom.
func (id Id) IsOrdinaryAtom() bool {
	m := mainCategory(id.Kind())
	return m == KindOrdinaryAtomGround || m == KindOrdinaryAtomNonground
}

// IsGround reports whether id names a ground ordinary atom.
func (id Id) IsGround() bool { return mainCategory(id.Kind()) == KindOrdinaryAtomGround }

// IsExternalAtom reports whether id names an external atom.
func (id Id) IsExternalAtom() bool { return mainCategory(id.Kind()) == KindExternalAtom }

// IsRule reports whether id names a rule.
func (id Id) IsRule() bool { return mainCategory(id.Kind()) == KindRule }

// IsAux reports whether id names an auxiliary constant minted by aux_symbol.
func (id Id) IsAux() bool { return mainCategory(id.Kind()) == KindAux }

// IsReplacementAtom reports whether id is an external-atom replacement
// auxiliary ('r' positive or 'n' negative, spec.md §4.1 aux_symbol). Rule
// bodies carry these in place of the external atom they replace (spec.md
// §4.6 construction step 2); callers that walk body literals looking for
// atoms to reify or test truth of must treat them like ordinary atoms.
func (id Id) IsReplacementAtom() bool {
	k := id.Kind()
	return k == KindAux|AuxReplacementPos || k == KindAux|AuxReplacementNeg
}

// IsNaf reports whether the PropDefaultNegated bit is set.
func (id Id) IsNaf() bool { return id.Kind()&PropDefaultNegated != 0 }

// WithNaf returns id with the default-negation property bit set.
func (id Id) WithNaf() Id { return Id(uint64(id) | uint64(PropDefaultNegated)<<addressBits) }

// WithoutNaf returns id with the default-negation property bit cleared.
func (id Id) WithoutNaf() Id { return Id(uint64(id) &^ (uint64(PropDefaultNegated) << addressBits)) }

func (id Id) String() string {
	if id.IsFail() {
		return "<fail>"
	}
	return fmt.Sprintf("%s#%d", id.Kind(), id.Address())
}

func (k Kind) String() string {
	switch mainCategory(k) {
	case KindTerm:
		return "term"
	case KindOrdinaryAtomGround:
		return "atom"
	case KindOrdinaryAtomNonground:
		return "natom"
	case KindExternalAtom:
		return "ext"
	case KindRule:
		return "rule"
	case KindAux:
		return "aux"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}
