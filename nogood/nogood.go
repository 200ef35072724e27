// Package nogood implements spec.md's Nogood / NogoodStore / NogoodGrounder
// and the external-atom verification trie that backs support-set-driven
// learning (§4.7, SPEC_FULL.md supplemented feature 4).
package nogood

import (
	"sort"
	"strings"

	"github.com/dlvgo/hexcore/idstore"
)

// Nogood is a deduplicated set of signed ground atom ids: "not all of these
// simultaneously" (spec.md §3). Signed literals are represented with
// idstore.Id's naf property bit: WithNaf() marks a negative literal.
//
// A support set is a Nogood containing exactly one positive-or-negative
// external-atom-replacement literal plus ordinary-atom literals.
type Nogood struct {
	Literals []idstore.Id // insertion order preserved, see SPEC_FULL.md's canonical text form
}

// New builds a Nogood from literals, deduplicating repeats while keeping
// first-seen order.
func New(literals ...idstore.Id) *Nogood {
	seen := make(map[idstore.Id]bool, len(literals))
	out := make([]idstore.Id, 0, len(literals))
	for _, l := range literals {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return &Nogood{Literals: out}
}

// Key returns a canonical, order-independent identity for content
// deduplication in a NogoodStore: two nogoods with the same literal set
// (regardless of insertion order) share a Key.
func (n *Nogood) Key() string {
	ids := append([]idstore.Id(nil), n.Literals...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(id.String())
	}
	return b.String()
}

// Violated reports whether every literal in n holds under truth (i.e. the
// nogood is currently violated and the interpretation it came from must be
// rejected). truth reports, for a ground atom id, whether it is currently
// true and whether it is assigned at all; an unassigned atom makes Violated
// report false.
func (n *Nogood) Violated(truth func(atom idstore.Id) (isTrue, isAssigned bool)) bool {
	for _, lit := range n.Literals {
		atom := lit.WithoutNaf()
		isTrue, isAssigned := truth(atom)
		if !isAssigned {
			return false
		}
		want := !lit.IsNaf()
		if isTrue != want {
			return false
		}
	}
	return true
}

// IsSupportSet reports whether n has exactly one literal over an
// external-atom replacement id; the kind of the other literals is not
// checked. isReplacement identifies which literals (by their unsigned atom
// id) are replacement auxiliaries.
func (n *Nogood) IsSupportSet(isReplacement func(atom idstore.Id) bool) bool {
	count := 0
	for _, lit := range n.Literals {
		if isReplacement(lit.WithoutNaf()) {
			count++
		}
	}
	return count == 1
}

// String renders the canonical text form `{±p(a,b),…}` of SPEC_FULL.md's
// supplemented feature 2 (grounded on dlvhex2's NogoodGrounder.h /
// AnnotatedGroundProgram.cpp debug dump format): insertion order, a leading
// '-' for negative literals. Each atom is written as its raw id text
// (idstore.Id.String), not its name; Render prints atom names.
func (n *Nogood) String() string {
	var printer func(idstore.Id) string
	return n.renderWith(printer)
}

// renderWith is exposed separately from String so callers that have a
// *idstore.Store can get atom names instead of raw ids; String alone falls
// back to raw id text when no printer is supplied.
func (n *Nogood) renderWith(printer func(idstore.Id) string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, lit := range n.Literals {
		if i > 0 {
			b.WriteByte(',')
		}
		if lit.IsNaf() {
			b.WriteByte('-')
		}
		atom := lit.WithoutNaf()
		if printer != nil {
			b.WriteString(printer(atom))
		} else {
			b.WriteString(atom.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Render is String but using store to print atom names, matching §6's
// debug-dump option.
func (n *Nogood) Render(store interface{ Print(idstore.Id) string }) string {
	return n.renderWith(store.Print)
}
