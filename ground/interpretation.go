// Package ground implements the ground-program data model of spec.md §3–§4.3:
// Interpretation (dense bitset), OrdinaryAtom/Rule/ExternalAtom occurrences
// already defined in idstore, and the AnnotatedGround construction that
// derives the atom-dependency graph, its SCC decomposition, and per-SCC
// head-cycle/external-cycle flags.
package ground

import (
	"math/bits"
	"strings"

	"github.com/dlvgo/hexcore/idstore"
)

const wordBits = 64

// Interpretation is a dense bitset over ground-atom and aux/replacement-atom
// addresses (spec.md §3, §4.2). Ground atoms are addressed from 0 and aux
// atoms from idstore.AuxAddrBase (see idstore.Store), so a single words
// array indexed by raw address would have to span the whole gap between the
// two bands; words and auxWords keep the two classes in separate arrays,
// each dense relative to its own zero-based offset. It carries a
// reference to the Store so it can print itself, and is shared by
// reference: callers Clone before mutating when independence is required.
type Interpretation struct {
	store    *idstore.Store
	words    []uint64 // ground ordinary atoms, indexed by Address
	auxWords []uint64 // aux/replacement atoms, indexed by Address-idstore.AuxAddrBase
}

// NewInterpretation returns an empty interpretation bound to store.
func NewInterpretation(store *idstore.Store) *Interpretation {
	return &Interpretation{store: store}
}

func ensure(words []uint64, word int) []uint64 {
	if word >= len(words) {
		grown := make([]uint64, word+1)
		copy(grown, words)
		return grown
	}
	return words
}

// slot returns the word array to use and the bit address within it for id.
func (in *Interpretation) slot(id idstore.Id) (aux bool, addr int) {
	a := id.Address()
	if a >= idstore.AuxAddrBase {
		return true, int(a - idstore.AuxAddrBase)
	}
	return false, int(a)
}

// Set marks atom id as true. id must be a ground ordinary atom or an
// aux/replacement atom.
func (in *Interpretation) Set(id idstore.Id) {
	aux, addr := in.slot(id)
	if aux {
		in.auxWords = ensure(in.auxWords, addr/wordBits)
		in.auxWords[addr/wordBits] |= 1 << uint(addr%wordBits)
		return
	}
	in.words = ensure(in.words, addr/wordBits)
	in.words[addr/wordBits] |= 1 << uint(addr%wordBits)
}

// Clear marks atom id as false.
func (in *Interpretation) Clear(id idstore.Id) {
	aux, addr := in.slot(id)
	words := in.words
	if aux {
		words = in.auxWords
	}
	if addr/wordBits >= len(words) {
		return
	}
	words[addr/wordBits] &^= 1 << uint(addr%wordBits)
}

// Test reports whether atom id is true in this interpretation.
func (in *Interpretation) Test(id idstore.Id) bool {
	aux, addr := in.slot(id)
	words := in.words
	if aux {
		words = in.auxWords
	}
	w := addr / wordBits
	if w >= len(words) {
		return false
	}
	return words[w]&(1<<uint(addr%wordBits)) != 0
}

// Count returns the number of true bits.
func (in *Interpretation) Count() int {
	n := 0
	for _, w := range in.words {
		n += bits.OnesCount64(w)
	}
	for _, w := range in.auxWords {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clone returns an independent copy.
func (in *Interpretation) Clone() *Interpretation {
	words := make([]uint64, len(in.words))
	copy(words, in.words)
	auxWords := make([]uint64, len(in.auxWords))
	copy(auxWords, in.auxWords)
	return &Interpretation{store: in.store, words: words, auxWords: auxWords}
}

func alignedPair(a, b []uint64) (ra, rb []uint64) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	ra = make([]uint64, n)
	copy(ra, a)
	rb = make([]uint64, n)
	copy(rb, b)
	return
}

// UnionWith mutates in to be the union of in and other.
func (in *Interpretation) UnionWith(other *Interpretation) {
	a, b := alignedPair(in.words, other.words)
	for i := range a {
		a[i] |= b[i]
	}
	in.words = a
	a, b = alignedPair(in.auxWords, other.auxWords)
	for i := range a {
		a[i] |= b[i]
	}
	in.auxWords = a
}

// IntersectWith mutates in to be the intersection of in and other.
func (in *Interpretation) IntersectWith(other *Interpretation) {
	a, b := alignedPair(in.words, other.words)
	for i := range a {
		a[i] &= b[i]
	}
	in.words = a
	a, b = alignedPair(in.auxWords, other.auxWords)
	for i := range a {
		a[i] &= b[i]
	}
	in.auxWords = a
}

// Subtract mutates in to remove every bit set in other.
func (in *Interpretation) Subtract(other *Interpretation) {
	a, b := alignedPair(in.words, other.words)
	for i := range a {
		a[i] &^= b[i]
	}
	in.words = a
	a, b = alignedPair(in.auxWords, other.auxWords)
	for i := range a {
		a[i] &^= b[i]
	}
	in.auxWords = a
}

// Equals reports bitwise equality, ignoring trailing all-zero words.
func (in *Interpretation) Equals(other *Interpretation) bool {
	a, b := alignedPair(in.words, other.words)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	a, b = alignedPair(in.auxWords, other.auxWords)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsSubsetOf reports whether every bit set in in is also set in other.
func (in *Interpretation) IsSubsetOf(other *Interpretation) bool {
	a, b := alignedPair(in.words, other.words)
	for i := range a {
		if a[i]&^b[i] != 0 {
			return false
		}
	}
	a, b = alignedPair(in.auxWords, other.auxWords)
	for i := range a {
		if a[i]&^b[i] != 0 {
			return false
		}
	}
	return true
}

// IterTrue returns a lazy, restartable iterator over set-bit addresses in
// ascending order: every ground address first, then every aux address
// (offset back into the shared Address space by idstore.AuxAddrBase),
// skipping runs of zero words in each.
func (in *Interpretation) IterTrue() *TrueIterator {
	return &TrueIterator{in: in}
}

// TrueIterator walks the set bits of an Interpretation in ascending order.
type TrueIterator struct {
	in      *Interpretation
	word    int
	bitmask uint64
	started bool
	inAux   bool
}

func (it *TrueIterator) words() []uint64 {
	if it.inAux {
		return it.in.auxWords
	}
	return it.in.words
}

// Next returns the next set-bit address, or ok=false when exhausted. An
// address >= idstore.AuxAddrBase names an aux/replacement atom; use
// idstore.Store.IdAtAddress to reconstruct the full id, never
// idstore.GroundAtomId, on any bitset that may contain both.
func (it *TrueIterator) Next() (addr int, ok bool) {
	if !it.started {
		it.started = true
		it.word = 0
		if it.word < len(it.words()) {
			it.bitmask = it.words()[it.word]
		}
	}
	for {
		words := it.words()
		for it.word < len(words) {
			if it.bitmask == 0 {
				it.word++
				if it.word < len(words) {
					it.bitmask = words[it.word]
				}
				continue
			}
			tz := bits.TrailingZeros64(it.bitmask)
			base := it.word * wordBits
			if it.inAux {
				base += int(idstore.AuxAddrBase)
			}
			addr = base + tz
			it.bitmask &^= 1 << uint(tz)
			return addr, true
		}
		if it.inAux {
			return 0, false
		}
		it.inAux = true
		it.word = 0
		if it.word < len(it.words()) {
			it.bitmask = it.words()[it.word]
		}
	}
}

// Addresses materializes all set-bit addresses as a slice (convenience for
// callers that cannot use the lazy iterator, e.g. sorting or hashing).
func (in *Interpretation) Addresses() []int {
	var out []int
	it := in.IterTrue()
	for {
		a, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, a)
	}
	return out
}

// String renders the interpretation as a comma-separated set of ground
// atoms and aux/replacement symbols in braces, the printable form mandated
// by spec.md §6.
func (in *Interpretation) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	it := in.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		id := in.store.IdAtAddress(uint64(addr))
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(in.store.Print(id))
	}
	b.WriteByte('}')
	return b.String()
}
