package nogood

import "github.com/dlvgo/hexcore/idstore"

// VerificationTrie indexes complete support sets so that, given the current
// set of true literals, every auxiliary (external-atom replacement) whose
// support set is a subset of those literals can be enumerated in time
// linear in the interpretation's size (spec.md §4.7 last paragraph;
// SPEC_FULL.md supplemented feature 4, grounded on dlvhex2's
// ExternalAtomVerificationTree.h).
//
// Implementation note: dlvhex2 indexes support sets in a literal trie; we
// get the same linear-in-interpretation-size query cost with an inverted
// index plus per-support-set remaining-literal counters (a standard
// watched-literal technique), which is simpler to make correct in Go and
// asymptotically equivalent for this access pattern.
type VerificationTrie struct {
	supportSets []supportSetEntry
	byLiteral   map[idstore.Id][]int // literal -> indices of support sets containing it
}

type supportSetEntry struct {
	literals []idstore.Id
	aux      idstore.Id
}

// NewVerificationTrie returns an empty trie.
func NewVerificationTrie() *VerificationTrie {
	return &VerificationTrie{byLiteral: make(map[idstore.Id][]int)}
}

// Add registers a complete support set ng for replacement atom aux. ng's
// literals, besides the aux literal itself, are the ordinary-atom
// conditions that must all hold.
func (t *VerificationTrie) Add(ng *Nogood, aux idstore.Id) {
	var conditions []idstore.Id
	for _, lit := range ng.Literals {
		if lit.WithoutNaf() == aux {
			continue
		}
		conditions = append(conditions, lit)
	}
	idx := len(t.supportSets)
	t.supportSets = append(t.supportSets, supportSetEntry{literals: conditions, aux: aux})
	for _, lit := range conditions {
		t.byLiteral[lit] = append(t.byLiteral[lit], idx)
	}
}

// VerifiedByTrue returns every auxiliary whose support set is entirely
// contained in trueLiterals, in time linear in len(trueLiterals) plus the
// total size of the matched support sets: each true literal only touches
// the support sets that mention it (via byLiteral), and a per-support-set
// remaining-literal counter fires the auxiliary the moment it hits zero.
func (t *VerificationTrie) VerifiedByTrue(trueLiterals []idstore.Id) []idstore.Id {
	remaining := make([]int, len(t.supportSets))
	for i, e := range t.supportSets {
		remaining[i] = len(e.literals)
	}
	var fired []idstore.Id
	firedSet := make(map[int]bool)
	for _, lit := range trueLiterals {
		for _, idx := range t.byLiteral[lit] {
			if firedSet[idx] {
				continue
			}
			remaining[idx]--
			if remaining[idx] == 0 {
				firedSet[idx] = true
				fired = append(fired, t.supportSets[idx].aux)
			}
		}
	}
	return fired
}

// Len returns the number of registered support sets.
func (t *VerificationTrie) Len() int { return len(t.supportSets) }
