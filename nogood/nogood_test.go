package nogood_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
)

func TestNogoodKeyIgnoresOrder(t *testing.T) {
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)

	n1 := nogood.New(a, b.WithNaf())
	n2 := nogood.New(b.WithNaf(), a)
	assert.Equal(t, n1.Key(), n2.Key())
}

func TestNogoodStoreDeduplicates(t *testing.T) {
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	store := nogood.NewStore()

	assert.True(t, store.AddGround(nogood.New(a)))
	assert.False(t, store.AddGround(nogood.New(a)))
	assert.Equal(t, 1, store.Len())
}

func TestNogoodStoreEvictsUnderBudget(t *testing.T) {
	s := idstore.New()
	store := nogood.NewStore()
	store.Budget = 2

	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	c := s.InternAtom(s.InternConstant("c", false), nil, true)

	store.AddGround(nogood.New(a))
	store.AddGround(nogood.New(b))
	store.AddGround(nogood.New(c))

	assert.LessOrEqual(t, store.Len(), 2)
	assert.Equal(t, 1, store.Evicted())
}

func TestNogoodViolatedRequiresFullAssignment(t *testing.T) {
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	ng := nogood.New(a, b.WithNaf())

	truth := map[idstore.Id]bool{a: true} // b unassigned
	violated := ng.Violated(func(atom idstore.Id) (bool, bool) {
		v, ok := truth[atom]
		return v, ok
	})
	assert.False(t, violated, "an unassigned literal cannot yet violate a nogood")

	truth[b] = false
	violated = ng.Violated(func(atom idstore.Id) (bool, bool) {
		v, ok := truth[atom]
		return v, ok
	})
	assert.True(t, violated, "a true and not-b false means {a, not b} is violated")
}

func TestVerificationTrieFiresOnCompleteSupport(t *testing.T) {
	s := idstore.New()
	p := s.InternAtom(s.InternConstant("p", false), nil, true)
	q := s.InternAtom(s.InternConstant("q", false), nil, true)
	aux := s.InternAtom(s.InternConstant("r_mem", false), nil, true)

	trie := nogood.NewVerificationTrie()
	trie.Add(nogood.New(p, q, aux), aux)
	require.Equal(t, 1, trie.Len())

	fired := trie.VerifiedByTrue([]idstore.Id{p})
	assert.Empty(t, fired, "partial support must not fire")

	fired = trie.VerifiedByTrue([]idstore.Id{p, q})
	require.Len(t, fired, 1)
	assert.Equal(t, aux, fired[0])
}
