package idstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/idstore"
)

func TestInternTermIdempotent(t *testing.T) {
	s := idstore.New()
	a1 := s.InternConstant("a", false)
	a2 := s.InternConstant("a", false)
	assert.Equal(t, a1, a2, "idempotence of interning: intern_term(s) == intern_term(s)")

	b := s.InternConstant("b", false)
	assert.NotEqual(t, a1, b)
}

func TestInternIntegerBypassesArena(t *testing.T) {
	s := idstore.New()
	pos := s.InternInteger(42)
	neg := s.InternInteger(-7)

	v, ok := idstore.IsInteger(pos)
	require.True(t, ok)
	assert.EqualValues(t, 42, v)

	v, ok = idstore.IsInteger(neg)
	require.True(t, ok)
	assert.EqualValues(t, -7, v)
}

func TestInternAtomGroundVsNonground(t *testing.T) {
	s := idstore.New()
	p := s.InternConstant("p", false)
	a := s.InternConstant("a", false)
	x := s.InternVariable("X", false)

	ground := s.InternAtom(p, []idstore.Id{a}, true)
	nonground := s.InternAtom(p, []idstore.Id{x}, false)

	assert.True(t, ground.IsGround())
	assert.True(t, nonground.IsOrdinaryAtom())
	assert.False(t, nonground.IsGround())
	assert.NotEqual(t, ground, nonground)

	again := s.InternAtom(p, []idstore.Id{a}, true)
	assert.Equal(t, ground, again)
}

func TestAuxSymbolStableAcrossCalls(t *testing.T) {
	s := idstore.New()
	p := s.InternConstant("p", false)
	a := s.InternConstant("a", false)
	atom := s.InternAtom(p, []idstore.Id{a}, true)

	r1 := s.AuxSymbol('r', atom)
	r2 := s.AuxSymbol('r', atom)
	n1 := s.AuxSymbol('n', atom)

	assert.Equal(t, r1, r2, "aux_symbol must be deterministic for the same (class, payload)")
	assert.NotEqual(t, r1, n1, "different classes must yield distinct ids")
}

func TestNafPropertyRoundTrips(t *testing.T) {
	s := idstore.New()
	p := s.InternConstant("p", false)
	atom := s.InternAtom(p, nil, true)

	negated := atom.WithNaf()
	assert.True(t, negated.IsNaf())
	assert.False(t, atom.IsNaf())
	assert.Equal(t, atom, negated.WithoutNaf())
}

func TestPrintRoundTripsConstants(t *testing.T) {
	s := idstore.New()
	p := s.InternConstant("p", false)
	a := s.InternConstant("a", false)
	b := s.InternConstant("b", false)
	atom := s.InternAtom(p, []idstore.Id{a, b}, true)

	assert.Equal(t, "p(a,b)", s.Print(atom))
	assert.Equal(t, "not p(a,b)", s.Print(atom.WithNaf()))
}

func TestGroundAtomCountGrowsMonotonically(t *testing.T) {
	s := idstore.New()
	p := s.InternConstant("p", false)
	before := s.GroundAtomCount()
	s.InternAtom(p, []idstore.Id{s.InternConstant("a", false)}, true)
	s.InternAtom(p, []idstore.Id{s.InternConstant("a", false)}, true) // duplicate, no growth
	s.InternAtom(p, []idstore.Id{s.InternConstant("c", false)}, true)
	after := s.GroundAtomCount()
	assert.Equal(t, 2, after-before)
}
