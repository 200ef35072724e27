package ground_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
)

// buildRule interns a regular rule h1 v ... :- b1, ... from head/body atom ids.
func buildRule(s *idstore.Store, head, body []idstore.Id) idstore.Id {
	return s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular, Head: head, Body: body})
}

func TestHeadCycleDisjunction(t *testing.T) {
	// a v b.  a :- b.  b :- a.  (spec.md §8 scenario 4)
	s := idstore.New()
	pa := s.InternConstant("a", false)
	pb := s.InternConstant("b", false)
	a := s.InternAtom(pa, nil, true)
	b := s.InternAtom(pb, nil, true)

	r1 := buildRule(s, []idstore.Id{a, b}, nil)
	r2 := buildRule(s, []idstore.Id{a}, []idstore.Id{b})
	r3 := buildRule(s, []idstore.Id{b}, []idstore.Id{a})

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{
		Store: s,
		EDB:   edb,
		IDB:   []idstore.Id{r1, r2, r3},
	})
	require.NoError(t, err)

	idx := ag.SCCIndex(int(a.Address()))
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, idx, ag.SCCIndex(int(b.Address())), "a and b must be in the same SCC")
	assert.True(t, ag.SCCs[idx].HeadCycle, "a v b. with a:-b. and b:-a. is head-cyclic")
}

func TestNoCycleWhenAcyclic(t *testing.T) {
	s := idstore.New()
	pa := s.InternConstant("a", false)
	pb := s.InternConstant("b", false)
	a := s.InternAtom(pa, nil, true)
	b := s.InternAtom(pb, nil, true)

	r := buildRule(s, []idstore.Id{a}, []idstore.Id{b})

	edb := ground.NewInterpretation(s)
	edb.Set(b)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{r}})
	require.NoError(t, err)

	idx := ag.SCCIndex(int(a.Address()))
	require.GreaterOrEqual(t, idx, 0)
	assert.NotEqual(t, idx, ag.SCCIndex(int(b.Address())))
	assert.False(t, ag.SCCs[idx].HeadCycle)
	assert.False(t, ag.SCCs[idx].ExternalCycle)
}

func TestExternalCycleDetected(t *testing.T) {
	// p(a) :- &ext[p](). (spec.md §8 scenario 3)
	s := idstore.New()
	pp := s.InternConstant("p", false)
	ca := s.InternConstant("a", false)
	pAtomA := s.InternAtom(pp, []idstore.Id{ca}, true)

	ext := s.InternExternalAtom(&idstore.ExternalAtom{
		Oracle: s.InternConstant("ext", false),
		Input:  []idstore.Id{pp},
	})
	r := buildRule(s, []idstore.Id{pAtomA}, []idstore.Id{ext})

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{
		Store:         s,
		EDB:           edb,
		IDB:           []idstore.Id{r},
		ExternalAtoms: []idstore.Id{ext},
		ExternalAtomNaf: map[idstore.Id]bool{
			ext: false,
		},
		ExternalAtomInputAtoms: map[idstore.Id][]idstore.Id{
			ext: {pAtomA},
		},
	})
	require.NoError(t, err)

	idx := ag.SCCIndex(int(pAtomA.Address()))
	require.GreaterOrEqual(t, idx, 0)
	assert.True(t, ag.SCCs[idx].ExternalCycle)
}
