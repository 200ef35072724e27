package solver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/solver"
)

func buildRule(s *idstore.Store, subkind idstore.Kind, head, body []idstore.Id) idstore.Id {
	return s.InternRule(&idstore.Rule{Subkind: subkind, Head: head, Body: body})
}

// factsAndDerivedProgram builds `p. q :- p.` and returns (store, p, q, ag).
func factsAndDerivedProgram(t *testing.T) (*idstore.Store, idstore.Id, idstore.Id, *ground.AnnotatedGround) {
	t.Helper()
	s := idstore.New()
	p := s.InternAtom(s.InternConstant("p", false), nil, true)
	q := s.InternAtom(s.InternConstant("q", false), nil, true)
	rule := buildRule(s, idstore.RuleRegular, []idstore.Id{q}, []idstore.Id{p})

	edb := ground.NewInterpretation(s)
	edb.Set(p)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{rule}})
	require.NoError(t, err)
	return s, p, q, ag
}

func TestInternalBackendFindsUniqueSupportedModel(t *testing.T) {
	s, p, q, ag := factsAndDerivedProgram(t)
	_ = s
	backend := solver.NewInternalBackend(s)
	require.NoError(t, backend.AddProgram(ag, nil))

	model, err := backend.NextModel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.True(t, model.Test(p))
	assert.True(t, model.Test(q))

	next, err := backend.NextModel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next, "p. q:-p. has exactly one model")
}

func TestInternalBackendEnumeratesClassicalModelsOfADisjunction(t *testing.T) {
	// a v b. has three classical (rule-nogood-respecting) models: {a}, {b},
	// {a,b}. Minimality (only {a} and {b} are genuine answer sets) is an
	// is_model/FLP-check responsibility layered above GroundSolver, not
	// something the raw nogood set enforces by itself.
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	rule := buildRule(s, idstore.RuleRegular, []idstore.Id{a, b}, nil)

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{rule}})
	require.NoError(t, err)

	backend := solver.NewInternalBackend(s)
	require.NoError(t, backend.AddProgram(ag, nil))

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		model, err := backend.NextModel(context.Background())
		require.NoError(t, err)
		if model == nil {
			break
		}
		seen[model.String()] = true
	}
	assert.Len(t, seen, 3)
}

func TestInternalBackendRestartWithAssumptionsForcesLiteral(t *testing.T) {
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	rule := buildRule(s, idstore.RuleRegular, []idstore.Id{a, b}, nil)

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{rule}})
	require.NoError(t, err)

	backend := solver.NewInternalBackend(s)
	require.NoError(t, backend.AddProgram(ag, nil))
	require.NoError(t, backend.RestartWithAssumptions([]idstore.Id{a.WithNaf()}))

	model, err := backend.NextModel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.False(t, model.Test(a))
	assert.True(t, model.Test(b), "a v b. with not(a) assumed forces b")
}

func TestGiniBackendFindsUniqueSupportedModel(t *testing.T) {
	s, p, q, ag := factsAndDerivedProgram(t)
	backend := solver.NewGiniBackend(s)
	require.NoError(t, backend.AddProgram(ag, nil))

	model, err := backend.NextModel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.True(t, model.Test(p))
	assert.True(t, model.Test(q))

	next, err := backend.NextModel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestCostVectorLexicographicOrder(t *testing.T) {
	cheap := solver.CostVector{0, 1} // level 0 cost 0, level 1 cost 1
	expensive := solver.CostVector{5, 1}
	assert.True(t, cheap.Less(expensive))
	assert.False(t, expensive.Less(cheap))
	assert.Equal(t, "<[1:1],[0:0]>", cheap.String())
}
