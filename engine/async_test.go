package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dlvgo/hexcore/engine"
	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
)

// disjunctionProgram builds `a v b.` with no external atoms: three
// classical models, {a}, {b}, {a,b}, all FLP-minimal since the rule has an
// empty body (no cycle for a UFS check to ever reject).
func disjunctionProgram(t *testing.T) (*ground.AnnotatedGround, idstore.Id, idstore.Id) {
	t.Helper()
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	rule := s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular, Head: []idstore.Id{a, b}})

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{rule}})
	require.NoError(t, err)
	return ag, a, b
}

func TestAsyncModelGeneratorFindsAllModelsThenExits(t *testing.T) {
	defer goleak.VerifyNone(t)

	ag, a, b := disjunctionProgram(t)
	mg, err := engine.NewModelGenerator(context.Background(), nil, ag, nil, nil, nil)
	require.NoError(t, err)

	amg := engine.NewAsyncModelGenerator(mg, 2, 2)
	defer amg.Close()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		model, err := amg.NextModel(context.Background())
		require.NoError(t, err)
		if model == nil {
			break
		}
		require.True(t, model.Test(a) || model.Test(b), "every model of a v b. must contain at least one disjunct")
		seen[model.String()] = true
	}
	assert.Len(t, seen, 3)
}

func TestAsyncModelGeneratorCloseIsIdempotentAndLeakFree(t *testing.T) {
	defer goleak.VerifyNone(t)

	ag, _, _ := disjunctionProgram(t)
	mg, err := engine.NewModelGenerator(context.Background(), nil, ag, nil, nil, nil)
	require.NoError(t, err)

	amg := engine.NewAsyncModelGenerator(mg, 1, 1)
	_, err = amg.NextModel(context.Background())
	require.NoError(t, err)

	amg.Close()
	amg.Close() // must not panic or double-close channels
}
