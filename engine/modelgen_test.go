package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/engine"
	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/oracle"
)

func buildRule(s *idstore.Store, subkind idstore.Kind, head, body []idstore.Id) idstore.Id {
	return s.InternRule(&idstore.Rule{Subkind: subkind, Head: head, Body: body})
}

// collectModels drains mg to exhaustion, returning the String() of every
// accepted model; a cap bounds runaway loops if a bug ever made the search
// not terminate.
func collectModels(t *testing.T, mg *engine.ModelGenerator) []string {
	t.Helper()
	var out []string
	for i := 0; i < 20; i++ {
		m, err := mg.NextModel(context.Background())
		require.NoError(t, err)
		if m == nil {
			return out
		}
		out = append(out, m.String())
	}
	t.Fatal("NextModel did not terminate within 20 iterations")
	return nil
}

// TestModelGeneratorAcceptsUniqueHeadCycleModel builds `a v b. a:-b. b:-a.`
// (spec.md §8 scenario 4 without any external atom involved): {a} and {b}
// are each classically forbidden by the other's rule, and {a,b} is the
// unique classical model; the UFS check on {a,b} finds no nonempty
// unfounded set (every candidate U is ruled out between the disjunction's
// own "not both" nogood and each direction rule's "head without its
// support" nogood), so it is accepted unchanged.
func TestModelGeneratorAcceptsUniqueHeadCycleModel(t *testing.T) {
	s := idstore.New()
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	r1 := buildRule(s, idstore.RuleRegular, []idstore.Id{a, b}, nil)
	r2 := buildRule(s, idstore.RuleRegular, []idstore.Id{a}, []idstore.Id{b})
	r3 := buildRule(s, idstore.RuleRegular, []idstore.Id{b}, []idstore.Id{a})

	edb := ground.NewInterpretation(s)
	ag, err := ground.Build(ground.BuildInput{Store: s, EDB: edb, IDB: []idstore.Id{r1, r2, r3}})
	require.NoError(t, err)

	mg, err := engine.NewModelGenerator(context.Background(), nil, ag, nil, nil, nil)
	require.NoError(t, err)

	models := collectModels(t, mg)
	require.Len(t, models, 1, "a v b. a:-b. b:-a. has exactly one answer set")

	final, err := mg.NextModel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, final)
	assert.Nil(t, mg.InconsistencyNogood())
}

// testCopyOracle implements oracle.Oracle for a single nullary-input
// predicate copy: it reports its output tuple positive whenever the
// predicate's sole ground atom holds in the projected interpretation,
// undecided never (the predicate's truth is always already fixed by the
// time Retrieve is called in these tests).
type testCopyOracle struct {
	predicate idstore.Id
	source    idstore.Id // the single ground atom whose truth the oracle copies
	output    idstore.Id
}

func (o *testCopyOracle) Predicate() idstore.Id { return o.predicate }

func (o *testCopyOracle) InputTypes() []oracle.InputType {
	return []oracle.InputType{oracle.InputPredicate}
}

func (o *testCopyOracle) OutputArity() (int, bool) { return 1, false }

func (o *testCopyOracle) Retrieve(ctx context.Context, q oracle.Query) (oracle.Answer, error) {
	if q.Interpretation.Test(o.source) {
		return oracle.Answer{Positive: [][]idstore.Id{{o.output}}}, nil
	}
	return oracle.Answer{}, nil
}

// TestModelGeneratorResolvesExternalAtomGuessAgainstOracle builds
// `p(a) :- &copyOf_d[d](a).` where &copyOf_d copies d(a)'s truth and d(a)
// is a fixed fact, plus the standard replPos/replNeg guessing-rule pair
// with an exclusivity constraint (spec.md §4.6 construction step 2's
// `&r v &n :- body` pattern, plus the implicit "not both" integrity
// constraint every concrete grounder of it emits). Since d(a) always
// holds, only the replPos-true guess can ever be verified; the
// replNeg-true guess is rejected by final_compatibility_check and its
// rejection is also recorded as a learned input/output nogood, so no
// second NextModel call ever re-derives it.
func TestModelGeneratorResolvesExternalAtomGuessAgainstOracle(t *testing.T) {
	s := idstore.New()
	ca := s.InternConstant("a", false)
	predD := s.InternConstant("d", false)
	predP := s.InternConstant("p", false)
	predOracle := s.InternConstant("copyOf_d", false)

	dA := s.InternAtom(predD, []idstore.Id{ca}, true)
	pA := s.InternAtom(predP, []idstore.Id{ca}, true)

	eaID := s.InternExternalAtom(&idstore.ExternalAtom{
		Oracle: predOracle,
		Input:  []idstore.Id{predD},
		Output: []idstore.Id{ca},
	})
	replPos := s.AuxSymbol('r', eaID)
	replNeg := s.AuxSymbol('n', eaID)

	guessRule := buildRule(s, idstore.RuleRegular, []idstore.Id{replPos, replNeg}, nil)
	exclusivity := buildRule(s, idstore.RuleConstraint, nil, []idstore.Id{replPos, replNeg})
	mainRule := buildRule(s, idstore.RuleRegular, []idstore.Id{pA}, []idstore.Id{replPos})

	edb := ground.NewInterpretation(s)
	edb.Set(dA)

	ag, err := ground.Build(ground.BuildInput{
		Store:                  s,
		EDB:                    edb,
		IDB:                    []idstore.Id{guessRule, exclusivity, mainRule},
		ExternalAtoms:          []idstore.Id{eaID},
		ExternalAtomNaf:        map[idstore.Id]bool{eaID: false},
		ExternalAtomInputAtoms: map[idstore.Id][]idstore.Id{eaID: {dA}},
		ExternalAtomReplacements: map[idstore.Id][2]idstore.Id{
			eaID: {replPos, replNeg},
		},
	})
	require.NoError(t, err)

	registrations := map[idstore.Id]engine.ExternalRegistration{
		predOracle: {Oracle: &testCopyOracle{predicate: predOracle, source: dA, output: ca}},
	}
	mg, err := engine.NewModelGenerator(context.Background(), nil, ag, registrations, nil, nil)
	require.NoError(t, err)

	model, err := mg.NextModel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.True(t, model.Test(dA))
	assert.True(t, model.Test(pA), "the only verified guess is replPos, which forces p(a)")

	next, err := mg.NextModel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next, "the replNeg guess is rejected and never reproduced")
}
