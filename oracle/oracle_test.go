package oracle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/oracle"
)

// countingOracle answers &count[] with the number of true atoms in its
// projected interpretation, and counts how many times Retrieve was actually
// invoked (as opposed to answered from Cache).
type countingOracle struct {
	store     *idstore.Store
	predicate idstore.Id
	calls     int
}

func (o *countingOracle) Predicate() idstore.Id { return o.predicate }
func (o *countingOracle) InputTypes() []oracle.InputType {
	return []oracle.InputType{oracle.InputPredicate}
}
func (o *countingOracle) OutputArity() (int, bool) { return 1, false }

func (o *countingOracle) Retrieve(ctx context.Context, q oracle.Query) (oracle.Answer, error) {
	o.calls++
	n := 0
	if q.Interpretation != nil {
		n = q.Interpretation.Count()
	}
	return oracle.Answer{Positive: [][]idstore.Id{{o.store.InternInteger(int64(n))}}}, nil
}

func TestCacheAnswersRepeatQueryWithoutCallingThrough(t *testing.T) {
	s := idstore.New()
	pred := s.InternConstant("count", false)
	inner := &countingOracle{store: s, predicate: pred}
	cached := oracle.NewCache(inner, false)

	interp := ground.NewInterpretation(s)
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	interp.Set(a)

	q := oracle.Query{ExternalAtom: s.InternExternalAtom(&idstore.ExternalAtom{Oracle: pred}), Interpretation: interp}

	ans1, err := cached.Retrieve(context.Background(), q)
	require.NoError(t, err)
	ans2, err := cached.Retrieve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, ans1, ans2)
	assert.Equal(t, 1, inner.calls, "the second identical query must be answered from cache")

	hits, misses := cached.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheInvalidatesOnProgramMaskGrowth(t *testing.T) {
	s := idstore.New()
	pred := s.InternConstant("count", false)
	inner := &countingOracle{store: s, predicate: pred}
	cached := oracle.NewCache(inner, false)

	interp := ground.NewInterpretation(s)
	ea := s.InternExternalAtom(&idstore.ExternalAtom{Oracle: pred})

	q1 := oracle.Query{ExternalAtom: ea, Interpretation: interp, ProgramMaskSize: 1}
	q2 := oracle.Query{ExternalAtom: ea, Interpretation: interp, ProgramMaskSize: 2}

	_, err := cached.Retrieve(context.Background(), q1)
	require.NoError(t, err)
	_, err = cached.Retrieve(context.Background(), q2)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "a grown program mask size must bypass the cached negative conclusion")
}

func TestCacheBypassedWhenOracleCaresAboutChanged(t *testing.T) {
	s := idstore.New()
	pred := s.InternConstant("count", false)
	inner := &countingOracle{store: s, predicate: pred}
	cached := oracle.NewCache(inner, true)

	q := oracle.Query{ExternalAtom: s.InternExternalAtom(&idstore.ExternalAtom{Oracle: pred})}
	_, err := cached.Retrieve(context.Background(), q)
	require.NoError(t, err)
	_, err = cached.Retrieve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}
