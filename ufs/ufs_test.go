package ufs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/ufs"
)

func buildRule(s *idstore.Store, head, body []idstore.Id) idstore.Id {
	return s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular, Head: head, Body: body})
}

// mutualCycleProgram builds `p :- q. q :- p.` with no facts: {p,q} is a
// classical model of the rule nogoods (p≡q, both-true or both-false both
// satisfy them) but not an answer set, since neither atom has any support
// beyond the circular dependency on the other — the textbook unfounded-set
// example.
func mutualCycleProgram(t *testing.T) (*idstore.Store, idstore.Id, idstore.Id, idstore.Id, idstore.Id) {
	t.Helper()
	s := idstore.New()
	p := s.InternAtom(s.InternConstant("p", false), nil, true)
	q := s.InternAtom(s.InternConstant("q", false), nil, true)
	r1 := buildRule(s, []idstore.Id{p}, []idstore.Id{q})
	r2 := buildRule(s, []idstore.Id{q}, []idstore.Id{p})
	return s, p, q, r1, r2
}

func TestEncodingCheckerFindsUnfoundedSetInMutualCycle(t *testing.T) {
	s, p, q, r1, r2 := mutualCycleProgram(t)

	candidate := ground.NewInterpretation(s)
	candidate.Set(p)
	candidate.Set(q)

	checker := ufs.EncodingChecker{Store: s}
	u, ng, err := checker.Check(context.Background(), candidate, []idstore.Id{r1, r2}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, u, "{p,q} is unfounded: neither atom has support outside the cycle")

	assert.True(t, u.Test(p))
	assert.True(t, u.Test(q))
	assert.Equal(t, 2, len(ng.Literals))
}

func TestEncodingCheckerFindsNothingWhenSupportedByAFact(t *testing.T) {
	s, p, q, r1, r2 := mutualCycleProgram(t)
	fact := buildRule(s, []idstore.Id{p}, nil) // p. — now p has support independent of q

	candidate := ground.NewInterpretation(s)
	candidate.Set(p)
	candidate.Set(q)

	checker := ufs.EncodingChecker{Store: s}
	u, ng, err := checker.Check(context.Background(), candidate, []idstore.Id{r1, r2, fact}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Nil(t, ng)
}

func TestEncodingCheckerSkipsIgnoredRules(t *testing.T) {
	s, p, q, r1, r2 := mutualCycleProgram(t)

	candidate := ground.NewInterpretation(s)
	candidate.Set(p)
	candidate.Set(q)

	checker := ufs.EncodingChecker{Store: s}
	skip := map[idstore.Id]bool{r1: true, r2: true}
	u, ng, err := checker.Check(context.Background(), candidate, []idstore.Id{r1, r2}, skip, nil)
	require.NoError(t, err)
	// With both rules skipped, only the nonempty(U) constraint remains, so
	// any nonempty subset of the candidate's true atoms is a valid (if
	// vacuous) witness — this is exactly why a caller must keep the skip
	// set to genuinely-not-yet-ready rules, never to everything.
	require.NotNil(t, u)
	assert.True(t, u.Count() > 0)
	assert.NotNil(t, ng)
}

func TestAssumptionCheckerFindsUnfoundedSetAndReusesBackendAcrossCalls(t *testing.T) {
	s, p, q, r1, r2 := mutualCycleProgram(t)
	component := []idstore.Id{r1, r2}

	checker := ufs.NewAssumptionChecker(s, component)

	candidate := ground.NewInterpretation(s)
	candidate.Set(p)
	candidate.Set(q)

	u, ng, err := checker.Check(context.Background(), candidate, component, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.Test(p))
	assert.True(t, u.Test(q))
	assert.Equal(t, 2, len(ng.Literals))

	// A second call against the same checker (same backend) for a
	// different candidate (p alone) must be solved on its own terms, not
	// corrupted by the first call's round-gated nogoods.
	onlyP := ground.NewInterpretation(s)
	onlyP.Set(p)
	u2, ng2, err := checker.Check(context.Background(), onlyP, component, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, u2, "{p} is unfounded too: p's only rule r1 has a false body here (q is absent), "+
		"so nothing outside U supports p")
	assert.True(t, u2.Test(p))
	assert.False(t, u2.Test(q))
	assert.NotNil(t, ng2)
}
