package heuristics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dlvgo/hexcore/heuristics"
	"github.com/dlvgo/hexcore/idstore"
)

func TestWatchStrategiesDifferByFrequency(t *testing.T) {
	assert.Equal(t, heuristics.WatchSingle, heuristics.LowFrequency{}.Watch())
	assert.Equal(t, heuristics.WatchAll, heuristics.HighFrequency{}.Watch())
}

func TestAlwaysAtEndOnlyFiresWhenScopeFullyAssigned(t *testing.T) {
	h := heuristics.AlwaysAtEnd{}
	assert.False(t, h.ShouldEvaluate(heuristics.EvalContext{UnassignedScope: 2}))
	assert.True(t, h.ShouldEvaluate(heuristics.EvalContext{UnassignedScope: 0}))
}

func TestUfsPeriodicFiresEveryNSteps(t *testing.T) {
	h := heuristics.UfsPeriodic{Every: 3}
	assert.False(t, h.ShouldCheck(heuristics.UfsContext{StepsSinceLastCheck: 2}))
	assert.True(t, h.ShouldCheck(heuristics.UfsContext{StepsSinceLastCheck: 3}))
}

func TestUfsAlwaysAtEndRequiresAllRulesReady(t *testing.T) {
	h := heuristics.UfsAlwaysAtEnd{}
	assert.False(t, h.ShouldCheck(heuristics.UfsContext{ReadyRules: 2, TotalRules: 3}))
	assert.True(t, h.ShouldCheck(heuristics.UfsContext{ReadyRules: 3, TotalRules: 3}))
}

func TestSkipProgramTrackerMarksRulesReady(t *testing.T) {
	s := idstore.New()
	r1 := s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular})
	r2 := s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular})
	a := s.InternAtom(s.InternConstant("a", false), nil, true)
	b := s.InternAtom(s.InternConstant("b", false), nil, true)
	c := s.InternAtom(s.InternConstant("c", false), nil, true)

	tracker := heuristics.NewSkipProgramTracker(map[idstore.Id][]idstore.Id{
		r1: {a, b},
		r2: {a, c},
	})

	assert.Equal(t, 2, tracker.TotalRules())
	assert.Len(t, tracker.SkipProgram(), 2, "no atoms ready yet: both rules are skipped")

	justReady := tracker.MarkReady(a)
	assert.Empty(t, justReady, "a alone completes neither rule")
	assert.Len(t, tracker.SkipProgram(), 2)

	justReady = tracker.MarkReady(b)
	assert.Equal(t, []idstore.Id{r1}, justReady)
	assert.Len(t, tracker.SkipProgram(), 1, "r1 leaves the skip program, r2 remains")

	tracker.Unmark(b)
	assert.Len(t, tracker.SkipProgram(), 2, "unmarking b reopens r1")
}
