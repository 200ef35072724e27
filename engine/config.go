package engine

import (
	"go.uber.org/zap"

	"github.com/dlvgo/hexcore/heuristics"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/nogood"
	"github.com/dlvgo/hexcore/solver"
	"github.com/dlvgo/hexcore/ufs"
)

// SolverFactory builds a fresh GroundSolver bound to store for one
// ModelGenerator instance. Taking a factory rather than a shared instance
// means two components being solved concurrently (e.g. under the async
// variant, or simply two sibling ModelGenerators) never accidentally share
// solver state.
type SolverFactory func(store *idstore.Store) solver.GroundSolver

// Config bundles the per-ModelGenerator tuning knobs of spec.md §4.6-§4.9:
// which heuristics drive verification and UFS checking, which GroundSolver
// backend to instantiate, how much memory the learned-nogood store may use,
// and whether transitive-unit learning runs when a component is
// inconsistent on its first solve. Built via functional options, following
// this codebase's builder-config convention.
type Config struct {
	evalHeuristic heuristics.EvalHeuristic
	ufsHeuristic  heuristics.UfsHeuristic
	ufsChecker    ufs.Checker
	newSolver     SolverFactory
	logger        *zap.Logger
	memoryBudget  int

	transitiveUnitLearning bool
	supportSetInlining     bool
}

// Option customizes a Config before a ModelGenerator is built from it.
type Option func(*Config)

// defaultConfig mirrors dlvhex2's out-of-the-box heuristic selection: a
// low-frequency evaluation heuristic and an always-at-end UFS heuristic,
// the gini-backed solver, no memory budget, transitive-unit learning on.
func defaultConfig() *Config {
	return &Config{
		evalHeuristic:          heuristics.LowFrequency{},
		ufsHeuristic:           heuristics.UfsAlwaysAtEnd{},
		newSolver:              func(store *idstore.Store) solver.GroundSolver { return solver.NewGiniBackend(store) },
		logger:                 zap.NewNop(),
		transitiveUnitLearning: true,
	}
}

// NewConfig applies opts over defaultConfig, returning the result. It never
// fails: option constructors validate and panic on programmer error
// (nil heuristics, nil factories), matching this codebase's "fail fast at
// construction, never at call time" convention.
func NewConfig(opts ...Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ufsChecker == nil {
		cfg.ufsChecker = ufs.EncodingChecker{}
	}
	return cfg
}

// WithEvalHeuristic overrides the EvalHeuristic used for every inner
// external atom's verification scheduling (spec.md §4.7).
func WithEvalHeuristic(h heuristics.EvalHeuristic) Option {
	if h == nil {
		panic("engine: WithEvalHeuristic(nil)")
	}
	return func(c *Config) { c.evalHeuristic = h }
}

// WithUfsHeuristic overrides the UfsHeuristic deciding when a partial
// unfounded-set check is worth running (spec.md §4.8).
func WithUfsHeuristic(h heuristics.UfsHeuristic) Option {
	if h == nil {
		panic("engine: WithUfsHeuristic(nil)")
	}
	return func(c *Config) { c.ufsHeuristic = h }
}

// WithUfsCheckerFactory overrides the UfsChecker strategy (encoding-based vs
// assumption-based, spec.md §4.8). EncodingChecker is the default since it
// needs no per-component setup; ufs.NewAssumptionChecker amortizes better
// across many UFS checks within one component's search.
func WithUfsCheckerFactory(c ufs.Checker) Option {
	if c == nil {
		panic("engine: WithUfsCheckerFactory(nil)")
	}
	return func(cfg *Config) { cfg.ufsChecker = c }
}

// WithSolverBackend overrides which GroundSolver implementation backs each
// component's search (spec.md §4.4: gini-backed CDCL vs the internal
// reference backend).
func WithSolverBackend(f SolverFactory) Option {
	if f == nil {
		panic("engine: WithSolverBackend(nil)")
	}
	return func(c *Config) { c.newSolver = f }
}

// WithLogger attaches a *zap.Logger; by default a no-op logger is used so
// that library callers opt into logging rather than being forced to
// configure it.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic("engine: WithLogger(nil)")
	}
	return func(c *Config) { c.logger = l }
}

// WithMemoryBudget bounds the learned-nogood store's size (spec.md §5
// "forget-least-frequently-used policy for nogoods when the memory budget
// is reached"). 0 (the default) means unbounded.
func WithMemoryBudget(n int) Option {
	return func(c *Config) { c.memoryBudget = n }
}

// WithTransitiveUnitLearning toggles spec.md §4.9's inconsistency analysis,
// on by default.
func WithTransitiveUnitLearning(enabled bool) Option {
	return func(c *Config) { c.transitiveUnitLearning = enabled }
}

// WithSupportSetInlining, when enabled, makes learnInitialSupportSets also
// record each learned support set in the ModelGenerator's verification
// trie. No rules are derived from the support sets, the external atom's
// guess stays in the program, and the trie is not consulted during search.
// Off by default.
func WithSupportSetInlining(enabled bool) Option {
	return func(c *Config) { c.supportSetInlining = enabled }
}

// newNogoodStore builds the NogoodStore honoring the configured budget.
func (c *Config) newNogoodStore() *nogood.Store {
	s := nogood.NewStore()
	s.Budget = c.memoryBudget
	return s
}
