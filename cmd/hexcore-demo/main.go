// Command hexcore-demo builds a small HEX program by hand — an edge
// database plus a reachability external atom — and drives it through
// engine.ModelGenerator to print every answer set.
//
// There is no text-format parser in this module (grounding input is
// AnnotatedGround's struct form), so the program below is constructed
// directly against the idstore/ground APIs the way a grounder's output
// would be.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dlvgo/hexcore/engine"
	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
	"github.com/dlvgo/hexcore/oracle"
)

// reachOracle answers &reach[edge](X,Y) by BFS over the edge facts visible
// in the query's projected interpretation, rather than a fixed lookup
// table — the external computation a real HEX plugin would run.
type reachOracle struct {
	predicate idstore.Id
	store     *idstore.Store
}

func (o *reachOracle) Predicate() idstore.Id { return o.predicate }

func (o *reachOracle) InputTypes() []oracle.InputType {
	return []oracle.InputType{oracle.InputPredicate}
}

func (o *reachOracle) OutputArity() (int, bool) { return 2, false }

func (o *reachOracle) Retrieve(ctx context.Context, q oracle.Query) (oracle.Answer, error) {
	adj := make(map[idstore.Id][]idstore.Id)
	it := q.Interpretation.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		id := o.store.IdAtAddress(uint64(addr))
		if !id.IsOrdinaryAtom() {
			continue // replacement atom, also present in the projected scope
		}
		a := o.store.LookupAtom(id)
		if a == nil || len(a.Args) != 2 {
			continue
		}
		adj[a.Args[0]] = append(adj[a.Args[0]], a.Args[1])
	}

	from, to := q.OutputPattern[0], q.OutputPattern[1]
	visited := map[idstore.Id]bool{from: true}
	queue := []idstore.Id{from}
	reached := false
	for len(queue) > 0 && !reached {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if next == to {
				reached = true
				break
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	if reached {
		return oracle.Answer{Positive: [][]idstore.Id{{from, to}}}, nil
	}
	return oracle.Answer{}, nil
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hexcore-demo: logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("demo run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	s := idstore.New()

	// Graph: a->b, b->c, c->d, plus an isolated node e.
	nodeNames := []string{"a", "b", "c", "d", "e"}
	nodes := make(map[string]idstore.Id, len(nodeNames))
	for _, n := range nodeNames {
		nodes[n] = s.InternConstant(n, false)
	}

	predEdge := s.InternConstant("edge", false)
	predReachable := s.InternConstant("reachable", false)
	predOracle := s.InternConstant("reach", false)

	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	edb := ground.NewInterpretation(s)
	for _, e := range edges {
		atom := s.InternAtom(predEdge, []idstore.Id{nodes[e[0]], nodes[e[1]]}, true)
		edb.Set(atom)
	}

	// One external-atom occurrence per queried pair, each with its own
	// replacement-atom guess and an exclusivity constraint forbidding both
	// polarities (spec.md §4.6 construction step 2), the way a grounder
	// would emit the standard guess-and-check encoding per occurrence.
	pairs := [][2]string{{"a", "c"}, {"a", "d"}, {"e", "a"}}

	var idb []idstore.Id
	var externalAtoms []idstore.Id
	externalAtomNaf := make(map[idstore.Id]bool)
	inputAtoms := make(map[idstore.Id][]idstore.Id)
	replacements := make(map[idstore.Id][2]idstore.Id)
	registrations := make(map[idstore.Id]engine.ExternalRegistration)
	registrations[predOracle] = engine.ExternalRegistration{
		Oracle: &reachOracle{predicate: predOracle, store: s},
	}

	for _, p := range pairs {
		from, to := nodes[p[0]], nodes[p[1]]
		eaID := s.InternExternalAtom(&idstore.ExternalAtom{
			Oracle: predOracle,
			Input:  []idstore.Id{predEdge},
			Output: []idstore.Id{from, to},
		})
		replPos := s.AuxSymbol('r', eaID)
		replNeg := s.AuxSymbol('n', eaID)

		head := s.InternAtom(predReachable, []idstore.Id{from, to}, true)

		guessRule := s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular, Head: []idstore.Id{replPos, replNeg}})
		exclusivity := s.InternRule(&idstore.Rule{Subkind: idstore.RuleConstraint, Body: []idstore.Id{replPos, replNeg}})
		mainRule := s.InternRule(&idstore.Rule{Subkind: idstore.RuleRegular, Head: []idstore.Id{head}, Body: []idstore.Id{replPos}})

		idb = append(idb, guessRule, exclusivity, mainRule)
		externalAtoms = append(externalAtoms, eaID)
		externalAtomNaf[eaID] = false
		inputAtoms[eaID] = collectEdgeAtoms(edb)
		replacements[eaID] = [2]idstore.Id{replPos, replNeg}
	}

	ag, err := ground.Build(ground.BuildInput{
		Store:                    s,
		EDB:                      edb,
		IDB:                      idb,
		ExternalAtoms:            externalAtoms,
		ExternalAtomNaf:          externalAtomNaf,
		ExternalAtomInputAtoms:   inputAtoms,
		ExternalAtomReplacements: replacements,
	})
	if err != nil {
		return fmt.Errorf("ground.Build: %w", err)
	}

	cfg := engine.NewConfig(engine.WithLogger(logger))
	mg, err := engine.NewModelGenerator(context.Background(), cfg, ag, registrations, nil, nil)
	if err != nil {
		return fmt.Errorf("engine.NewModelGenerator: %w", err)
	}

	fmt.Println("reachability over a->b->c->d, isolated node e:")
	count := 0
	for {
		model, err := mg.NextModel(context.Background())
		if err != nil {
			return fmt.Errorf("NextModel: %w", err)
		}
		if model == nil {
			break
		}
		count++
		fmt.Printf("answer set %d: %s\n", count, model.String())
	}
	fmt.Printf("%d answer set(s) found\n", count)
	return nil
}

// collectEdgeAtoms returns every fact true in edb — the scope mask every
// occurrence's &reach[edge] input predicate draws from.
func collectEdgeAtoms(edb *ground.Interpretation) []idstore.Id {
	var out []idstore.Id
	it := edb.IterTrue()
	for {
		addr, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, idstore.GroundAtomId(addr))
	}
	return out
}
