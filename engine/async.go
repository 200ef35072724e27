package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/internal/parallel"
)

// AsyncModelGenerator wraps a ModelGenerator with spec.md §5's optional
// asynchronous producer/verifier variant: an ordinary-model producer and a
// model-verifier run as two goroutines connected by a bounded queue of raw
// candidates. The producer blocks when the queue is full; the verifier
// blocks when it is empty. Nogoods the verifier learns while checking a
// candidate are added to the shared solver under its own lock (both
// solver.GiniBackend and solver.InternalBackend guard AddNogood with a
// mutex) and are therefore visible to the producer's very next NextModel
// call, matching spec.md §5's "consumed by producer on its next
// propagation tick".
//
// Using this variant requires mg's oracle registrations to be thread-safe
// or externally serialised, per spec.md §5: the verifier fans a single
// candidate's external-atom evaluations out across several goroutines, and
// accepted models race the producer building the next one.
type AsyncModelGenerator struct {
	mg   *ModelGenerator
	pool *parallel.Pool

	queue chan *ground.Interpretation
	out   chan asyncResult

	terminate chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type asyncResult struct {
	model *ground.Interpretation
	err   error
}

// NewAsyncModelGenerator starts the producer and verifier goroutines over
// mg. queueDepth bounds the producer/verifier queue (spec.md §5); a
// nonpositive value defaults to 1, the minimum that still decouples the two
// threads. verifyWorkers sizes the pool the verifier uses to fan a single
// candidate's external-atom evaluations out; 0 defaults to
// runtime.NumCPU() (parallel.New's own default).
//
// mg must not be driven by NextModel directly once this constructor
// returns: the propagator installed by NewModelGenerator is detached here
// so that the (comparatively expensive) oracle evaluation work it used to
// do inline moves entirely to the verifier goroutine, leaving the producer
// free to keep the solver's search running concurrently with verification
// of models it already found.
func NewAsyncModelGenerator(mg *ModelGenerator, queueDepth, verifyWorkers int) *AsyncModelGenerator {
	if queueDepth <= 0 {
		queueDepth = 1
	}
	mg.solv.DetachPropagator(mg.propagate)

	amg := &AsyncModelGenerator{
		mg:        mg,
		pool:      parallel.New(verifyWorkers),
		queue:     make(chan *ground.Interpretation, queueDepth),
		out:       make(chan asyncResult, queueDepth),
		terminate: make(chan struct{}),
	}

	amg.wg.Add(2)
	go amg.produce()
	go amg.verify()

	return amg
}

// produce is the producer thread of spec.md §5: it only asks the solver
// for the next raw candidate and pushes it into the bounded queue. All
// oracle-facing verification work happens on the verifier side, so this
// loop never blocks on anything but the solver's own search and the queue
// itself.
func (amg *AsyncModelGenerator) produce() {
	defer amg.wg.Done()
	defer close(amg.queue)

	ctx := context.Background()
	for {
		select {
		case <-amg.terminate:
			return
		default:
		}

		candidate, err := amg.mg.solv.NextModel(ctx)
		if err != nil {
			amg.sendResult(asyncResult{err: fmt.Errorf("engine: async producer: %w", err)})
			return
		}
		if candidate == nil {
			if amg.mg.firstCall && amg.mg.cfg.transitiveUnitLearning {
				if ng, err := amg.mg.analyzeInconsistency(ctx); err == nil {
					amg.mg.inconsistencyNogood = ng
				} else {
					amg.mg.log.Warn("transitive-unit learning failed", zap.Error(err))
				}
			}
			amg.mg.firstCall = false
			return
		}
		amg.mg.firstCall = false

		select {
		case amg.queue <- candidate:
		case <-amg.terminate:
			return
		}
	}
}

// verify is the verifier thread: it pulls a raw candidate off the queue,
// runs the same final_compatibility_check / is_model pipeline NextModel
// uses synchronously, and publishes the first accepted, stripped model it
// finds. Rejected candidates are simply dropped; the producer keeps
// supplying new ones independent of how many prior candidates the verifier
// has rejected.
func (amg *AsyncModelGenerator) verify() {
	defer amg.wg.Done()
	defer close(amg.out)

	ctx := context.Background()
	for {
		var candidate *ground.Interpretation
		select {
		case c, ok := <-amg.queue:
			if !ok {
				return
			}
			candidate = c
		case <-amg.terminate:
			return
		}

		// The propagator is detached, so any evaluated/verified flags are
		// left over from the previous candidate; clear them so every inner
		// external atom is checked against this one.
		for _, x := range amg.mg.inner {
			x.unverify()
		}
		ok, err := amg.mg.finalCompatibilityCheckParallel(ctx, amg.pool, candidate)
		if err != nil {
			amg.sendResult(asyncResult{err: fmt.Errorf("engine: async verifier: %w", err)})
			continue
		}
		if !ok {
			continue
		}

		ok, err = amg.mg.isModel(ctx, candidate)
		if err != nil {
			amg.sendResult(asyncResult{err: fmt.Errorf("engine: async verifier: %w", err)})
			continue
		}
		if !ok {
			continue
		}

		if amg.mg.optimizing {
			amg.mg.currentOptimum = amg.mg.CostOf(candidate)
		}
		amg.sendResult(asyncResult{model: amg.mg.stripAuxiliaries(candidate)})
	}
}

func (amg *AsyncModelGenerator) sendResult(r asyncResult) {
	select {
	case amg.out <- r:
	case <-amg.terminate:
	}
}

// NextModel blocks for the next verified model, or (nil, nil) once the
// producer has exhausted the search and the verifier has drained every
// queued candidate.
func (amg *AsyncModelGenerator) NextModel(ctx context.Context) (*ground.Interpretation, error) {
	select {
	case r, ok := <-amg.out:
		if !ok {
			return nil, nil
		}
		return r.model, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sets the shared terminate flag (spec.md §5 "on destruction a
// shared terminate flag causes both threads to drain and exit"), then
// waits for both goroutines and shuts down the verification pool. Safe to
// call more than once.
func (amg *AsyncModelGenerator) Close() {
	amg.closeOnce.Do(func() {
		close(amg.terminate)
	})
	amg.wg.Wait()
	amg.pool.Shutdown()
}

// finalCompatibilityCheckParallel is finalCompatibilityCheck's concurrent
// counterpart: every inner external atom the propagator has not already
// decided is evaluated as a separate task on pool, rather than one at a
// time. Learned nogoods are added to the shared solver as they arrive
// (solver.GroundSolver.AddNogood is safe for concurrent callers on both
// shipped backends); learnFunctional's shared functionalGroups map is
// guarded by mg.groupMu for the same reason.
func (mg *ModelGenerator) finalCompatibilityCheckParallel(ctx context.Context, pool *parallel.Pool, candidate *ground.Interpretation) (bool, error) {
	var pending []*externalState
	for _, x := range mg.inner {
		if x.evaluated {
			if !x.verified {
				return false, nil
			}
			continue
		}
		pending = append(pending, x)
	}
	if len(pending) == 0 {
		return true, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, x := range pending {
		x := x
		g.Go(func() error {
			return pool.Submit(gctx, func(ctx context.Context) error {
				ngs, err := mg.evaluate(ctx, x, candidate)
				if err != nil {
					return err
				}
				for _, ng := range ngs {
					if err := mg.solv.AddNogood(ng); err != nil {
						return fmt.Errorf("engine: finalCompatibilityCheckParallel: %w", err)
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, x := range pending {
		if !x.evaluated || !x.verified {
			return false, nil
		}
	}
	return true, nil
}
