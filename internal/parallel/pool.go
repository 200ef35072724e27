// Package parallel provides a bounded worker pool backing the async
// producer/verifier execution variant of spec.md §5: the verifier side
// fans oracle.Oracle.Retrieve calls for several inner external atoms out
// across a fixed number of goroutines rather than evaluating them one at a
// time.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrPoolShutdown is returned by Submit once Shutdown has been called.
var ErrPoolShutdown = errors.New("parallel: pool shut down")

// Pool is a fixed-size worker pool. Tasks are plain closures returning an
// error; Submit blocks until a worker has run the task, the context is
// cancelled, or the pool has been shut down.
type Pool struct {
	workers  int
	taskChan chan poolTask
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once

	stats *Stats
}

type poolTask struct {
	fn   func(context.Context) error
	done chan error
}

// New returns a Pool with workers goroutines. workers <= 0 defaults to
// runtime.NumCPU(), mirroring the teacher's worker-pool constructors.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers:  workers,
		taskChan: make(chan poolTask, workers*2),
		shutdown: make(chan struct{}),
		stats:    NewStats(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}
			start := time.Now()
			err := task.fn(context.Background())
			if err != nil {
				p.stats.RecordTaskFailed(err)
			} else {
				p.stats.RecordTaskCompleted(time.Since(start))
			}
			task.done <- err
		case <-p.shutdown:
			return
		}
	}
}

// Submit runs fn on a worker and blocks until it completes, ctx is done, or
// the pool is shut down. Submitting many calls concurrently (e.g. one per
// inner external atom being verified this step) is how callers get
// fan-out; Submit itself is synchronous per call so ordinary callers can
// `go pool.Submit(...)` per item and collect results over a channel, or use
// golang.org/x/sync/errgroup to bound concurrency further.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	p.stats.RecordTaskSubmitted()
	done := make(chan error, 1)
	select {
	case p.taskChan <- poolTask{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdown:
		return ErrPoolShutdown
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdown:
		select {
		case err := <-done:
			return err
		default:
			return ErrPoolShutdown
		}
	}
}

// Shutdown stops accepting new work and waits for in-flight tasks to drain.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdown)
		p.wg.Wait()
	})
}

// Stats returns the pool's running statistics.
func (p *Pool) Stats() *Stats { return p.stats }

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Stats is a trimmed-down ExecutionStats: just what a verifier-side oracle
// fan-out needs to report in logs, not the full scaling/deadlock telemetry
// a general-purpose scheduler would carry.
type Stats struct {
	mu sync.Mutex

	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	LastError      error

	totalDuration time.Duration
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) RecordTaskSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TasksSubmitted++
}

func (s *Stats) RecordTaskCompleted(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TasksCompleted++
	s.totalDuration += d
}

func (s *Stats) RecordTaskFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TasksFailed++
	s.LastError = err
}

// AverageTaskDuration returns the mean duration of completed tasks.
func (s *Stats) AverageTaskDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TasksCompleted == 0 {
		return 0
	}
	return s.totalDuration / time.Duration(s.TasksCompleted)
}
