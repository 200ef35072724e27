package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasksConcurrently(t *testing.T) {
	pool := New(4)
	defer pool.Shutdown()

	var inFlight, peak int32
	observe := func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- pool.Submit(context.Background(), func(context.Context) error {
				observe()
				return nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.Greater(t, int(atomic.LoadInt32(&peak)), 1, "tasks should have overlapped")

	stats := pool.Stats()
	assert.EqualValues(t, 4, stats.TasksSubmitted)
	assert.EqualValues(t, 4, stats.TasksCompleted)
}

func TestPoolPropagatesTaskError(t *testing.T) {
	pool := New(2)
	defer pool.Shutdown()

	boom := errors.New("oracle unavailable")
	err := pool.Submit(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, boom, err)
	assert.EqualValues(t, 1, pool.Stats().TasksFailed)
}

func TestPoolSubmitAfterShutdownFails(t *testing.T) {
	pool := New(1)
	pool.Shutdown()

	err := pool.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestPoolSubmitRespectsContextCancellation(t *testing.T) {
	pool := New(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	go pool.Submit(context.Background(), func(context.Context) error {
		<-block
		return nil
	})
	// The single worker is now occupied; a second submit with an
	// already-cancelled context must not block forever.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Submit(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}
