package requester

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrTimeout is returned when a task outlives its time budget.
var ErrTimeout = errors.New("task timed out")

// TimeoutPool runs tasks on a bounded goroutine pool and stops waiting for
// them after a deadline. A task that ignores its context keeps its worker
// until it returns; once every worker is stuck, new tasks are rejected
// instead of piling up goroutines.
type TimeoutPool struct {
	pool *ants.Pool

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	timedOut  atomic.Int64
	rejected  atomic.Int64
}

// NewTimeoutPool creates a pool with size workers
func NewTimeoutPool(size int) (*TimeoutPool, error) {
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &TimeoutPool{pool: pool}, nil
}

// Run executes task with a context that expires after timeout and waits at
// most that long. It returns ErrTimeout on expiry, the parent context error
// on cancellation, or the pool error when no worker is free.
func (p *TimeoutPool) Run(ctx context.Context, timeout time.Duration, task func(ctx context.Context)) error {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	done := make(chan struct{})

	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer cancel()
		defer close(done)
		task(taskCtx)
		p.completed.Add(1)
	})
	if err != nil {
		cancel()
		p.rejected.Add(1)
		return err
	}

	select {
	case <-done:
		return nil
	case <-taskCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-done:
			return nil
		default:
		}
		p.timedOut.Add(1)
		return ErrTimeout
	}
}

// Release shuts the pool down. Tasks still running finish on their own.
func (p *TimeoutPool) Release() {
	p.pool.Release()
}

// PoolStats holds pool counters.
type PoolStats struct {
	Running   int
	Capacity  int
	Submitted int64
	Completed int64
	TimedOut  int64
	Rejected  int64
}

// Stats returns current worker pool statistics
func (p *TimeoutPool) Stats() PoolStats {
	return PoolStats{
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		TimedOut:  p.timedOut.Load(),
		Rejected:  p.rejected.Load(),
	}
}
