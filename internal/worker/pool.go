// Package worker wraps an ants goroutine pool with context-aware submission.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"leanpulse/internal/types"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

const shutdownTimeout = 30 * time.Second

// Task is a context-aware unit of work.
type Task func(ctx context.Context)

// Pool is a bounded goroutine pool. Submission blocks while all workers are busy.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger types.Logger
}

// NewPool creates a pool of size workers. A panicking task is logged and does
// not take down the worker.
func NewPool(name string, size int, logger types.Logger) (*Pool, error) {
	if logger == nil {
		logger = types.NopLogger{}
	}
	if size <= 0 {
		size = 1
	}
	p := &Pool{name: name, logger: logger}

	ap, err := ants.NewPool(size,
		ants.WithPanicHandler(func(v any) {
			logger.Error("worker panic recovered", "pool", name, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("worker: create pool %s: %w", name, err)
	}
	p.pool = ap
	return p, nil
}

// Submit queues task. If ctx is already cancelled it returns ctx.Err(); a task
// whose ctx is cancelled while queued is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	return p.submit(ctx, task, nil)
}

// submit queues task and runs done once the task finishes or is skipped.
// done is not called when submission itself fails.
func (p *Pool) submit(ctx context.Context, task Task, done func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.pool.Submit(func() {
		if done != nil {
			defer done()
		}
		if ctx.Err() != nil {
			p.logger.Warn("task skipped: context cancelled", "pool", p.name)
			return
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// RunAll submits every task and waits for all submitted tasks to finish or be
// skipped. It returns the number of tasks submitted and the first submission
// error. Tasks already running are not interrupted by a submission error.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) (int, error) {
	var wg sync.WaitGroup
	submitted := 0
	var firstErr error
	for _, task := range tasks {
		wg.Add(1)
		if err := p.submit(ctx, task, wg.Done); err != nil {
			wg.Done()
			firstErr = err
			break
		}
		submitted++
	}
	wg.Wait()
	return submitted, firstErr
}

// Stats reports running, free and capacity counts.
func (p *Pool) Stats() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}

// Release waits up to 30s for running tasks, then frees the pool.
func (p *Pool) Release() {
	if err := p.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		p.logger.Warn("worker pool shutdown timeout", "pool", p.name, "error", err.Error())
	}
}
