// Package worker holds the in-process loops that drain lease queues and run
// periodic maintenance.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Runner runs tasks on their own tickers until Shutdown.
type Runner struct {
	name string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func NewRunner(name string) *Runner {
	return &Runner{name: name}
}

// Start must be called before Every.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s - Start - worker already started", r.name)
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	return nil
}

func (r *Runner) Every(interval time.Duration, task func(ctx context.Context)) {
	if interval <= 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task(r.ctx)
			}
		}
	}()
}

// Shutdown stops the tickers and waits for running tasks, then calls onDone.
func (r *Runner) Shutdown(ctx context.Context, onDone func()) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		if onDone != nil {
			onDone()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - Shutdown: %w", r.name, ctx.Err())
	}
}
