package propagation

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// Pool fans per-satellite work out to a fixed number of goroutines.
//
// Each unit of work (one satellite over one time range) writes into its own
// pre-sized output slot, so jobs share no mutable state and need no locking.
// Cancellation stops job submission; results already written stay valid.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool. workers <= 0 selects runtime.NumCPU().
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, logger: logger}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Run invokes fn for every index in [0, n), spread across the pool's
// workers. fn must confine its writes to the slot belonging to its index.
// Returns context.Canceled/DeadlineExceeded if cancellation stopped
// submission before all indexes were handed out.
func (p *Pool) Run(ctx context.Context, n int, fn func(idx int)) error {
	if n <= 0 {
		return nil
	}

	workers := p.workers
	if workers > n {
		workers = n
	}

	jobs := make(chan int, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fn(idx)
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			p.logger.Debug("worker pool cancelled", "submitted", i, "total", n)
			break feed
		}
	}
	close(jobs)

	wg.Wait()
	return ctx.Err()
}
