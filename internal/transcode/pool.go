package transcode

import (
	"context"
	"sync"
)

// Pool is a fixed-size worker pool for CPU-bound work. Handlers run on
// the regular goroutine scheduler; decode/resize/encode is handed to
// this pool and awaited, so image work cannot starve request I/O.
type Pool struct {
	jobs      chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts size workers. size must be >= 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{jobs: make(chan func())}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Run executes fn on a pool worker and blocks until it finishes or ctx
// is done. When ctx wins, fn may still run later on the worker; its
// result is discarded.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	job := func() {
		done <- fn()
	}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after in-flight jobs finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
