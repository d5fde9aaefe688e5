// Package workpool implements spec §5's shared bounded goroutine pool for
// compute-heavy fan-out (the engine runs its per-channel mipmap builds
// on it), grounded on the teacher's channel-based
// go_optimized/pkg/parallel.SessionPool pattern, generalized from a fixed
// resource pool to a bounded-concurrency task runner via
// golang.org/x/sync/errgroup and golang.org/x/sync/semaphore.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the goroutines running at once across all Run calls on it,
// sized to GOMAXPROCS by default.
type Pool struct {
	sem *semaphore.Weighted
	n   int64
}

// New returns a Pool sized to GOMAXPROCS. size <= 0 selects that default.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), n: int64(size)}
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int { return int(p.n) }

// Run executes fn once per item in [0, count), bounded by the pool's
// concurrency limit, and returns the first error encountered (cancelling
// the rest via ctx).
func (p *Pool) Run(ctx context.Context, count int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		if err := p.sem.Acquire(gctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// RunEach is Run without error propagation, for fan-out work that cannot
// fail (pure numeric transforms); panics still propagate.
func (p *Pool) RunEach(count int, fn func(i int)) {
	_ = p.Run(context.Background(), count, func(_ context.Context, i int) error {
		fn(i)
		return nil
	})
}
