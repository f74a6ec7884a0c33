// Package workpool runs provider calls on a fixed set of workers fed from a
// bounded queue, optionally gated by a rate limiter.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Pool is a reusable worker-pool configuration. It holds no goroutines
// between calls and is safe for concurrent use.
type Pool struct {
	workers int
	queue   int
	limiter *rate.Limiter
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueueSize sets the bounded queue depth between the producer and the
// workers. Defaults to twice the worker count.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queue = n
		}
	}
}

// WithLimiter gates every task start on l, which may be shared with other
// pools. A nil limiter disables the gate.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *Pool) {
		p.limiter = l
	}
}

// New creates a pool with the given number of workers (minimum 1).
func New(workers int, opts ...Option) *Pool {
	p := &Pool{workers: max(workers, 1)}
	for _, o := range opts {
		o(p)
	}
	if p.queue <= 0 {
		p.queue = p.workers * 2
	}
	return p
}

// Workers returns the concurrency cap.
func (p *Pool) Workers() int {
	return p.workers
}

// Result is the outcome of one task, at its input position.
type Result[T any] struct {
	Value T
	Err   error
}

type task[In any] struct {
	idx  int
	item In
}

// Map runs fn for every item and returns results indexed like items. A
// failing task never cancels its siblings; per-item errors are reported in
// the result slice. When ctx ends, tasks that have not started report
// ctx.Err().
func Map[In, Out any](ctx context.Context, p *Pool, items []In, fn func(ctx context.Context, item In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	if len(items) == 0 {
		return results
	}

	queue := make(chan task[In], p.queue)
	started := make([]bool, len(items))

	go func() {
		defer close(queue)
		for i, it := range items {
			select {
			case queue <- task[In]{idx: i, item: it}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < min(p.workers, len(items)); w++ {
		g.Go(func() error {
			for t := range queue {
				started[t.idx] = true
				if p.limiter != nil {
					if err := p.limiter.Wait(ctx); err != nil {
						results[t.idx].Err = err
						continue
					}
				}
				if err := ctx.Err(); err != nil {
					results[t.idx].Err = err
					continue
				}
				v, err := fn(ctx, t.item)
				results[t.idx] = Result[Out]{Value: v, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		if !started[i] && results[i].Err == nil {
			results[i].Err = ctx.Err()
		}
	}
	return results
}
