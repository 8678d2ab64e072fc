package worker

import (
	"context"
	"sync"
)

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
}

// Start consumes Jobs in order on one goroutine. Each job holds a slot of the
// shared Sem while it runs.
func Start[J any](opts StartOptions[J]) {
	go func() {
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
			}
		}
	}()
}

func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}

// Pool keeps one ordered worker per key, started on first use, with a global
// concurrency limit across keys.
type Pool[K comparable, J any] struct {
	ctx     context.Context
	sem     chan struct{}
	buffer  int
	handle  func(context.Context, K, J)
	mu      sync.Mutex
	workers map[K]chan J
}

func NewPool[K comparable, J any](ctx context.Context, maxConcurrency, buffer int, handle func(context.Context, K, J)) *Pool[K, J] {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Pool[K, J]{
		ctx:     ctx,
		sem:     make(chan struct{}, maxConcurrency),
		buffer:  buffer,
		handle:  handle,
		workers: make(map[K]chan J),
	}
}

// Submit blocks while the key's buffer is full, until ctx or the pool ends.
func (p *Pool[K, J]) Submit(ctx context.Context, key K, job J) error {
	return Enqueue(ctx, p.ctx, p.jobsFor(key), job)
}

func (p *Pool[K, J]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *Pool[K, J]) jobsFor(key K) chan J {
	p.mu.Lock()
	defer p.mu.Unlock()
	if jobs, ok := p.workers[key]; ok {
		return jobs
	}
	jobs := make(chan J, p.buffer)
	p.workers[key] = jobs
	Start(StartOptions[J]{
		Ctx:  p.ctx,
		Sem:  p.sem,
		Jobs: jobs,
		Handle: func(ctx context.Context, job J) {
			p.handle(ctx, key, job)
		},
	})
	return jobs
}
