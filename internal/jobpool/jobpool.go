// Package jobpool runs keyed background jobs with at most one job in flight per key.
//
// Results are not delivered through callbacks: the owner collects them with Drain from its
// own goroutine, in completion order. This keeps every consumer-side mutation (texture
// uploads, cache installs) on the goroutine that owns the consumer state.
package jobpool

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/gammazero/deque"
	"golang.org/x/time/rate"
)

type Result[K comparable, R any] struct {
	Key   K
	Value R
}

type Stats struct {
	Submitted int
	Coalesced int
	Completed int
	Discarded int
}

type job[K comparable, R any] struct {
	key K
	fn  func(context.Context) R
}

type config struct {
	workers int
	limit   rate.Limit
	burst   int
	logger  *slog.Logger
}

type Option func(*config)

// WithWorkers sets the number of worker goroutines (default GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithRate limits how many jobs start per second. Zero or negative means unlimited.
func WithRate(perSecond float64, burst int) Option {
	return func(c *config) {
		if perSecond > 0 {
			c.limit = rate.Limit(perSecond)
			c.burst = max(burst, 1)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

type Pool[K comparable, R any] struct {
	logger  *slog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   deque.Deque[job[K, R]]
	pending map[K]struct{} // queued, running or completed but not drained
	done    []Result[K, R]
	stats   Stats

	wake   chan struct{}
	jobs   chan job[K, R]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New[K comparable, R any](opts ...Option) *Pool[K, R] {
	cfg := config{
		workers: runtime.GOMAXPROCS(0),
		limit:   rate.Inf,
		burst:   1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.workers = max(cfg.workers, 1)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[K, R]{
		logger:  cfg.logger,
		limiter: rate.NewLimiter(cfg.limit, cfg.burst),
		pending: make(map[K]struct{}),
		wake:    make(chan struct{}, 1),
		jobs:    make(chan job[K, R]),
		cancel:  cancel,
	}

	p.wg.Add(1 + cfg.workers)
	go p.dispatch(ctx)
	for range cfg.workers {
		go p.work(ctx)
	}
	return p
}

// Submit enqueues fn under key. It returns false without enqueueing when a job for key is
// already queued, running, or completed with its result not yet drained.
func (p *Pool[K, R]) Submit(key K, fn func(context.Context) R) bool {
	p.mu.Lock()
	if _, ok := p.pending[key]; ok {
		p.stats.Coalesced++
		p.mu.Unlock()
		return false
	}
	p.pending[key] = struct{}{}
	p.queue.PushBack(job[K, R]{key: key, fn: fn})
	p.stats.Submitted++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports whether a job for key is queued, running or waiting to be drained.
func (p *Pool[K, R]) Pending(key K) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[key]
	return ok
}

// Drain returns the results completed since the previous call, in completion order.
func (p *Pool[K, R]) Drain() []Result[K, R] {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := p.done
	p.done = nil
	for _, r := range done {
		delete(p.pending, r.Key)
	}
	return done
}

// Discard drops queued jobs whose key matches. Jobs already started are not interrupted;
// their results still arrive through Drain.
func (p *Pool[K, R]) Discard(match func(K) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for range p.queue.Len() {
		j := p.queue.PopFront()
		if match(j.key) {
			delete(p.pending, j.key)
			n++
			continue
		}
		p.queue.PushBack(j)
	}
	p.stats.Discarded += n
	return n
}

func (p *Pool[K, R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close stops the workers. Queued jobs are dropped; running jobs see their context cancelled.
func (p *Pool[K, R]) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Pool[K, R]) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 {
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			p.mu.Lock()
		}
		j := p.queue.PopFront()
		p.mu.Unlock()

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case p.jobs <- j:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool[K, R]) work(ctx context.Context) {
	defer p.wg.Done()

	for j := range p.jobs {
		value := j.fn(ctx)

		p.mu.Lock()
		p.done = append(p.done, Result[K, R]{Key: j.key, Value: value})
		p.stats.Completed++
		p.mu.Unlock()
	}
	p.logger.Debug("globetiles: worker stopped")
}
