package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoChunker/internal/metrics"
)

var ErrPoolClosed = errors.New("engine pool closed")

// Factory builds one engine. It is called at most once per pool worker,
// on that worker's first task.
type Factory func() (Engine, error)

type task struct {
	fn   func(Engine) error
	done chan error
}

// Pool runs tasks on a fixed set of worker goroutines. Each worker owns a
// private engine and passes it to the task closure; engines never move
// between workers.
type Pool struct {
	factory Factory
	tasks   chan task
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	busy    int64
	engines int64
}

func NewPool(size int, factory Factory) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		factory: factory,
		tasks:   make(chan task),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Do hands fn to the next free worker and waits for it. ctx bounds the wait
// for a free worker only; a started task always finishes.
func (p *Pool) Do(ctx context.Context, fn func(Engine) error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()
	return <-t.done
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	var eng Engine
	defer func() {
		if eng != nil {
			if err := eng.Close(); err != nil {
				logger.Warn("engine close failed", "worker", id, "error", err)
			}
		}
	}()

	for t := range p.tasks {
		if eng == nil {
			start := time.Now()
			e, err := p.factory()
			if err != nil {
				t.done <- err
				continue
			}
			eng = e
			atomic.AddInt64(&p.engines, 1)
			metrics.CaptureExecutionMetrics("engine_construct", time.Since(start))
			logger.Debug("created worker engine", "worker", id)
		}
		atomic.AddInt64(&p.busy, 1)
		t.done <- p.run(eng, t)
		atomic.AddInt64(&p.busy, -1)
	}
}

func (p *Pool) run(eng Engine, t task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = engineFailure("", "engine panicked")
			logger.Error("engine task panicked", "panic", rec)
		}
	}()
	return t.fn(eng)
}

// Engines reports how many engines the pool has built so far.
func (p *Pool) Engines() int {
	return int(atomic.LoadInt64(&p.engines))
}

func (p *Pool) Busy() int {
	return int(atomic.LoadInt64(&p.busy))
}

// Close stops accepting tasks, waits for running ones and closes every
// engine.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
