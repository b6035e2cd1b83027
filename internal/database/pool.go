package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Worker is one pool slot. A worker holds its handle exclusively between
// Acquire and Release, so handles are never used by two goroutines at once.
type Worker struct {
	ID int
	DatabaseInterface
}

// PoolStats is a point-in-time view of the pool
type PoolStats struct {
	Size  int `json:"size"`
	InUse int `json:"in_use"`
	Open  int `json:"open"`
}

// Pool owns a fixed set of per-worker handles
type Pool struct {
	workers []*Worker
	free    chan *Worker
	// resetting admits one ResetAll at a time
	resetting chan struct{}

	mu     sync.Mutex
	inUse  int
	closed bool
}

// NewPool builds size handles with factory. Handles open lazily.
func NewPool(size int, factory func(id int) (DatabaseInterface, error)) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		workers:   make([]*Worker, 0, size),
		free:      make(chan *Worker, size),
		resetting: make(chan struct{}, 1),
	}
	for i := 0; i < size; i++ {
		db, err := factory(i)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		w := &Worker{ID: i, DatabaseInterface: db}
		p.workers = append(p.workers, w)
		p.free <- w
	}
	return p, nil
}

// Acquire waits for a free worker or for ctx to end
func (p *Pool) Acquire(ctx context.Context) (*Worker, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	select {
	case w := <-p.free:
		p.mu.Lock()
		p.inUse++
		p.mu.Unlock()
		return w, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrPoolBusy, ctx.Err())
	}
}

// Release returns a worker to the pool
func (p *Pool) Release(w *Worker) {
	if w == nil {
		return
	}
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	p.free <- w
}

// Dialect returns the dialect shared by all workers
func (p *Pool) Dialect() Dialect {
	if len(p.workers) == 0 {
		return DuckDBDialect
	}
	return p.workers[0].Dialect()
}

// Backend returns the backend name shared by all workers
func (p *Pool) Backend() string {
	if len(p.workers) == 0 {
		return ""
	}
	return p.workers[0].Backend()
}

// ResetAll takes every worker out of rotation and resets its handle.
// Waits for in-flight queries to finish first. Concurrent calls run one
// after another; two partial holds would otherwise starve each other.
func (p *Pool) ResetAll(ctx context.Context) error {
	select {
	case p.resetting <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for another reset: %w", ctx.Err())
	}
	defer func() { <-p.resetting }()

	held := make([]*Worker, 0, len(p.workers))
	defer func() {
		for _, w := range held {
			p.Release(w)
		}
	}()

	for range p.workers {
		w, err := p.Acquire(ctx)
		if err != nil {
			return err
		}
		held = append(held, w)
	}

	var errs []error
	for _, w := range held {
		if err := w.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", w.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Ping pings one worker
func (p *Pool) Ping(ctx context.Context) error {
	w, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(w)
	return w.Ping(ctx)
}

// Stats reports pool usage
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	inUse := p.inUse
	p.mu.Unlock()

	open := 0
	for _, w := range p.workers {
		if w.IsOpen() {
			open++
		}
	}
	return PoolStats{Size: len(p.workers), InUse: inUse, Open: open}
}

// Close closes every handle. Further Acquire calls fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, w := range p.workers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
