package analysis

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of provider calls in flight across the process.
// One Gate is built at startup and shared by every request.
type Gate struct {
	sem  *semaphore.Weighted
	size int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	inFlight atomic.Int64
}

// NewGate returns a gate admitting at most size concurrent holders.
func NewGate(size int) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size is the gate capacity.
func (g *Gate) Size() int { return g.size }

// InFlight is the number of current holders.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Acquire blocks until a slot is free or ctx is done. The returned release
// must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return nil, ErrGateClosed
	}
	g.wg.Add(1)
	g.mu.RUnlock()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		g.wg.Done()
		return nil, err
	}
	g.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
			g.wg.Done()
		})
	}, nil
}

// Close rejects new acquisitions and waits for current holders to release.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
