package guest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Pool pre-warms a fixed number of freshly Initialized guests of one arch
// so a driver can Acquire one without paying create() latency on the hot
// path (spec.md §9 supplemented feature: the spec documents guest
// creation but not a pooling discipline; adapted from the teacher's
// generic container pool).
type Pool struct {
	pool        chan *Guest
	arch        Arch
	maxSize     int
	currentSize int
	mu          sync.Mutex
	closing     bool
	manager     *Manager
}

var ErrPoolClosing = errors.New("guest: pool is shutting down")

// NewPool fills the pool with maxSize/2 pre-created guests up front, the
// rest created lazily on Acquire (mirrors the teacher's container pool
// warm/cold split).
func NewPool(ctx context.Context, m *Manager, arch Arch, maxSize int) (*Pool, error) {
	p := &Pool{
		pool:    make(chan *Guest, maxSize),
		arch:    arch,
		maxSize: maxSize,
		manager: m,
	}
	for i := 0; i < maxSize/2; i++ {
		g, err := m.Create(ctx, "", arch)
		if err != nil {
			return nil, err
		}
		p.pool <- g
		p.currentSize++
	}
	return p, nil
}

// Acquire returns a pooled guest, creating a fresh one if the pool has
// spare capacity, or blocking until one is released otherwise.
func (p *Pool) Acquire(ctx context.Context) (*Guest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return nil, ErrPoolClosing
	}
	select {
	case g := <-p.pool:
		slog.InfoContext(ctx, "Pool.Acquire", "id", g.ID, "reused", true)
		return g, nil
	default:
		if p.currentSize < p.maxSize {
			g, err := p.manager.Create(ctx, "", p.arch)
			if err != nil {
				return nil, err
			}
			p.currentSize++
			slog.InfoContext(ctx, "Pool.Acquire", "id", g.ID, "reused", false)
			return g, nil
		}
		g := <-p.pool
		slog.InfoContext(ctx, "Pool.Acquire", "id", g.ID, "reused", true, "waited", true)
		return g, nil
	}
}

// Release returns g to the pool for reuse.
func (p *Pool) Release(ctx context.Context, g *Guest) {
	p.pool <- g
	slog.InfoContext(ctx, "Pool.Release", "id", g.ID)
}

// Shutdown stops accepting Acquire calls and destroys every pooled guest.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
	for {
		select {
		case g := <-p.pool:
			_ = p.manager.Destroy(ctx, g.ID)
			p.mu.Lock()
			p.currentSize--
			done := p.currentSize <= 0
			p.mu.Unlock()
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
