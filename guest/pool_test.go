package guest

import (
	"context"
	"testing"
	"time"
)

func TestNewPoolPreWarmsHalfCapacity(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	p, err := NewPool(context.Background(), m, ArchLinux, 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if len(p.pool) != 2 {
		t.Errorf("pre-warmed pool size = %d, want 2", len(p.pool))
	}
	if len(m.List()) != 2 {
		t.Errorf("Manager registry has %d guests, want the 2 pre-warmed ones", len(m.List()))
	}
}

func TestPoolAcquireReusesThenGrows(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	p, err := NewPool(ctx, m, ArchLinux, 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	g1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	g2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if g1 == g2 {
		t.Fatal("Acquire returned the same guest twice without a Release between")
	}

	// The pre-warmed pair is exhausted; the next Acquire must create fresh.
	g3, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after pre-warm exhausted: %v", err)
	}
	if g3 == nil || g3.ID == "" {
		t.Fatal("Acquire did not return a valid guest once the pre-warm pool was empty")
	}
}

func TestPoolReleaseMakesGuestReacquirable(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	p, err := NewPool(ctx, m, ArchLinux, 2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	g, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(ctx, g)

	got, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
	if got != g {
		t.Error("Acquire after Release did not return the released guest")
	}
}

func TestPoolShutdownDestroysPooledGuestsAndRejectsAcquire(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	p, err := NewPool(ctx, m, ArchLinux, 2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := p.Acquire(ctx); err != ErrPoolClosing {
		t.Errorf("Acquire after Shutdown = %v, want ErrPoolClosing", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("Shutdown left %d guests in the registry, want 0", len(m.List()))
	}
}
