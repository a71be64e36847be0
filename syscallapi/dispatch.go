// Package syscallapi implements the Linux x86-64 syscall dispatch table
// (spec.md §4.2) and its handlers (spec.md §4.3): a sparse table over a
// fixed numbering space, lazily initialized, idempotent, with every
// unassigned slot resolving to -ENOSYS.
package syscallapi

import (
	"sync"

	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
	"github.com/aurora-os/guestcore/memview"
)

// Ctx is the per-invocation context every handler receives: the kernel
// state singleton and the guest's memory view. Handlers read/write
// kernel state directly and access guest memory only through Mem.
type Ctx struct {
	Kernel *kernel.State
	Mem    memview.View
	// Identity overrides for uname(2); set by the guest container.
	Sysname, Nodename, Release, Version, Machine string
}

// Handler is the contract every syscall implementation satisfies
// (spec.md §4.2): six 64-bit arguments in, one signed 32-bit result out.
type Handler func(ctx *Ctx, args [6]uint64) int32

// Table is a sparse dispatch table indexed by syscall number.
type Table struct {
	once     sync.Once
	handlers [TableSize]Handler
}

var defaultTable Table

// Dispatch routes syscall number n to its handler, per spec.md §4.2:
// lazily initializes the table, bounds-checks n, invokes the handler (or
// returns -ENOSYS for an unbound or out-of-range slot).
func Dispatch(ctx *Ctx, n int, args [6]uint64) int32 {
	return defaultTable.Dispatch(ctx, n, args)
}

// IsImplemented reports whether slot n is bound to a non-ENOSYS handler.
func IsImplemented(n int) bool {
	return defaultTable.IsImplemented(n)
}

func (t *Table) ensureInit() {
	t.once.Do(func() {
		registerAll(t)
	})
}

func (t *Table) Dispatch(ctx *Ctx, n int, args [6]uint64) int32 {
	t.ensureInit()
	if n < 0 || n >= TableSize {
		return errno.ENOSYS.Negate()
	}
	h := t.handlers[n]
	if h == nil {
		return errno.ENOSYS.Negate()
	}
	return h(ctx, args)
}

func (t *Table) IsImplemented(n int) bool {
	t.ensureInit()
	if n < 0 || n >= TableSize {
		return false
	}
	return t.handlers[n] != nil
}

// register binds a handler to a syscall number. Re-registering the same
// number is allowed (registerAll is idempotent by construction: sync.Once
// runs it exactly once per Table).
func (t *Table) register(n int, h Handler) {
	t.handlers[n] = h
}

// ok is a small helper most handlers end on: a non-negative result is
// success, a negative errno.Errno is a failure.
func ok(v int32) int32 { return v }

func fail(e errno.Errno) int32 { return e.Negate() }
