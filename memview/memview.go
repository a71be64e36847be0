// Package memview implements the Guest Memory View (spec.md §4.1): a
// bounded byte buffer addressable by guest pointers, plus the opaque ABI
// register file boot setup code seeds. Handlers and boot-image loaders
// never touch host memory directly on behalf of a guest address; every
// access goes through this interface.
package memview

import "github.com/aurora-os/guestcore/errno"

// View is the interface the syscall core and boot-image loaders depend
// on. Real backings (a flat byte slice, a memory-mapped file, a remote
// hypervisor's shared memory region) implement it; the core never knows
// or cares which.
type View interface {
	// Read copies len(out) bytes starting at addr into out. Fails with
	// EFAULT if addr+len exceeds the view, or if addr == 0 and len(out) > 0.
	Read(addr uint64, out []byte) error
	// Write copies src into the view starting at addr. Same bounds contract
	// as Read.
	Write(addr uint64, src []byte) error
	// Size reports the addressable length of the view.
	Size() uint64
	// RegisterSet seeds an ABI register (x0-x3 on ARM64, ESP/EBP on x86).
	// Opaque to the core; used only by boot setup code.
	RegisterSet(index int, value uint64)
	// RegisterGet returns a previously seeded register value, or 0.
	RegisterGet(index int) uint64
}

// Bounded is the default in-process View: a flat byte slice sized at
// construction time. This is the backing every test in this module uses,
// and what an embedder uses when it isn't fronting a real hypervisor.
type Bounded struct {
	buf  []byte
	regs map[int]uint64
}

// New allocates a Bounded view of the given size in bytes.
func New(size uint64) *Bounded {
	return &Bounded{
		buf:  make([]byte, size),
		regs: make(map[int]uint64),
	}
}

func (b *Bounded) Size() uint64 { return uint64(len(b.buf)) }

func (b *Bounded) bounds(addr uint64, length int) error {
	if length == 0 {
		return nil
	}
	if addr == 0 {
		return errno.EFAULT
	}
	end := addr + uint64(length)
	if end < addr || end > b.Size() {
		return errno.EFAULT
	}
	return nil
}

func (b *Bounded) Read(addr uint64, out []byte) error {
	if err := b.bounds(addr, len(out)); err != nil {
		return err
	}
	copy(out, b.buf[addr:addr+uint64(len(out))])
	return nil
}

func (b *Bounded) Write(addr uint64, src []byte) error {
	if err := b.bounds(addr, len(src)); err != nil {
		return err
	}
	copy(b.buf[addr:addr+uint64(len(src))], src)
	return nil
}

// WriteAt is a convenience for loaders copying a whole image segment in
// one shot without allocating an intermediate read buffer.
func (b *Bounded) WriteAt(addr uint64, src []byte) error {
	return b.Write(addr, src)
}

func (b *Bounded) RegisterSet(index int, value uint64) {
	b.regs[index] = value
}

func (b *Bounded) RegisterGet(index int) uint64 {
	return b.regs[index]
}

// Register indices used by the boot-image loaders (spec.md §4.5, §4.7).
const (
	RegX0  = 0
	RegX1  = 1
	RegX2  = 2
	RegX3  = 3
	RegESP = 100
	RegEBP = 101
)
