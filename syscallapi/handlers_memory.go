package syscallapi

import (
	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
)

// Memory handlers (spec.md §4.3 "Memory").

func pageAlign(v uint64) uint64 {
	const pageSize = 4096
	return (v + pageSize - 1) / pageSize * pageSize
}

func registerMemory(t *Table) {
	t.register(SysBrk, func(c *Ctx, a [6]uint64) int32 {
		addr := a[0]
		if addr == 0 {
			return int32(c.Kernel.BrkPtr)
		}
		if addr >= kernel.BrkMin && addr <= kernel.BrkMax {
			c.Kernel.BrkPtr = addr
		}
		return int32(c.Kernel.BrkPtr)
	})

	t.register(SysMmap, func(c *Ctx, a [6]uint64) int32 {
		addr, length, prot, flags := a[0], a[1], int32(a[2]), int32(a[3])
		if length == 0 {
			return fail(errno.EINVAL)
		}
		if addr == 0 {
			addr = c.Kernel.MmapBump
			c.Kernel.MmapBump += pageAlign(length)
		}
		if e := c.Kernel.AllocMmap(addr, length, prot, flags); e != errno.OK {
			return fail(e)
		}
		return int32(addr)
	})

	t.register(SysMunmap, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.FreeMmap(a[0])
		return 0
	})

	t.register(SysMprotect, func(c *Ctx, a [6]uint64) int32 {
		if m := c.Kernel.MmapByAddr(a[0]); m != nil {
			m.Prot = int32(a[2])
		}
		return 0
	})

	t.register(SysMremap, func(c *Ctx, a [6]uint64) int32 {
		oldAddr, newSize := a[0], a[1]
		m := c.Kernel.MmapByAddr(oldAddr)
		if m == nil {
			return fail(errno.EFAULT)
		}
		m.Size = newSize
		return int32(oldAddr)
	})

	noop0 := func(c *Ctx, a [6]uint64) int32 { return 0 }
	for _, n := range []int{SysMadvise, SysMlock, SysMunlock, SysMlockall, SysMunlockall} {
		t.register(n, noop0)
	}
}
