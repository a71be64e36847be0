package syscallapi

import "github.com/aurora-os/guestcore/errno"

// Signal handlers (spec.md §4.3 "Signals"). Backed by kernel.State's
// fixed-size SigAction table and the single Sigmask word.

const (
	sigBlock   = 0
	sigUnblock = 1
	sigSetmask = 2
)

func registerSignals(t *Table) {
	t.register(SysRtSigaction, func(c *Ctx, a [6]uint64) int32 {
		signum := int(a[0])
		action, e := c.Kernel.SigActionAt(signum)
		if e != errno.OK {
			return fail(e)
		}
		if a[2] != 0 {
			writeU64(c, a[2], action.HandlerPtr)
			writeU64(c, a[2]+8, action.Flags)
			writeU64(c, a[2]+16, action.Mask)
		}
		if a[1] != 0 {
			if p, ok := readU64(c, a[1]); ok {
				action.HandlerPtr = p
			}
			if f, ok := readU64(c, a[1]+8); ok {
				action.Flags = f
			}
			if m, ok := readU64(c, a[1]+16); ok {
				action.Mask = m
			}
		}
		return 0
	})

	t.register(SysRtSigprocmask, func(c *Ctx, a [6]uint64) int32 {
		how := int(a[0])
		if a[2] != 0 {
			writeU64(c, a[2], c.Kernel.Sigmask)
		}
		if a[1] == 0 {
			return 0
		}
		set, ok := readU64(c, a[1])
		if !ok {
			return fail(errno.EFAULT)
		}
		switch how {
		case sigBlock:
			c.Kernel.Sigmask |= set
		case sigUnblock:
			c.Kernel.Sigmask &^= set
		case sigSetmask:
			c.Kernel.Sigmask = set
		default:
			return fail(errno.EINVAL)
		}
		return 0
	})

	t.register(SysRtSigpending, func(c *Ctx, a [6]uint64) int32 {
		writeU64(c, a[0], 0)
		return 0
	})

	t.register(SysSigaltstack, func(c *Ctx, a [6]uint64) int32 {
		if a[1] != 0 {
			var zero [24]byte
			_ = c.Mem.Write(a[1], zero[:])
		}
		return 0
	})
}
