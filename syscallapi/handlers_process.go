package syscallapi

import "github.com/aurora-os/guestcore/errno"

// Process control handlers (spec.md §4.3 "Process control"). There is no
// real process tree: exec-family calls are unsupported (a guest container
// is a single logical thread of execution), and wait-family calls report
// "no children" since nothing ever forks.

func registerProcess(t *Table) {
	noChild := func(c *Ctx, a [6]uint64) int32 { return fail(errno.ECHILD) }
	t.register(SysFork, func(c *Ctx, a [6]uint64) int32 { return fail(errno.ENOSYS) })
	t.register(SysVfork, func(c *Ctx, a [6]uint64) int32 { return fail(errno.ENOSYS) })
	t.register(SysClone, func(c *Ctx, a [6]uint64) int32 { return fail(errno.ENOSYS) })
	t.register(SysExecve, func(c *Ctx, a [6]uint64) int32 { return fail(errno.ENOSYS) })

	t.register(SysWait4, noChild)
	t.register(SysWaitid, noChild)

	sendSignal := func(c *Ctx, targetPID int32) int32 {
		if targetPID != c.Kernel.Identity.PID && targetPID != 0 {
			return fail(errno.ESRCH)
		}
		return 0
	}
	t.register(SysKill, func(c *Ctx, a [6]uint64) int32 {
		return sendSignal(c, int32(a[0]))
	})
	t.register(SysTkill, func(c *Ctx, a [6]uint64) int32 {
		if int32(a[0]) != c.Kernel.Identity.TID {
			return fail(errno.ESRCH)
		}
		return 0
	})
	t.register(SysTgkill, func(c *Ctx, a [6]uint64) int32 {
		if int32(a[0]) != c.Kernel.Identity.PID || int32(a[1]) != c.Kernel.Identity.TID {
			return fail(errno.ESRCH)
		}
		return 0
	})

	t.register(SysExit, func(c *Ctx, a [6]uint64) int32 { return int32(a[0]) })
	t.register(SysExitGroup, func(c *Ctx, a [6]uint64) int32 { return int32(a[0]) })
}
