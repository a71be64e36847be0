package syscallapi

// Scheduling handlers (spec.md §4.3 "Scheduling"). A guest container is
// modeled as a single-priority, single-CPU process; these exist so a
// guest libc's startup path doesn't trip over -ENOSYS.

const (
	schedPriorityMax = 99
	schedPriorityMin = 1
)

func registerSched(t *Table) {
	t.register(SysSchedYield, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysGetpriority, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysSetpriority, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysSchedSetscheduler, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysSchedGetscheduler, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysSchedGetPriorityMax, func(c *Ctx, a [6]uint64) int32 { return schedPriorityMax })
	t.register(SysSchedGetPriorityMin, func(c *Ctx, a [6]uint64) int32 { return schedPriorityMin })

	t.register(SysSchedGetaffinity, func(c *Ctx, a [6]uint64) int32 {
		if a[2] != 0 {
			writeU32(c, a[2], 1)
		}
		return 0
	})
	t.register(SysSchedSetaffinity, func(c *Ctx, a [6]uint64) int32 { return 0 })
}
