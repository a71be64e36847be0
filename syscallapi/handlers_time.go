package syscallapi

import "github.com/aurora-os/guestcore/errno"

// Time handlers (spec.md §4.3 "Time"). The guest clock is a single
// microsecond counter (kernel.State.TimerUs) that nanosleep advances and
// settimeofday/clock_settime overwrite; everything else reads it.

const usPerSec = 1_000_000

func registerTime(t *Table) {
	writeTimeval := func(c *Ctx, addr uint64, us uint64) {
		writeU64(c, addr, us/usPerSec)
		writeU64(c, addr+8, us%usPerSec)
	}
	writeTimespec := func(c *Ctx, addr uint64, us uint64) {
		writeU64(c, addr, us/usPerSec)
		writeU64(c, addr+8, (us%usPerSec)*1000)
	}

	t.register(SysGettimeofday, func(c *Ctx, a [6]uint64) int32 {
		if a[0] != 0 {
			writeTimeval(c, a[0], c.Kernel.TimerUs)
		}
		return 0
	})
	t.register(SysSettimeofday, func(c *Ctx, a [6]uint64) int32 {
		if sec, ok := readU64(c, a[0]); ok {
			if usec, ok2 := readU64(c, a[0]+8); ok2 {
				c.Kernel.TimerUs = sec*usPerSec + usec
			}
		}
		return 0
	})

	t.register(SysClockGettime, func(c *Ctx, a [6]uint64) int32 {
		writeTimespec(c, a[1], c.Kernel.TimerUs)
		return 0
	})
	t.register(SysClockSettime, func(c *Ctx, a [6]uint64) int32 {
		if sec, ok := readU64(c, a[1]); ok {
			if nsec, ok2 := readU64(c, a[1]+8); ok2 {
				c.Kernel.TimerUs = sec*usPerSec + nsec/1000
			}
		}
		return 0
	})
	t.register(SysClockGetres, func(c *Ctx, a [6]uint64) int32 {
		if a[1] != 0 {
			writeU64(c, a[1], 0)
			writeU64(c, a[1]+8, 1000)
		}
		return 0
	})

	t.register(SysNanosleep, func(c *Ctx, a [6]uint64) int32 {
		sec, ok1 := readU64(c, a[0])
		nsec, ok2 := readU64(c, a[0]+8)
		if !ok1 || !ok2 {
			return fail(errno.EFAULT)
		}
		c.Kernel.TimerUs += sec*usPerSec + nsec/1000
		if a[1] != 0 {
			writeU64(c, a[1], 0)
			writeU64(c, a[1]+8, 0)
		}
		return 0
	})

	t.register(SysTime, func(c *Ctx, a [6]uint64) int32 {
		secs := int32(c.Kernel.TimerUs / usPerSec)
		if a[0] != 0 {
			writeU64(c, a[0], uint64(secs))
		}
		return secs
	})
}
