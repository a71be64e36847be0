package syscallapi

import (
	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
)

// Event, notification and futex handlers (spec.md §4.3 "Epoll, event,
// notify and futex"). epoll_create/timerfd/eventfd/signalfd/inotify_init
// all allocate an Event-kind fd and behave as an always-ready, never-
// triggering source; futex implements only the WAIT/WAKE ops a guest
// libc's mutex fast path needs.

const (
	futexOpMask = 0x7F
	futexWait   = 0
	futexWake   = 1
)

func registerEvents(t *Table) {
	allocEvent := func(c *Ctx, a [6]uint64) int32 {
		fd, e := c.Kernel.AllocFD(kernel.KindEvent, 0)
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	}
	for _, n := range []int{SysEpollCreate, SysEpollCreate1, SysTimerfdCreate,
		SysEventfd, SysEventfd2, SysSignalfd, SysSignalfd4,
		SysInotifyInit, SysInotifyInit1} {
		t.register(n, allocEvent)
	}

	zero := func(c *Ctx, a [6]uint64) int32 { return 0 }
	t.register(SysEpollCtl, zero)
	t.register(SysEpollWait, zero)
	t.register(SysEpollPwait, zero)
	t.register(SysTimerfdSettime, zero)
	t.register(SysTimerfdGettime, zero)
	t.register(SysInotifyRmWatch, zero)

	t.register(SysInotifyAddWatch, func(c *Ctx, a [6]uint64) int32 { return 1 })

	t.register(SysFutex, func(c *Ctx, a [6]uint64) int32 {
		op := int(a[1]) & futexOpMask
		switch op {
		case futexWait:
			return fail(errno.EAGAIN)
		case futexWake:
			return 0
		default:
			return 0
		}
	})
}
