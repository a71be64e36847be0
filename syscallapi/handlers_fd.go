package syscallapi

import (
	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
)

// File descriptor handlers (spec.md §4.3 "File descriptors (simulation,
// not real I/O)"). Reads/writes are simulated: they advance offset and
// size bookkeeping but never touch any backing storage.

func registerFD(t *Table) {
	t.register(SysOpen, func(c *Ctx, a [6]uint64) int32 {
		if a[0] == 0 {
			return fail(errno.EFAULT)
		}
		fd, e := c.Kernel.AllocFD(kernel.KindFile, uint32(a[1]))
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})
	t.register(SysOpenat, func(c *Ctx, a [6]uint64) int32 {
		if a[1] == 0 {
			return fail(errno.EFAULT)
		}
		fd, e := c.Kernel.AllocFD(kernel.KindFile, uint32(a[2]))
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})
	t.register(SysCreat, func(c *Ctx, a [6]uint64) int32 {
		if a[0] == 0 {
			return fail(errno.EFAULT)
		}
		fd, e := c.Kernel.AllocFD(kernel.KindFile, uint32(a[1]))
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})

	t.register(SysClose, func(c *Ctx, a [6]uint64) int32 {
		return fail(c.Kernel.CloseFD(int(a[0])))
	})

	t.register(SysRead, func(c *Ctx, a [6]uint64) int32 {
		fd := int(a[0])
		count := int64(a[2])
		if fd == 0 {
			return 0
		}
		slot, e := c.Kernel.FDAt(fd)
		if e != errno.OK {
			return fail(e)
		}
		if slot.Kind == kernel.KindPipeRead {
			return 0
		}
		n := slot.Size - slot.Offset
		if n > count {
			n = count
		}
		if n < 0 {
			n = 0
		}
		slot.Offset += n
		return int32(n)
	})

	t.register(SysWrite, func(c *Ctx, a [6]uint64) int32 {
		fd := int(a[0])
		count := int64(a[2])
		if fd == 1 || fd == 2 {
			return int32(count)
		}
		slot, e := c.Kernel.FDAt(fd)
		if e != errno.OK {
			return fail(e)
		}
		slot.Offset += count
		if slot.Offset > slot.Size {
			slot.Size = slot.Offset
		}
		return int32(count)
	})

	const (
		seekSet = 0
		seekCur = 1
		seekEnd = 2
	)
	t.register(SysLseek, func(c *Ctx, a [6]uint64) int32 {
		fd := int(a[0])
		offset := int64(a[1])
		whence := int(a[2])
		slot, e := c.Kernel.FDAt(fd)
		if e != errno.OK {
			return fail(e)
		}
		var newPos int64
		switch whence {
		case seekSet:
			if offset < 0 {
				return fail(errno.EINVAL)
			}
			newPos = offset
		case seekCur:
			newPos = slot.Offset + offset
		case seekEnd:
			newPos = slot.Size + offset
		default:
			return fail(errno.EINVAL)
		}
		if newPos < 0 {
			return fail(errno.EINVAL)
		}
		slot.Offset = newPos
		return int32(newPos)
	})

	t.register(SysDup, func(c *Ctx, a [6]uint64) int32 {
		fd, e := c.Kernel.DupFD(int(a[0]))
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})
	t.register(SysDup2, func(c *Ctx, a [6]uint64) int32 {
		src, dst := int(a[0]), int(a[1])
		if src == dst {
			if !c.Kernel.IsOpen(src) {
				return fail(errno.EBADF)
			}
			return int32(dst)
		}
		if e := c.Kernel.DupFDTo(src, dst); e != errno.OK {
			return fail(e)
		}
		return int32(dst)
	})
	t.register(SysDup3, func(c *Ctx, a [6]uint64) int32 {
		src, dst := int(a[0]), int(a[1])
		if src == dst {
			return fail(errno.EINVAL)
		}
		if e := c.Kernel.DupFDTo(src, dst); e != errno.OK {
			return fail(e)
		}
		const cloexec = 0x80000
		if a[2]&0x80000 != 0 {
			if slot, e := c.Kernel.FDAt(dst); e == errno.OK {
				slot.Flags |= cloexec
			}
		}
		return int32(dst)
	})

	t.register(SysPipe, func(c *Ctx, a [6]uint64) int32 {
		return pipeImpl(c, a[0], 0)
	})
	t.register(SysPipe2, func(c *Ctx, a [6]uint64) int32 {
		return pipeImpl(c, a[0], uint32(a[1]))
	})

	statLike := func(c *Ctx, a [6]uint64, bufArg int) int32 {
		var zero [144]byte
		if err := c.Mem.Write(a[uint64(bufArg)], zero[:]); err != nil {
			return fail(errno.EFAULT)
		}
		return 0
	}
	t.register(SysStat, func(c *Ctx, a [6]uint64) int32 { return statLike(c, a, 1) })
	t.register(SysFstat, func(c *Ctx, a [6]uint64) int32 { return statLike(c, a, 1) })
	t.register(SysLstat, func(c *Ctx, a [6]uint64) int32 { return statLike(c, a, 1) })
	t.register(SysNewfstatat, func(c *Ctx, a [6]uint64) int32 { return statLike(c, a, 2) })

	t.register(SysAccess, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysFaccessat, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysFtruncate, func(c *Ctx, a [6]uint64) int32 {
		slot, e := c.Kernel.FDAt(int(a[0]))
		if e != errno.OK {
			return fail(e)
		}
		slot.Size = int64(a[1])
		return 0
	})
	t.register(SysTruncate, func(c *Ctx, a [6]uint64) int32 { return 0 })

	for _, n := range []int{SysFsync, SysFdatasync, SysSyncfs} {
		n := n
		t.register(n, func(c *Ctx, a [6]uint64) int32 {
			if _, e := c.Kernel.FDAt(int(a[0])); e != errno.OK {
				return fail(e)
			}
			return 0
		})
	}
	t.register(SysSync, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysGetdents, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysGetdents64, func(c *Ctx, a [6]uint64) int32 { return 0 })

	const (
		tiocgwinsz = 0x5413
		fionread   = 0x541B
	)
	t.register(SysIoctl, func(c *Ctx, a [6]uint64) int32 {
		fd := int(a[0])
		if _, e := c.Kernel.FDAt(fd); e != errno.OK {
			return fail(e)
		}
		switch a[1] {
		case tiocgwinsz:
			var buf [8]byte
			buf[0], buf[1] = 24, 0
			buf[2], buf[3] = 80, 0
			buf[4], buf[5] = 640&0xFF, 640>>8
			buf[6], buf[7] = 480&0xFF, 480>>8
			_ = c.Mem.Write(a[2], buf[:])
			return 0
		case fionread:
			writeU32(c, a[2], 0)
			return 0
		default:
			return 0
		}
	})

	const (
		fDupfd  = 0
		fGetfd  = 1
		fSetfd  = 2
		fGetfl  = 3
		fSetfl  = 4
		cloexecBit = 0x80000
	)
	t.register(SysFcntl, func(c *Ctx, a [6]uint64) int32 {
		fd := int(a[0])
		slot, e := c.Kernel.FDAt(fd)
		if e != errno.OK {
			return fail(e)
		}
		switch a[1] {
		case fDupfd:
			nfd, e := c.Kernel.DupFD(fd)
			if e != errno.OK {
				return fail(e)
			}
			return int32(nfd)
		case fGetfd:
			if slot.Flags&cloexecBit != 0 {
				return 1
			}
			return 0
		case fSetfd:
			if a[2]&1 != 0 {
				slot.Flags |= cloexecBit
			} else {
				slot.Flags &^= cloexecBit
			}
			return 0
		case fGetfl:
			return int32(slot.Flags)
		case fSetfl:
			slot.Flags = uint32(a[2])
			return 0
		default:
			return 0
		}
	})
	t.register(SysFlock, func(c *Ctx, a [6]uint64) int32 { return 0 })

	noop := func(c *Ctx, a [6]uint64) int32 { return 0 }
	for _, n := range []int{SysMkdir, SysMkdirat, SysRmdir, SysRename, SysRenameat,
		SysLink, SysLinkat, SysUnlink, SysUnlinkat, SysSymlink, SysSymlinkat,
		SysChmod, SysFchmod, SysFchmodat, SysChown, SysFchown, SysFchownat, SysLchown} {
		t.register(n, noop)
	}
	t.register(SysReadlink, func(c *Ctx, a [6]uint64) int32 { return fail(errno.EINVAL) })
	t.register(SysReadlinkat, func(c *Ctx, a [6]uint64) int32 { return fail(errno.EINVAL) })
}

func pipeImpl(c *Ctx, fdsAddr uint64, flags uint32) int32 {
	rfd, wfd, e := c.Kernel.AllocPipe(flags)
	if e != errno.OK {
		return fail(e)
	}
	writeU32(c, fdsAddr, uint32(rfd))
	writeU32(c, fdsAddr+4, uint32(wfd))
	return 0
}
