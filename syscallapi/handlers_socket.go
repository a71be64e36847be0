package syscallapi

import (
	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
)

// Socket handlers (spec.md §4.3 "Sockets"). No real networking happens;
// these simulate enough ABI surface for a guest libc to proceed.

func registerSockets(t *Table) {
	t.register(SysSocket, func(c *Ctx, a [6]uint64) int32 {
		fd, e := c.Kernel.AllocSocket(int32(a[0]), int32(a[1]), int32(a[2]))
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})

	requireSocket := func(c *Ctx, fd int) (*kernel.Socket, int32) {
		s := c.Kernel.SocketByFD(fd)
		if s == nil {
			if _, e := c.Kernel.FDAt(fd); e != errno.OK {
				return nil, fail(errno.EBADF)
			}
			return nil, fail(errno.ENOTSOCK)
		}
		return s, 0
	}

	t.register(SysBind, func(c *Ctx, a [6]uint64) int32 {
		if _, code := requireSocket(c, int(a[0])); code != 0 {
			return code
		}
		return 0
	})
	t.register(SysListen, func(c *Ctx, a [6]uint64) int32 {
		s, code := requireSocket(c, int(a[0]))
		if code != 0 {
			return code
		}
		s.Listening = true
		return 0
	})
	t.register(SysConnect, func(c *Ctx, a [6]uint64) int32 {
		s, code := requireSocket(c, int(a[0]))
		if code != 0 {
			return code
		}
		s.Connected = true
		return 0
	})
	t.register(SysShutdown, func(c *Ctx, a [6]uint64) int32 {
		if _, code := requireSocket(c, int(a[0])); code != 0 {
			return code
		}
		return 0
	})

	t.register(SysAccept, func(c *Ctx, a [6]uint64) int32 { return fail(errno.EAGAIN) })
	t.register(SysAccept4, func(c *Ctx, a [6]uint64) int32 { return fail(errno.EAGAIN) })

	t.register(SysGetsockname, func(c *Ctx, a [6]uint64) int32 {
		if _, code := requireSocket(c, int(a[0])); code != 0 {
			return code
		}
		return 0
	})
	t.register(SysGetpeername, func(c *Ctx, a [6]uint64) int32 {
		if _, code := requireSocket(c, int(a[0])); code != 0 {
			return code
		}
		return fail(errno.ENOTCONN)
	})

	t.register(SysSendto, func(c *Ctx, a [6]uint64) int32 { return int32(a[2]) })
	t.register(SysRecvfrom, func(c *Ctx, a [6]uint64) int32 { return fail(errno.EAGAIN) })

	t.register(SysSetsockopt, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysGetsockopt, func(c *Ctx, a [6]uint64) int32 { return 0 })

	t.register(SysSocketpair, func(c *Ctx, a [6]uint64) int32 {
		family, typ, proto := int32(a[0]), int32(a[1]), int32(a[2])
		fd1, e := c.Kernel.AllocSocket(family, typ, proto)
		if e != errno.OK {
			return fail(e)
		}
		fd2, e := c.Kernel.AllocSocket(family, typ, proto)
		if e != errno.OK {
			c.Kernel.CloseFD(fd1)
			return fail(e)
		}
		writeU32(c, a[3], uint32(fd1))
		writeU32(c, a[3]+4, uint32(fd2))
		return 0
	})
}
