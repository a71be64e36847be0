package syscallapi

// Identity and process info handlers (spec.md §4.3 "Identity and process
// info"). All of these read the in-state singleton; none mutate it
// except the setters below.

func registerIdentity(t *Table) {
	t.register(SysGetpid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.PID) })
	t.register(SysGetppid, func(c *Ctx, _ [6]uint64) int32 {
		if c.Kernel.Identity.PID == 1 {
			return 1
		}
		return 0
	})
	t.register(SysGettid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.TID) })
	t.register(SysGetuid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.UID) })
	t.register(SysGeteuid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.EUID) })
	t.register(SysGetgid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.GID) })
	t.register(SysGetegid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.EGID) })
	t.register(SysGetpgrp, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.PID) })
	t.register(SysGetpgid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.PID) })
	t.register(SysGetsid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.PID) })
	t.register(SysSetsid, func(c *Ctx, _ [6]uint64) int32 { return int32(c.Kernel.Identity.PID) })

	t.register(SysSetuid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.UID = int32(a[0])
		return 0
	})
	t.register(SysSetgid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.GID = int32(a[0])
		return 0
	})
	t.register(SysSetreuid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.UID = int32(a[0])
		c.Kernel.Identity.EUID = int32(a[1])
		return 0
	})
	t.register(SysSetregid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.GID = int32(a[0])
		c.Kernel.Identity.EGID = int32(a[1])
		return 0
	})
	t.register(SysSetresuid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.UID = int32(a[0])
		c.Kernel.Identity.EUID = int32(a[1])
		c.Kernel.Identity.SUID = int32(a[2])
		return 0
	})
	t.register(SysSetresgid, func(c *Ctx, a [6]uint64) int32 {
		c.Kernel.Identity.GID = int32(a[0])
		c.Kernel.Identity.EGID = int32(a[1])
		c.Kernel.Identity.SGID = int32(a[2])
		return 0
	})
	t.register(SysSetfsuid, func(c *Ctx, a [6]uint64) int32 {
		prev := c.Kernel.Identity.FSUID
		c.Kernel.Identity.FSUID = int32(a[0])
		return prev
	})
	t.register(SysSetfsgid, func(c *Ctx, a [6]uint64) int32 {
		prev := c.Kernel.Identity.FSGID
		c.Kernel.Identity.FSGID = int32(a[0])
		return prev
	})

	t.register(SysGetresuid, func(c *Ctx, a [6]uint64) int32 {
		writeTriplet(c, a[0], a[1], a[2], uint32(c.Kernel.Identity.UID), uint32(c.Kernel.Identity.EUID), uint32(c.Kernel.Identity.SUID))
		return 0
	})
	t.register(SysGetresgid, func(c *Ctx, a [6]uint64) int32 {
		writeTriplet(c, a[0], a[1], a[2], uint32(c.Kernel.Identity.GID), uint32(c.Kernel.Identity.EGID), uint32(c.Kernel.Identity.SGID))
		return 0
	})
	t.register(SysGetgroups, func(c *Ctx, a [6]uint64) int32 {
		size := int32(a[0])
		if size >= 1 {
			writeU32(c, a[1], uint32(c.Kernel.Identity.GID))
		}
		return 1
	})
}

func writeTriplet(c *Ctx, p1, p2, p3 uint64, v1, v2, v3 uint32) {
	writeU32(c, p1, v1)
	writeU32(c, p2, v2)
	writeU32(c, p3, v3)
}

func writeU32(c *Ctx, addr uint64, v uint32) {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	_ = c.Mem.Write(addr, buf[:])
}

func writeU64(c *Ctx, addr uint64, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	_ = c.Mem.Write(addr, buf[:])
}

func readU32(c *Ctx, addr uint64) (uint32, bool) {
	var buf [4]byte
	if err := c.Mem.Read(addr, buf[:]); err != nil {
		return 0, false
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, true
}

func readU64(c *Ctx, addr uint64) (uint64, bool) {
	var buf [8]byte
	if err := c.Mem.Read(addr, buf[:]); err != nil {
		return 0, false
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v, true
}
