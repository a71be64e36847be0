package syscallapi

import (
	"github.com/aurora-os/guestcore/errno"
	"github.com/aurora-os/guestcore/kernel"
)

// Miscellaneous handlers (spec.md §4.3 "Miscellaneous"): uname, hostname,
// cwd, resource limits, capabilities and the statfs family. Most of these
// exist only so a guest libc's startup path sees plausible-looking
// answers rather than -ENOSYS.

func registerMisc(t *Table) {
	t.register(SysUname, func(c *Ctx, a [6]uint64) int32 {
		sysname := c.Sysname
		if sysname == "" {
			sysname = "Aurora"
		}
		nodename := c.Nodename
		if nodename == "" {
			nodename = c.Kernel.Hostname
		}
		release := c.Release
		if release == "" {
			release = "6.6.0-aurora"
		}
		version := c.Version
		if version == "" {
			version = "#1 SMP Aurora OS"
		}
		machine := c.Machine
		if machine == "" {
			machine = "x86_64"
		}
		const field = 65
		writeCString(c, a[0]+0*field, sysname, field)
		writeCString(c, a[0]+1*field, nodename, field)
		writeCString(c, a[0]+2*field, release, field)
		writeCString(c, a[0]+3*field, version, field)
		writeCString(c, a[0]+4*field, machine, field)
		return 0
	})

	t.register(SysSethostname, func(c *Ctx, a [6]uint64) int32 {
		s, ok := readCString(c, a[0], int(a[1]))
		if !ok {
			return fail(errno.EFAULT)
		}
		if len(s) >= kernel.MaxHostnameLen {
			return fail(errno.ENAMETOOLONG)
		}
		c.Kernel.Hostname = s
		return 0
	})
	t.register(SysSetdomainname, func(c *Ctx, a [6]uint64) int32 {
		s, ok := readCString(c, a[0], int(a[1]))
		if !ok {
			return fail(errno.EFAULT)
		}
		if len(s) >= kernel.MaxHostnameLen {
			return fail(errno.ENAMETOOLONG)
		}
		c.Kernel.Domainname = s
		return 0
	})

	t.register(SysGetcwd, func(c *Ctx, a [6]uint64) int32 {
		cwd := c.Kernel.Cwd()
		size := int(a[1])
		if len(cwd)+1 > size {
			return fail(errno.ERANGE)
		}
		writeCString(c, a[0], cwd, size)
		return int32(len(cwd) + 1)
	})
	t.register(SysChdir, func(c *Ctx, a [6]uint64) int32 {
		p, ok := readCString(c, a[0], kernel.MaxCwdLen)
		if !ok || len(p) == 0 {
			return fail(errno.EFAULT)
		}
		if p[0] != '/' {
			return fail(errno.EINVAL)
		}
		c.Kernel.SetCwd(p)
		return 0
	})

	t.register(SysUmask, func(c *Ctx, a [6]uint64) int32 {
		prev := c.Kernel.Identity.Umask
		c.Kernel.Identity.Umask = uint32(a[0]) & 0o777
		return int32(prev)
	})

	t.register(SysGetrandom, func(c *Ctx, a [6]uint64) int32 {
		n := int(a[1])
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = c.Kernel.NextRandom()
		}
		if err := c.Mem.Write(a[0], buf); err != nil {
			return fail(errno.EFAULT)
		}
		return int32(n)
	})

	t.register(SysMemfdCreate, func(c *Ctx, a [6]uint64) int32 {
		fd, e := c.Kernel.AllocFD(kernel.KindFile, 0)
		if e != errno.OK {
			return fail(e)
		}
		return int32(fd)
	})

	t.register(SysSysinfo, func(c *Ctx, a [6]uint64) int32 {
		var zero [112]byte
		if err := c.Mem.Write(a[0], zero[:]); err != nil {
			return fail(errno.EFAULT)
		}
		return 0
	})
	t.register(SysGetrusage, func(c *Ctx, a [6]uint64) int32 {
		var zero [144]byte
		if err := c.Mem.Write(a[1], zero[:]); err != nil {
			return fail(errno.EFAULT)
		}
		return 0
	})

	const rlimInfinity = ^uint64(0)
	t.register(SysGetrlimit, func(c *Ctx, a [6]uint64) int32 {
		writeU64(c, a[1], rlimInfinity)
		writeU64(c, a[1]+8, rlimInfinity)
		return 0
	})
	t.register(SysSetrlimit, func(c *Ctx, a [6]uint64) int32 { return 0 })
	t.register(SysPrlimit64, func(c *Ctx, a [6]uint64) int32 {
		if a[3] != 0 {
			writeU64(c, a[3], rlimInfinity)
			writeU64(c, a[3]+8, rlimInfinity)
		}
		return 0
	})

	zero := func(c *Ctx, a [6]uint64) int32 { return 0 }
	t.register(SysCapget, zero)
	t.register(SysCapset, zero)
	t.register(SysPrctl, zero)
	t.register(SysArchPrctl, zero)
	t.register(SysPersonality, zero)
	t.register(SysSeccomp, zero)
	t.register(SysRseq, zero)

	statfsLike := func(c *Ctx, a [6]uint64, bufArg int) int32 {
		addr := a[uint64(bufArg)]
		writeU64(c, addr+0, 0x137D)
		writeU64(c, addr+8, 4096)
		writeU64(c, addr+16, 1_000_000)
		writeU64(c, addr+24, 500_000)
		writeU64(c, addr+32, 500_000)
		return 0
	}
	t.register(SysStatfs, func(c *Ctx, a [6]uint64) int32 { return statfsLike(c, a, 1) })
	t.register(SysFstatfs, func(c *Ctx, a [6]uint64) int32 { return statfsLike(c, a, 1) })
}

func writeCString(c *Ctx, addr uint64, s string, max int) {
	buf := make([]byte, max)
	n := len(s)
	if n > max-1 {
		n = max - 1
	}
	copy(buf, s[:n])
	_ = c.Mem.Write(addr, buf)
}

func readCString(c *Ctx, addr uint64, max int) (string, bool) {
	buf := make([]byte, max)
	if err := c.Mem.Read(addr, buf); err != nil {
		return "", false
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), true
		}
	}
	return string(buf), true
}
