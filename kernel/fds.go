package kernel

import "github.com/aurora-os/guestcore/errno"

// AllocFD finds the first free slot at index >= 3 (spec.md §3.2: indexes
// 0/1/2 are always open and reserved for stdio) and marks it open with
// the given kind. Returns EMFILE if the table is full.
func (s *State) AllocFD(kind FDKind, flags uint32) (int, errno.Errno) {
	for i := 3; i < MaxFDs; i++ {
		if !s.fds[i].Open {
			s.fds[i] = FD{Open: true, Kind: kind, Flags: flags}
			return i, errno.OK
		}
	}
	return -1, errno.EMFILE
}

func (s *State) IsOpen(fd int) bool {
	if fd < 0 || fd >= MaxFDs {
		return false
	}
	return s.fds[fd].Open
}

func (s *State) FDAt(fd int) (*FD, errno.Errno) {
	if fd < 0 || fd >= MaxFDs || !s.fds[fd].Open {
		return nil, errno.EBADF
	}
	return &s.fds[fd], errno.OK
}

// CloseFD invalidates a slot. fd 0/1/2 are no-ops that report success
// without ever actually closing, matching spec.md's stdio contract.
func (s *State) CloseFD(fd int) errno.Errno {
	if fd >= 0 && fd < 3 {
		return errno.OK
	}
	if fd < 0 || fd >= MaxFDs || !s.fds[fd].Open {
		return errno.EBADF
	}
	s.fds[fd] = FD{}
	return errno.OK
}

// DupFD clones the slot at src into a freshly allocated index.
func (s *State) DupFD(src int) (int, errno.Errno) {
	slot, errn := s.FDAt(src)
	if errn != errno.OK {
		return -1, errn
	}
	for i := 0; i < MaxFDs; i++ {
		if !s.fds[i].Open {
			s.fds[i] = *slot
			return i, errno.OK
		}
	}
	return -1, errno.EMFILE
}

// DupFDTo clones src into the specific dst slot, closing whatever was
// there first (spec.md dup2 contract).
func (s *State) DupFDTo(src, dst int) errno.Errno {
	slot, errn := s.FDAt(src)
	if errn != errno.OK {
		return errn
	}
	if dst < 0 || dst >= MaxFDs {
		return errno.EBADF
	}
	if dst >= 3 && s.fds[dst].Open {
		s.fds[dst] = FD{}
	}
	s.fds[dst] = *slot
	return errno.OK
}

// AllocPipe reserves a pipe entry plus its read and write fds.
func (s *State) AllocPipe(flags uint32) (readFD, writeFD int, errn errno.Errno) {
	slot := -1
	for i := 0; i < MaxPipes; i++ {
		if !s.pipes[i].InUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -1, -1, errno.EMFILE
	}
	rfd, errn := s.AllocFD(KindPipeRead, flags)
	if errn != errno.OK {
		return -1, -1, errn
	}
	wfd, errn := s.AllocFD(KindPipeWrite, flags)
	if errn != errno.OK {
		s.CloseFD(rfd)
		return -1, -1, errn
	}
	s.pipes[slot] = Pipe{InUse: true, ReadFD: rfd, WriteFD: wfd}
	return rfd, wfd, errno.OK
}

// AllocSocket reserves a socket entry plus its fd.
func (s *State) AllocSocket(family, typ, protocol int32) (int, errno.Errno) {
	slot := -1
	for i := 0; i < MaxSockets; i++ {
		if !s.sockets[i].InUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -1, errno.EMFILE
	}
	fd, errn := s.AllocFD(KindSocket, 0)
	if errn != errno.OK {
		return -1, errn
	}
	s.sockets[slot] = Socket{InUse: true, FD: fd, Family: family, Type: typ, Protocol: protocol}
	return fd, errno.OK
}

func (s *State) SocketByFD(fd int) *Socket {
	for i := range s.sockets {
		if s.sockets[i].InUse && s.sockets[i].FD == fd {
			return &s.sockets[i]
		}
	}
	return nil
}

// AllocMmap records a new mmap table entry. Returns ENOMEM if the table
// is full.
func (s *State) AllocMmap(addr, size uint64, prot, flags int32) errno.Errno {
	for i := range s.mmaps {
		if !s.mmaps[i].InUse {
			s.mmaps[i] = Mmap{InUse: true, Addr: addr, Size: size, Prot: prot, Flags: flags}
			return errno.OK
		}
	}
	return errno.ENOMEM
}

func (s *State) MmapByAddr(addr uint64) *Mmap {
	for i := range s.mmaps {
		if s.mmaps[i].InUse && s.mmaps[i].Addr == addr {
			return &s.mmaps[i]
		}
	}
	return nil
}

// FreeMmap clears the entry at addr, if any. Idempotent: freeing an
// unknown addr is not an error (spec.md munmap contract).
func (s *State) FreeMmap(addr uint64) {
	if m := s.MmapByAddr(addr); m != nil {
		*m = Mmap{}
	}
}

// NextRandom advances the deterministic LCG getrandom uses
// (spec.md §4.3 Miscellaneous, §9 Design Notes: must actually fill).
func (s *State) NextRandom() byte {
	s.randSeed = s.randSeed*1103515245 + 12345
	return byte(s.randSeed >> 16)
}
