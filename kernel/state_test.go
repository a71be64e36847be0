package kernel

import (
	"testing"

	"github.com/aurora-os/guestcore/errno"
)

func TestNewStdioFDsOpenAndBasesSet(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		if !s.IsOpen(i) {
			t.Errorf("fd %d expected open, got closed", i)
		}
	}
	if s.IsOpen(3) {
		t.Error("fd 3 expected closed on a fresh state")
	}
	if s.BrkPtr != BrkMin {
		t.Errorf("BrkPtr = %#x, want %#x", s.BrkPtr, BrkMin)
	}
	if s.MmapBump != MmapBase {
		t.Errorf("MmapBump = %#x, want %#x", s.MmapBump, MmapBase)
	}
	if s.Cwd() != "/" {
		t.Errorf("Cwd() = %q, want %q", s.Cwd(), "/")
	}
}

// TestFDLifecycle is spec.md §8's fd lifecycle property: alloc, use,
// close, then a reused slot starts clean.
func TestFDLifecycle(t *testing.T) {
	s := New()

	fd, errn := s.AllocFD(KindFile, 0)
	if errn != errno.OK {
		t.Fatalf("AllocFD: %v", errn)
	}
	if fd < 3 {
		t.Fatalf("AllocFD returned reserved stdio slot %d", fd)
	}
	if !s.IsOpen(fd) {
		t.Fatal("allocated fd reports closed")
	}

	if errn := s.CloseFD(fd); errn != errno.OK {
		t.Fatalf("CloseFD: %v", errn)
	}
	if s.IsOpen(fd) {
		t.Fatal("fd still open after CloseFD")
	}
	if errn := s.CloseFD(fd); errn != errno.EBADF {
		t.Errorf("double CloseFD = %v, want EBADF", errn)
	}

	fd2, errn := s.AllocFD(KindFile, 0)
	if errn != errno.OK {
		t.Fatalf("AllocFD after close: %v", errn)
	}
	if fd2 != fd {
		t.Errorf("reused slot = %d, want the just-freed slot %d", fd2, fd)
	}
}

func TestCloseFDStdioIsNoop(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		if errn := s.CloseFD(i); errn != errno.OK {
			t.Errorf("CloseFD(%d) = %v, want OK", i, errn)
		}
		if !s.IsOpen(i) {
			t.Errorf("fd %d closed by a no-op CloseFD", i)
		}
	}
}

func TestAllocFDExhaustion(t *testing.T) {
	s := New()
	for i := 3; i < MaxFDs; i++ {
		if _, errn := s.AllocFD(KindFile, 0); errn != errno.OK {
			t.Fatalf("AllocFD exhausted early at iteration %d: %v", i, errn)
		}
	}
	if _, errn := s.AllocFD(KindFile, 0); errn != errno.EMFILE {
		t.Errorf("AllocFD on full table = %v, want EMFILE", errn)
	}
}

func TestDupFDAndDupFDTo(t *testing.T) {
	s := New()
	src, _ := s.AllocFD(KindFile, 0x1)

	dup, errn := s.DupFD(src)
	if errn != errno.OK {
		t.Fatalf("DupFD: %v", errn)
	}
	if dup == src {
		t.Fatal("DupFD returned the same slot")
	}
	slot, _ := s.FDAt(dup)
	if slot.Flags != 0x1 {
		t.Errorf("duped slot Flags = %#x, want 0x1", slot.Flags)
	}

	other, _ := s.AllocFD(KindFile, 0x2)
	if errn := s.DupFDTo(src, other); errn != errno.OK {
		t.Fatalf("DupFDTo: %v", errn)
	}
	slot, _ = s.FDAt(other)
	if slot.Flags != 0x1 {
		t.Errorf("DupFDTo target Flags = %#x, want source's 0x1", slot.Flags)
	}

	if errn := s.DupFDTo(9999, other); errn != errno.EBADF {
		t.Errorf("DupFDTo bad src = %v, want EBADF", errn)
	}
}

// TestPipeRoundTrip is spec.md §8's pipe round-trip property: AllocPipe
// hands back two distinct, open fds tied to one pipe entry.
func TestPipeRoundTrip(t *testing.T) {
	s := New()
	rfd, wfd, errn := s.AllocPipe(0)
	if errn != errno.OK {
		t.Fatalf("AllocPipe: %v", errn)
	}
	if rfd == wfd {
		t.Fatal("AllocPipe returned the same fd for both ends")
	}
	if !s.IsOpen(rfd) || !s.IsOpen(wfd) {
		t.Fatal("pipe fds not open after AllocPipe")
	}
	rSlot, _ := s.FDAt(rfd)
	wSlot, _ := s.FDAt(wfd)
	if rSlot.Kind != KindPipeRead {
		t.Errorf("read end Kind = %v, want KindPipeRead", rSlot.Kind)
	}
	if wSlot.Kind != KindPipeWrite {
		t.Errorf("write end Kind = %v, want KindPipeWrite", wSlot.Kind)
	}
}

func TestAllocPipeExhaustion(t *testing.T) {
	s := New()
	for i := 0; i < MaxPipes; i++ {
		if _, _, errn := s.AllocPipe(0); errn != errno.OK {
			t.Fatalf("AllocPipe exhausted early at %d: %v", i, errn)
		}
	}
	if _, _, errn := s.AllocPipe(0); errn != errno.EMFILE {
		t.Errorf("AllocPipe on full table = %v, want EMFILE", errn)
	}
}

// TestSocketHandshake is spec.md §8's socket handshake property:
// AllocSocket registers both an fd and a socket table entry lookup.
func TestSocketHandshake(t *testing.T) {
	s := New()
	fd, errn := s.AllocSocket(2, 1, 0) // AF_INET, SOCK_STREAM
	if errn != errno.OK {
		t.Fatalf("AllocSocket: %v", errn)
	}
	sock := s.SocketByFD(fd)
	if sock == nil {
		t.Fatal("SocketByFD returned nil for a just-allocated socket")
	}
	if sock.Family != 2 || sock.Type != 1 {
		t.Errorf("socket Family/Type = %d/%d, want 2/1", sock.Family, sock.Type)
	}
	if s.SocketByFD(fd+1000) != nil {
		t.Error("SocketByFD found an entry for an unallocated fd")
	}
}

func TestMmapAllocAndFree(t *testing.T) {
	s := New()
	if errn := s.AllocMmap(MmapBase, 4096, 3, 0); errn != errno.OK {
		t.Fatalf("AllocMmap: %v", errn)
	}
	m := s.MmapByAddr(MmapBase)
	if m == nil {
		t.Fatal("MmapByAddr returned nil after AllocMmap")
	}
	if m.Size != 4096 {
		t.Errorf("Size = %d, want 4096", m.Size)
	}
	s.FreeMmap(MmapBase)
	if s.MmapByAddr(MmapBase) != nil {
		t.Error("MmapByAddr still finds entry after FreeMmap")
	}
	// Freeing an unknown address is a no-op, not an error.
	s.FreeMmap(0xdeadbeef)
}

func TestSigActionAtBounds(t *testing.T) {
	s := New()
	if _, errn := s.SigActionAt(0); errn != errno.EINVAL {
		t.Errorf("SigActionAt(0) = %v, want EINVAL", errn)
	}
	if _, errn := s.SigActionAt(MaxSignals); errn != errno.EINVAL {
		t.Errorf("SigActionAt(MaxSignals) = %v, want EINVAL", errn)
	}
	act, errn := s.SigActionAt(1)
	if errn != errno.OK {
		t.Fatalf("SigActionAt(1): %v", errn)
	}
	act.HandlerPtr = 0x401000
	act2, _ := s.SigActionAt(1)
	if act2.HandlerPtr != 0x401000 {
		t.Error("SigActionAt did not return a pointer into the same table")
	}
}

func TestNextRandomIsDeterministicPerSeed(t *testing.T) {
	a := New()
	b := New()
	for i := 0; i < 8; i++ {
		if a.NextRandom() != b.NextRandom() {
			t.Fatalf("NextRandom diverged between two freshly seeded states at step %d", i)
		}
	}
}

func TestGlobalIsASingleSharedInstance(t *testing.T) {
	if Global() != Global() {
		t.Fatal("Global() returned different pointers across calls")
	}
}

func TestLockUnlockIsExclusive(t *testing.T) {
	s := New()
	s.Lock()
	done := make(chan struct{})
	go func() {
		s.Lock()
		s.Unlock()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second Lock acquired while first still held")
	default:
	}
	s.Unlock()
	<-done
}
