package guest

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

func androidBootImage(t *testing.T, kernel, ramdisk []byte) []byte {
	t.Helper()
	const (
		pageSize      = 4096
		headerVersion = 3
		headerSize    = 1612
		offKernelSize = 8
		offRamdiskSz  = 12
		offHeaderSize = 20
		offHdrVersion = 40
	)
	roundUp := func(v uint32) uint32 { return (v + pageSize - 1) / pageSize * pageSize }

	header := make([]byte, pageSize)
	copy(header[0:8], "ANDROID!")
	binary.LittleEndian.PutUint32(header[offKernelSize:], uint32(len(kernel)))
	binary.LittleEndian.PutUint32(header[offRamdiskSz:], uint32(len(ramdisk)))
	binary.LittleEndian.PutUint32(header[offHeaderSize:], headerSize)
	binary.LittleEndian.PutUint32(header[offHdrVersion:], headerVersion)

	kernelOff := roundUp(headerSize)
	ramdiskOff := kernelOff + roundUp(uint32(len(kernel)))
	buf := make([]byte, ramdiskOff+uint32(len(ramdisk)))
	copy(buf, header)
	copy(buf[kernelOff:], kernel)
	copy(buf[ramdiskOff:], ramdisk)
	return buf
}

func bzImage(t *testing.T, payload []byte) []byte {
	t.Helper()
	const setupSects = 4
	setupSize := (setupSects + 1) * 512
	buf := make([]byte, setupSize+len(payload))
	buf[510], buf[511] = 0x55, 0xAA
	buf[0x1F1] = setupSects
	buf[0x202], buf[0x203], buf[0x204], buf[0x205] = 0x48, 0x64, 0x72, 0x53
	copy(buf[setupSize:], payload)
	return buf
}

// TestStateMachineGuard is spec.md §8's state-machine guard property:
// invalid transitions are rejected and leave the state unchanged.
func TestStateMachineGuard(t *testing.T) {
	g := New("t1", ArchLinux)
	if g.State() != Initialized {
		t.Fatalf("initial state = %v, want Initialized", g.State())
	}

	// Start without a kernel must fail.
	if g.Start() {
		t.Fatal("Start succeeded with no kernel image loaded")
	}
	if g.State() != Initialized {
		t.Fatalf("state after failed Start = %v, want Initialized unchanged", g.State())
	}

	g.SetKernelImage([]byte{1, 2, 3}, 0x10_0000)
	if !g.Start() {
		t.Fatal("Start failed with a kernel image present")
	}
	if g.State() != Running {
		t.Fatalf("state after Start = %v, want Running", g.State())
	}

	if g.Start() {
		t.Fatal("Start succeeded from Running (should require Initialized|Stopped)")
	}
	if !g.Pause() {
		t.Fatal("Pause failed from Running")
	}
	if g.Pause() {
		t.Fatal("Pause succeeded twice in a row")
	}
	if !g.Resume() {
		t.Fatal("Resume failed from Paused")
	}
	if !g.Stop() {
		t.Fatal("Stop failed from Running")
	}
	if g.State() != Stopped {
		t.Fatalf("state after Stop = %v, want Stopped", g.State())
	}

	g.Fail()
	if g.State() != Error {
		t.Fatalf("state after Fail = %v, want Error", g.State())
	}
	if g.Stop() {
		t.Fatal("Stop succeeded from the terminal Error state")
	}

	g.Destroy()
	if g.State() != Uninitialized {
		t.Fatalf("state after Destroy = %v, want Uninitialized", g.State())
	}
	if g.HasKernel() {
		t.Error("Destroy left a kernel image behind")
	}
}

// TestCmdlineRoundTrip is spec.md §8's set/append/get cmdline round-trip
// law: set replaces, append joins with a single space, append("") is a
// no-op, and the cap truncates.
func TestCmdlineRoundTrip(t *testing.T) {
	g := New("t2", ArchLinux)
	g.SetCmdline("console=ttyS0")
	if g.Cmdline() != "console=ttyS0" {
		t.Fatalf("Cmdline() = %q", g.Cmdline())
	}
	g.AppendCmdline("")
	if g.Cmdline() != "console=ttyS0" {
		t.Fatal("AppendCmdline(\"\") mutated the cmdline")
	}
	g.AppendCmdline("root=/dev/ram0")
	if g.Cmdline() != "console=ttyS0 root=/dev/ram0" {
		t.Fatalf("Cmdline() after append = %q", g.Cmdline())
	}

	g.SetCmdline(string(bytes.Repeat([]byte{'a'}, maxCmdlineLen+50)))
	if len(g.Cmdline()) != maxCmdlineLen {
		t.Errorf("SetCmdline did not truncate to %d bytes, got %d", maxCmdlineLen, len(g.Cmdline()))
	}
}

func TestLoadSystemAndDataCaps(t *testing.T) {
	g := New("t3", ArchAndroid)
	if !g.LoadSystem(make([]byte, 1024)) {
		t.Fatal("LoadSystem rejected a small payload")
	}
	if g.LoadSystem(make([]byte, AndroidSystemCap+1)) {
		t.Fatal("LoadSystem accepted a payload over its cap")
	}
	if !g.LoadData(make([]byte, 1024)) {
		t.Fatal("LoadData rejected a small payload")
	}
	if g.LoadData(make([]byte, AndroidDataCap+1)) {
		t.Fatal("LoadData accepted a payload over the Android data cap")
	}
}

// TestLoadAllConcurrent exercises guest.Guest.LoadAll, the
// errgroup-backed concurrent system+data partition load.
func TestLoadAllConcurrent(t *testing.T) {
	g := New("t4", ArchAndroid)
	if err := g.LoadAll(context.Background(), make([]byte, 1024), make([]byte, 2048)); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	g2 := New("t5", ArchAndroid)
	err := g2.LoadAll(context.Background(), make([]byte, AndroidSystemCap+1), make([]byte, 1024))
	if err == nil {
		t.Fatal("LoadAll succeeded with an oversized system partition")
	}
}

// TestLoadKernelImageAndroid is spec.md §8's Android boot scenario, run
// through the guest-level entry point daemon/server.go actually calls.
func TestLoadKernelImageAndroid(t *testing.T) {
	kernel := bytes.Repeat([]byte{0x11}, 128)
	ramdisk := bytes.Repeat([]byte{0x22}, 256)
	img := androidBootImage(t, kernel, ramdisk)

	g := New("android1", ArchAndroid)
	if err := g.LoadKernelImage(img); err != nil {
		t.Fatalf("LoadKernelImage: %v", err)
	}
	if !g.HasKernel() {
		t.Fatal("LoadKernelImage did not install a kernel image")
	}
	if !g.BootProto.Android.Initialized {
		t.Error("LoadKernelImage did not publish Android boot state")
	}
}

// TestLoadKernelImageLinux is spec.md §8's bzImage detection scenario,
// run through the guest-level entry point.
func TestLoadKernelImageLinux(t *testing.T) {
	payload := bytes.Repeat([]byte{0x90}, 512)
	img := bzImage(t, payload)

	g := New("linux1", ArchLinux)
	if err := g.LoadKernelImage(img); err != nil {
		t.Fatalf("LoadKernelImage: %v", err)
	}
	if !g.HasKernel() {
		t.Fatal("LoadKernelImage did not install a kernel image")
	}
	if !g.BootProto.Linux.Initialized {
		t.Error("LoadKernelImage did not publish Linux boot state")
	}
	if g.BootProto.Linux.E820Count == 0 {
		t.Error("LoadKernelImage did not populate an E820 map")
	}
}

func TestLoadRamdiskImageLinuxIsRaw(t *testing.T) {
	g := New("linux2", ArchLinux)
	raw := []byte{1, 2, 3, 4}
	if err := g.LoadRamdiskImage(raw); err != nil {
		t.Fatalf("LoadRamdiskImage: %v", err)
	}
}

func TestKernelSingletonSharedAcrossGuests(t *testing.T) {
	a := New("shared1", ArchLinux)
	b := New("shared2", ArchAndroid)
	if a.Kernel != b.Kernel {
		t.Fatal("two guests in the same process do not share kernel.State")
	}
	if a.BootProto != b.BootProto {
		t.Fatal("two guests in the same process do not share bootproto.State")
	}
}

func TestTraceLogRecordsSyscalls(t *testing.T) {
	g := New("trace1", ArchLinux)
	g.HandleSyscall(39, [6]uint64{}) // getpid
	trace := g.TraceLog()
	if len(trace) == 0 {
		t.Fatal("HandleSyscall did not record a trace entry")
	}
}
