// Package guest implements the VM guest container lifecycle (spec.md
// §3.1, §4.7): a tagged union of Android and Linux guests sharing one
// state machine, owned image/partition buffers, and a syscall dispatch
// entry point.
package guest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aurora-os/guestcore/bootimg/android"
	"github.com/aurora-os/guestcore/bootimg/linux"
	"github.com/aurora-os/guestcore/bootproto"
	"github.com/aurora-os/guestcore/kernel"
	"github.com/aurora-os/guestcore/memview"
	"github.com/aurora-os/guestcore/syscallapi"
	"golang.org/x/sync/errgroup"
)

// Arch identifies which boot format and platform constants a Guest uses.
type Arch int

const (
	ArchAndroid Arch = iota
	ArchLinux
)

func (a Arch) String() string {
	switch a {
	case ArchAndroid:
		return "android"
	case ArchLinux:
		return "linux"
	default:
		return fmt.Sprintf("Arch(%d)", int(a))
	}
}

// State is the guest container's lifecycle state (spec.md §3.1).
type State int

const (
	Uninitialized State = iota
	Initialized
	Booting
	Running
	Paused
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Booting:
		return "booting"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Platform constants (spec.md §4.7 load_kernel).
const (
	AndroidKernelBase  = 0x80000
	AndroidRamdiskBase = 0x100_0000
	AndroidMemSize     = 256 << 20
	AndroidSystemCap   = 512 << 20
	AndroidDataCap     = 1 << 30

	LinuxKernelBase = 0x10_0000
	LinuxMemSize    = 128 << 20
	LinuxRootfsCap  = 512 << 20

	maxCmdlineLen = 512
)

// Guest is one guest VM container: either kind, sharing one state
// machine (spec.md §9 "Polymorphic guest").
type Guest struct {
	mu sync.Mutex

	ID   string
	Arch Arch

	state State

	kernelImage  []byte
	kernelEntry  uint64
	ramdisk      []byte
	ramdiskAddr  uint64
	systemPart   []byte
	dataPart     []byte

	cmdline     string
	versionCode int

	dalvikEnabled bool

	Kernel    *kernel.State
	BootProto *bootproto.State
	Mem       *memview.Bounded

	trace []string
}

// maxTraceEntries bounds the in-memory syscall trace ring the debug
// console reads from; oldest entries are dropped once full.
const maxTraceEntries = 512

// New allocates a guest of the given architecture (spec.md §4.7 create):
// state becomes Initialized. Kernel and BootProto point at the
// process-wide singletons every guest shares (spec.md §3.2, §5); only Mem
// is private to this guest, sized for the platform's memory ceiling.
func New(id string, arch Arch) *Guest {
	memSize := uint64(LinuxMemSize)
	if arch == ArchAndroid {
		memSize = AndroidMemSize
	}
	return &Guest{
		ID:        id,
		Arch:      arch,
		state:     Initialized,
		Kernel:    kernel.Global(),
		BootProto: bootproto.Global(),
		Mem:       memview.New(memSize),
	}
}

func (g *Guest) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// KernelLoadAddr returns the platform's fixed kernel load address
// (spec.md §4.7 load_kernel constants). Satisfies bootimg/linux.Guest.
func (g *Guest) KernelLoadAddr() uint64 {
	if g.Arch == ArchAndroid {
		return AndroidKernelBase
	}
	return LinuxKernelBase
}

// CmdlineForBoot returns the vm-provided cmdline for a boot parser to
// consult (spec.md §9 open-question decision: vm cmdline wins over the
// parser's own default). Satisfies bootimg/linux.Guest.
func (g *Guest) CmdlineForBoot() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cmdline
}

// SetKernelImage installs the kernel image bytes and entry point,
// replacing any previous image (spec.md §4.7 load_kernel). Satisfies both
// bootimg/android.Guest and bootimg/linux.Guest.
func (g *Guest) SetKernelImage(data []byte, entry uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kernelImage = append([]byte(nil), data...)
	g.kernelEntry = entry
}

// SetRamdisk installs the ramdisk image, bounded by nothing (a ramdisk
// has no documented ceiling distinct from system/data). Satisfies
// bootimg/android.Guest.
func (g *Guest) SetRamdisk(data []byte, loadAddr uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ramdisk = append([]byte(nil), data...)
	if loadAddr == 0 {
		loadAddr = AndroidRamdiskBase
	}
	g.ramdiskAddr = loadAddr
}

func (g *Guest) HasKernel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.kernelImage) > 0
}

// LoadKernelImage parses an uploaded boot image per the guest's
// architecture and installs it, publishing the shared boot-protocol state
// (spec.md §4.5 load_into_guest for Android, §4.6 load_kernel for Linux).
// An Android boot.img carries its ramdisk alongside the kernel, so this
// also installs that ramdisk; a Linux bzImage does not, so Linux guests
// get their ramdisk from a separate LoadRamdiskImage call.
func (g *Guest) LoadKernelImage(data []byte) error {
	if g.Arch == ArchAndroid {
		_, err := android.LoadIntoGuest(g, g.BootProto, data, g.KernelLoadAddr())
		return err
	}
	linux.LoadKernel(g, g.BootProto, data, g.Mem.Size())
	return nil
}

// LoadRamdiskImage installs a ramdisk. For Android this is a vendor boot
// image (spec.md §4.5 load_vendor), parsed for its DTB and merged
// cmdline; LoadVendor extracts no ramdisk payload from it, so an Android
// guest keeps the ramdisk its boot.img installed. For Linux it's a raw
// initrd blob with no header of its own.
func (g *Guest) LoadRamdiskImage(data []byte) error {
	if g.Arch == ArchAndroid {
		vh, err := android.LoadVendor(g.BootProto, data)
		if err != nil {
			return err
		}
		if len(vh.Ramdisk) > 0 {
			g.SetRamdisk(vh.Ramdisk, 0)
		}
		return nil
	}
	g.SetRamdisk(data, 0)
	return nil
}

// LoadSystem copies bytes into the Android system partition, bounded by
// AndroidSystemCap (spec.md §4.7 load_system). Returns false on overflow,
// leaving prior contents untouched.
func (g *Guest) LoadSystem(data []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if uint64(len(data)) > AndroidSystemCap {
		return false
	}
	g.systemPart = append([]byte(nil), data...)
	return true
}

// LoadData copies bytes into the data partition, bounded by
// AndroidDataCap for Android guests and LinuxRootfsCap for Linux guests
// (spec.md §4.7 load_data).
func (g *Guest) LoadData(data []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ceiling := uint64(AndroidDataCap)
	if g.Arch == ArchLinux {
		ceiling = LinuxRootfsCap
	}
	if uint64(len(data)) > ceiling {
		return false
	}
	g.dataPart = append([]byte(nil), data...)
	return true
}

// LoadAll loads the system and data partitions concurrently (spec.md
// §4.7 load_system/load_data), the way the teacher's pool package runs
// concurrent clone setup under an errgroup: both copies run at once and
// on the first capacity failure both partitions are restored to their
// prior contents instead of leaving the guest silently half-loaded.
func (g *Guest) LoadAll(ctx context.Context, system, data []byte) error {
	g.mu.Lock()
	prevSystem, prevData := g.systemPart, g.dataPart
	g.mu.Unlock()
	grp, _ := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if !g.LoadSystem(system) {
			return fmt.Errorf("guest: system partition exceeds %d bytes", AndroidSystemCap)
		}
		return nil
	})
	grp.Go(func() error {
		if !g.LoadData(data) {
			return fmt.Errorf("guest: data partition exceeds capacity")
		}
		return nil
	})
	if err := grp.Wait(); err != nil {
		g.mu.Lock()
		g.systemPart, g.dataPart = prevSystem, prevData
		g.mu.Unlock()
		return err
	}
	return nil
}

// SetCmdline truncates s to the 512-byte cmdline cap and stores it
// (spec.md §8 set_cmdline/get_cmdline round-trip property).
func (g *Guest) SetCmdline(s string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(s) > maxCmdlineLen {
		s = s[:maxCmdlineLen]
	}
	g.cmdline = s
}

func (g *Guest) Cmdline() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cmdline
}

// AppendCmdline inserts a separating space only if the existing cmdline
// is non-empty (spec.md §8 append_cmdline property), then bounds the
// result to the cap.
func (g *Guest) AppendCmdline(s string) {
	if s == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cmdline == "" {
		g.cmdline = s
	} else {
		g.cmdline = g.cmdline + " " + s
	}
	if len(g.cmdline) > maxCmdlineLen {
		g.cmdline = g.cmdline[:maxCmdlineLen]
	}
}

// SetVersion stores major.minor as major*100+minor (spec.md §4.7).
func (g *Guest) SetVersion(major, minor int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.versionCode = major*100 + minor
}

func (g *Guest) VersionCode() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.versionCode
}

// Start transitions Initialized|Stopped -> Booting -> Running, requiring
// a kernel image to be present (spec.md §4.7 start). On failure (wrong
// state, or no kernel) it returns false and leaves state unchanged.
func (g *Guest) Start() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Initialized && g.state != Stopped {
		return false
	}
	if len(g.kernelImage) == 0 {
		return false
	}
	g.state = Booting
	g.state = Running
	return true
}

// Pause transitions Running -> Paused.
func (g *Guest) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Running {
		return false
	}
	g.state = Paused
	return true
}

// Resume transitions Paused -> Running.
func (g *Guest) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Paused {
		return false
	}
	g.state = Running
	return true
}

// Stop transitions any live state to Stopped (spec.md §4.7 stop).
func (g *Guest) Stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Uninitialized || g.state == Error {
		return false
	}
	g.state = Stopped
	return true
}

// Fail transitions unconditionally to the terminal Error state.
func (g *Guest) Fail() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Error
}

// Destroy transitions through Stopped and frees all owned buffers
// (spec.md §4.7 destroy): no transition skips Stopped on the way to
// Uninitialized.
func (g *Guest) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Stopped
	g.kernelImage = nil
	g.ramdisk = nil
	g.systemPart = nil
	g.dataPart = nil
	g.state = Uninitialized
}

// HandleSyscall forwards a syscall invocation to the dispatch table
// (spec.md §4.7 "forwards syscalls to C3"), supplying the shared kernel
// state (locked for the call) and this guest's own memory view.
func (g *Guest) HandleSyscall(n int, args [6]uint64) int32 {
	ctx := &syscallapi.Ctx{
		Kernel:   g.Kernel,
		Mem:      g.Mem,
		Nodename: g.ID,
	}
	if g.Arch == ArchAndroid {
		ctx.Sysname = "Aurora"
		ctx.Machine = "aarch64"
	}
	g.Kernel.Lock()
	defer g.Kernel.Unlock()
	ret := syscallapi.Dispatch(ctx, n, args)
	g.recordTrace(n, args, ret)
	return ret
}

func (g *Guest) recordTrace(n int, args [6]uint64, ret int32) {
	line := fmt.Sprintf("syscall(%d, %#x, %#x, %#x, %#x, %#x, %#x) = %d",
		n, args[0], args[1], args[2], args[3], args[4], args[5], ret)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trace = append(g.trace, line)
	if len(g.trace) > maxTraceEntries {
		g.trace = g.trace[len(g.trace)-maxTraceEntries:]
	}
}

// TraceLog returns a snapshot of the most recent syscall trace lines, for
// the debug console's tail view (spec.md §9 supplemented feature).
func (g *Guest) TraceLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.trace))
	copy(out, g.trace)
	return out
}
