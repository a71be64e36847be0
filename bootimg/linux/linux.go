// Package linux parses Linux bzImage headers and installs boot
// parameters (spec.md §4.6, §6.2, §6.3): the setup header at offset
// 0x1F1, the default E820 map, KASLR, and cmdline handling.
package linux

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/aurora-os/guestcore/bootproto"
	"github.com/aurora-os/guestcore/memview"
)

const (
	bootSectorOff  = 510
	setupHeaderOff = 0x1F1
	headerMagicOff = 0x202
	headerMagic    = 0x53726448 // "HdrS"

	setupSectsOff = setupHeaderOff // setup_sects is the first byte of the header
	defaultSetupSects = 4

	defaultCmdline = "console=ttyS0 root=/dev/ram0 rw"

	kaslrAlignment = 2 * 1024 * 1024
	kaslrRangeLo   = 0x100_0000
	kaslrRangeHi   = 0x400_0000
)

// IsBzImage reports whether data is a bzImage: the 0x55 0xAA boot-sector
// signature plus the "HdrS" setup-header magic (spec.md §6.2).
func IsBzImage(data []byte) bool {
	if len(data) < 512 {
		return false
	}
	if data[bootSectorOff] != 0x55 || data[bootSectorOff+1] != 0xAA {
		return false
	}
	if len(data) < headerMagicOff+4 {
		return false
	}
	return binary.LittleEndian.Uint32(data[headerMagicOff:]) == headerMagic
}

// Guest is the minimal surface LoadKernel needs from a guest container.
type Guest interface {
	SetKernelImage(data []byte, entry uint64)
	KernelLoadAddr() uint64
	CmdlineForBoot() string
}

// LoadKernel loads a (possibly bzImage-wrapped) kernel into the guest and
// publishes the Linux boot-protocol state (spec.md §4.6 load_kernel).
//
// Per SPEC_FULL.md's open-question decision: the vm-provided cmdline
// (g.CmdlineForBoot) takes precedence over the default, resolving
// spec.md §9's documented cmdline-overwrite-ordering ambiguity.
func LoadKernel(g Guest, proto *bootproto.State, image []byte, memSize uint64) {
	var payload []byte
	if IsBzImage(image) {
		setupSects := int(image[setupSectsOff])
		if setupSects == 0 {
			setupSects = defaultSetupSects
		}
		setupSize := (setupSects + 1) * 512
		if setupSize < len(image) {
			payload = image[setupSize:]
		} else {
			payload = nil
		}
	} else {
		payload = image
	}

	g.SetKernelImage(payload, g.KernelLoadAddr())

	proto.Linux = bootproto.LinuxBoot{
		Initialized:     true,
		ProtocolVersion: 0x0214,
		KernelAddr:      g.KernelLoadAddr(),
		KernelSize:      uint64(len(payload)),
	}
	SetupParams(proto, memSize, g.CmdlineForBoot())
}

// SetupParams installs the default three-entry E820 map and resolves the
// cmdline (spec.md §4.6 setup_params): vm cmdline wins, else the default.
func SetupParams(proto *bootproto.State, memSize uint64, vmCmdline string) {
	lb := &proto.Linux
	lb.E820Count = 0
	lb.AddE820Entry(0x0, 0xA0000, bootproto.MemRAM)
	lb.AddE820Entry(0xA0000, 0x60000, bootproto.MemReserved)
	if memSize > 0x100000 {
		lb.AddE820Entry(0x100000, memSize-0x100000, bootproto.MemRAM)
	}

	if vmCmdline != "" {
		lb.Cmdline = vmCmdline
	} else if lb.Cmdline == "" {
		lb.Cmdline = defaultCmdline
	}
}

// SetupCPU sets ESP/EBP per spec.md §4.6 setup_cpu.
func SetupCPU(view *memview.Bounded) {
	view.RegisterSet(memview.RegESP, 0x90000)
	view.RegisterSet(memview.RegEBP, bootParamsAddr)
}

const bootParamsAddr = 0x7000

// SetupKASLR computes a randomized load offset within [kaslrRangeLo,
// kaslrRangeHi) aligned to kaslrAlignment, publishes it as KernelAddr
// (spec.md §4.6 setup_kaslr).
func SetupKASLR(proto *bootproto.State, entropy uint64) uint64 {
	slots := uint64((kaslrRangeHi - kaslrRangeLo) / kaslrAlignment)
	offset := (entropy % slots) * kaslrAlignment
	proto.Linux.KASLROffset = offset
	proto.Linux.KernelAddr = kaslrRangeLo + offset
	return proto.Linux.KernelAddr
}

// BootCRC32 computes the CRC32 spec.md §4.6 documents: polynomial
// 0xEDB88320, seed 0xFFFFFFFF, final XOR 0xFFFFFFFF — i.e. the stdlib's
// standard IEEE CRC32, which already implements exactly that algorithm.
// No third-party checksum library has anything to add here; see
// DESIGN.md for why this one function stays on hash/crc32.
func BootCRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
