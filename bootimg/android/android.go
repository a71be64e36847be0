// Package android parses Android boot.img v3/v4 headers and vendor boot
// images (spec.md §4.5, §6.1) and publishes the result into bootproto's
// Android boot state.
package android

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aurora-os/guestcore/bootproto"
	"github.com/aurora-os/guestcore/memview"
)

const (
	pageSize = 4096

	magic       = "ANDROID!"
	vendorMagic = "VNDRBOOT"

	// Offsets per spec.md §6.1 (little-endian, no padding).
	offKernelSize    = 8
	offRamdiskSize   = 12
	offOSVersion     = 16
	offHeaderSize    = 20
	offReserved      = 24
	offHeaderVersion = 40
	offCmdline       = 44
	cmdlineCap       = 1536
	v3HeaderMinSize  = 1612
	offSignatureSize = 1580 // v4 only
)

var ErrInvalidImage = errors.New("android: invalid boot image")

func roundUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

// parseCmdline reads a NUL-padded cmdline field and truncates it to
// spec.md's 1535-byte content cap (see SPEC_FULL.md open-question
// decision #2: we don't need the C source's one-byte-past-the-end
// terminator since Go strings carry their own length).
func parseCmdline(b []byte) string {
	n := len(b)
	if n > cmdlineCap-1 {
		n = cmdlineCap - 1
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b[:n])
}

// Header is the parsed content of a boot.img v3/v4 header.
type Header struct {
	HeaderVersion uint32
	KernelSize    uint32
	RamdiskSize   uint32
	OSVersion     uint32
	HeaderSize    uint32
	Cmdline       string
	SignatureSize uint32

	KernelOff  uint32
	RamdiskOff uint32
}

// ParseBootImage validates and parses a boot.img v3/v4 header
// (spec.md §4.5).
func ParseBootImage(data []byte) (*Header, error) {
	if len(data) < v3HeaderMinSize {
		return nil, fmt.Errorf("%w: short buffer (%d bytes)", ErrInvalidImage, len(data))
	}
	if string(data[0:8]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidImage)
	}

	hv := binary.LittleEndian.Uint32(data[offHeaderVersion:])
	if hv != 3 && hv != 4 {
		return nil, fmt.Errorf("%w: unsupported header_version %d", ErrInvalidImage, hv)
	}

	h := &Header{
		HeaderVersion: hv,
		KernelSize:    binary.LittleEndian.Uint32(data[offKernelSize:]),
		RamdiskSize:   binary.LittleEndian.Uint32(data[offRamdiskSize:]),
		OSVersion:     binary.LittleEndian.Uint32(data[offOSVersion:]),
		HeaderSize:    binary.LittleEndian.Uint32(data[offHeaderSize:]),
		Cmdline:       parseCmdline(data[offCmdline : offCmdline+cmdlineCap]),
	}
	if hv == 4 && len(data) > offSignatureSize+4 {
		h.SignatureSize = binary.LittleEndian.Uint32(data[offSignatureSize:])
	}

	h.KernelOff = roundUp(h.HeaderSize, pageSize)
	h.RamdiskOff = h.KernelOff + roundUp(h.KernelSize, pageSize)
	return h, nil
}

// Guest is the minimal surface android.LoadIntoGuest needs from a guest
// container: copying bytes in, seeding the boot-protocol state.
type Guest interface {
	SetKernelImage(data []byte, entry uint64)
	SetRamdisk(data []byte, loadAddr uint64)
}

// LoadIntoGuest parses bootImage, copies the kernel and ramdisk payloads
// into the guest, and publishes the global Android boot state
// (spec.md §4.5 load_into_guest).
func LoadIntoGuest(g Guest, proto *bootproto.State, bootImage []byte, kernelLoadAddr uint64) (*Header, error) {
	h, err := ParseBootImage(bootImage)
	if err != nil {
		return nil, err
	}

	kernelEnd := uint64(h.KernelOff) + uint64(h.KernelSize)
	if kernelEnd > uint64(len(bootImage)) {
		return nil, fmt.Errorf("%w: kernel segment exceeds image length", ErrInvalidImage)
	}
	kernel := bootImage[h.KernelOff:kernelEnd]

	var ramdisk []byte
	if h.RamdiskSize > 0 {
		ramdiskEnd := uint64(h.RamdiskOff) + uint64(h.RamdiskSize)
		if ramdiskEnd > uint64(len(bootImage)) {
			return nil, fmt.Errorf("%w: ramdisk segment exceeds image length", ErrInvalidImage)
		}
		ramdisk = bootImage[h.RamdiskOff:ramdiskEnd]
	}

	g.SetKernelImage(kernel, kernelLoadAddr)
	if ramdisk != nil {
		g.SetRamdisk(ramdisk, 0)
	}

	proto.Android = bootproto.AndroidBoot{
		Initialized:   true,
		HeaderVersion: h.HeaderVersion,
		KernelOff:     h.KernelOff,
		KernelSize:    h.KernelSize,
		RamdiskOff:    h.RamdiskOff,
		RamdiskSize:   h.RamdiskSize,
		Cmdline:       h.Cmdline,
	}
	return h, nil
}

// VendorHeader is the parsed content of a vendor boot image.
type VendorHeader struct {
	DTBAddr  uint64
	DTBSize  uint32
	Cmdline  string
	Ramdisk  []byte
	DTB      []byte
}

// LoadVendor parses a vendor boot image and merges it into the published
// Android boot state (spec.md §4.5 load_vendor): updates DTB fields and
// appends the vendor cmdline, space-separated, to the existing cmdline.
func LoadVendor(proto *bootproto.State, vendorImage []byte) (*VendorHeader, error) {
	if len(vendorImage) < 8 || string(vendorImage[0:8]) != vendorMagic {
		return nil, fmt.Errorf("%w: bad vendor magic", ErrInvalidImage)
	}

	// A compact vendor layout: header_size(u32) @8, dtb_size(u32) @12,
	// dtb_addr(u64) @16, cmdline follows at a fixed offset mirroring the
	// main header's cmdline field layout.
	const (
		offVDTBSize   = 12
		offVDTBAddr   = 16
		offVCmdline   = 24
	)
	if len(vendorImage) < offVCmdline+cmdlineCap {
		return nil, fmt.Errorf("%w: vendor image too short", ErrInvalidImage)
	}

	vh := &VendorHeader{
		DTBSize: binary.LittleEndian.Uint32(vendorImage[offVDTBSize:]),
		DTBAddr: binary.LittleEndian.Uint64(vendorImage[offVDTBAddr:]),
		Cmdline: parseCmdline(vendorImage[offVCmdline : offVCmdline+cmdlineCap]),
	}

	proto.Android.DTBAddr = vh.DTBAddr
	proto.Android.DTBSize = vh.DTBSize
	if proto.Android.Cmdline == "" {
		proto.Android.Cmdline = vh.Cmdline
	} else if vh.Cmdline != "" {
		proto.Android.Cmdline = proto.Android.Cmdline + " " + vh.Cmdline
	}

	dtbEnd := offVCmdline + cmdlineCap + int(vh.DTBSize)
	if vh.DTBSize > 0 && dtbEnd <= len(vendorImage) {
		vh.DTB = vendorImage[offVCmdline+cmdlineCap : dtbEnd]
	}
	return vh, nil
}

// SetupARM64 writes the ARM64 boot ABI registers: x0 = dtb address,
// x1 = x2 = x3 = 0 (spec.md §4.5 setup_arm64).
func SetupARM64(view *memview.Bounded, dtbAddr uint64) {
	view.RegisterSet(memview.RegX0, dtbAddr)
	view.RegisterSet(memview.RegX1, 0)
	view.RegisterSet(memview.RegX2, 0)
	view.RegisterSet(memview.RegX3, 0)
}

// VerifySignature implements the AVB placeholder contract spec.md §4.5
// documents explicitly: it does not check a cryptographic signature.
// It returns true iff the image is v4, carries a non-zero signature
// size, and the signature region's offset lies within the image — i.e.
// "structurally well-formed for verification", not "verified".
func VerifySignature(image []byte) bool {
	h, err := ParseBootImage(image)
	if err != nil || h.HeaderVersion != 4 || h.SignatureSize == 0 {
		return false
	}
	kernelPages := (h.KernelSize + pageSize - 1) / pageSize
	ramdiskPages := (h.RamdiskSize + pageSize - 1) / pageSize
	sigOff := uint64(h.HeaderSize) + uint64(kernelPages+ramdiskPages)*pageSize
	return sigOff+uint64(h.SignatureSize) <= uint64(len(image))
}
