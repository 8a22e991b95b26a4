//go:build linux && (amd64 || arm64)

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2FrmsizeDiscrete{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2FrmsizeStepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2RequestBuffers{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(v4l2Timecode{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	vidiocQuerycap       = 0x80685600
	vidiocEnumFmt        = 0xc0405602
	vidiocGFmt           = 0xc0d05604
	vidiocSFmt           = 0xc0d05605
	vidiocReqbufs        = 0xc0145608
	vidiocQuerybuf       = 0xc0585609
	vidiocQbuf           = 0xc058560f
	vidiocDqbuf          = 0xc0585611
	vidiocStreamon       = 0x40045612
	vidiocStreamoff      = 0x40045613
	vidiocTryFmt         = 0xc0d05640
	vidiocSPriority      = 0x40045644
	vidiocEnumFramesizes = 0xc02c564a
)

// v4l2Capability has size 104 bytes.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// v4l2Fmtdesc has size 64 bytes.
type v4l2Fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbusCode    uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

// v4l2FrmsizeDiscrete has size 8 bytes.
type v4l2FrmsizeDiscrete struct {
	width  uint32
	height uint32
}

// v4l2FrmsizeStepwise has size 24 bytes.
type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

// v4l2Frmsizeenum has size 44 bytes.
type v4l2Frmsizeenum struct {
	index       uint32              // offset 0
	pixelFormat uint32              // offset 4
	typ         uint32              // offset 8
	discrete    v4l2FrmsizeDiscrete // offset 12 (union with stepwise)
	_           [16]byte            // padding for stepwise
	reserved    [2]uint32           // offset 36
}

// v4l2PixFormat has size 48 bytes.
type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2Format has size 208 bytes. The union is 8-byte aligned because
// v4l2_window carries pointers.
type v4l2Format struct {
	typ uint32    // offset 0
	_   [4]byte   // padding
	fmt [200]byte // offset 8
}

func (f *v4l2Format) pix() *v4l2PixFormat {
	return (*v4l2PixFormat)(unsafe.Pointer(&f.fmt[0]))
}

// v4l2RequestBuffers has size 20 bytes.
type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

// v4l2Timecode has size 16 bytes.
type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

// v4l2Buffer has size 88 bytes.
type v4l2Buffer struct {
	index     uint32       // offset 0
	typ       uint32       // offset 4
	bytesused uint32       // offset 8
	flags     uint32       // offset 12
	field     uint32       // offset 16
	_         [4]byte      // padding
	timestamp unix.Timeval // offset 24
	timecode  v4l2Timecode // offset 40
	sequence  uint32       // offset 56
	memory    uint32       // offset 60
	m         uint64       // offset 64 (union: offset, userptr, planes, fd)
	length    uint32       // offset 72
	reserved2 uint32       // offset 76
	requestFD uint32       // offset 80
	_         [4]byte      // padding to 88
}

// offset returns the mmap offset stored in the m union.
func (b *v4l2Buffer) offset() uint32 {
	return uint32(b.m)
}
