//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"time"
)

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// PixFormat is the single-planar image format exchanged with S_FMT/TRY_FMT.
// The driver fills BytesPerLine and SizeImage.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Buffer describes a buffer returned by DequeueBuffer.
type Buffer struct {
	Index     int
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Time
	Error     bool // driver flagged the payload as corrupted
}

// Errors returned by the streaming API.
var (
	ErrNotCaptureDevice = errors.New("v4l2: not a streaming video capture device")
	ErrDeviceBusy       = errors.New("v4l2: device busy")
	ErrNoBuffer         = errors.New("v4l2: no buffer ready")
)

// Capability flags.
const (
	capVideoCapture = 0x00000001
	capStreaming    = 0x04000000
	capDeviceCaps   = 0x80000000
)

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Common pixel formats.
const (
	PixFmtYUYV  uint32 = 0x56595559 // 'YUYV'
	PixFmtMJPEG uint32 = 0x47504A4D // 'MJPG'
	PixFmtNV12  uint32 = 0x3231564E // 'NV12'
	PixFmtRGB24 uint32 = 0x33424752 // 'RGB3'
	PixFmtBGR24 uint32 = 0x33524742 // 'BGR3'
	PixFmtH264  uint32 = 0x34363248 // 'H264'
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Buffer and memory types.
const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
	bufFlagError        = 0x00000040
)

// priorityRecord is V4L2_PRIORITY_RECORD; only one file handle may hold it.
const priorityRecord = 3
