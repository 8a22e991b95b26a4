//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GetFormats returns all supported capture pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFD(fd)

	return enumFormats(fd)
}

func enumFormats(fd int) ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		desc := v4l2Fmtdesc{
			index: i,
			typ:   bufTypeVideoCapture,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: desc.pixelformat,
			FormatName:  cstr(desc.description[:]),
			Emulated:    desc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// GetResolutions returns all supported resolutions for a device and pixel format.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFD(fd)

	return enumResolutions(fd, pixelFormat)
}

func enumResolutions(fd int, pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) {
				break // End of enumeration
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(ioctlErr, unix.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, ioctlErr)
		}

		switch frmsize.typ {
		case frmsizeTypeDiscrete:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case frmsizeTypeContinuous, frmsizeTypeStepwise:
			return append(resolutions, stepwiseResolutions(&frmsize)...), nil
		}
	}

	return resolutions, nil
}

// stepwiseResolutions returns common resolutions within a stepwise range.
func stepwiseResolutions(frmsize *v4l2Frmsizeenum) []Resolution {
	commonResolutions := [][2]uint32{
		{320, 240},   // QVGA
		{480, 480},   // square preview
		{640, 480},   // VGA
		{800, 600},   // SVGA
		{1280, 720},  // HD
		{1920, 1080}, // Full HD
		{2592, 1944}, // 5 MP sensors
		{3840, 2160}, // 4K UHD
	}

	// stepwise overlays discrete in memory
	stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))

	var resolutions []Resolution
	for _, res := range commonResolutions {
		w, h := res[0], res[1]
		if w >= stepwise.minWidth && w <= stepwise.maxWidth &&
			h >= stepwise.minHeight && h <= stepwise.maxHeight {
			resolutions = append(resolutions, Resolution{Width: w, Height: h})
		}
	}

	return resolutions
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}

// FourCC packs a four character code into a pixel format value.
// Codes shorter than four characters are padded with spaces.
func FourCC(code string) uint32 {
	var b [4]byte
	for i := range b {
		b[i] = ' '
		if i < len(code) {
			b[i] = code[i]
		}
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
