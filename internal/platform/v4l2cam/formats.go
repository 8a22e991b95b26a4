//go:build linux && (amd64 || arm64)

package v4l2cam

import (
	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/pkg/linuxav/v4l2"
)

// DRM format names describe a packed pixel as a little-endian word, V4L2
// names describe byte order in memory, so the 24-bit RGB names swap.
var fourccByFormat = map[platform.PixelFormat]uint32{
	platform.FormatBGR888: v4l2.PixFmtRGB24,
	platform.FormatRGB888: v4l2.PixFmtBGR24,
	platform.FormatYUYV:   v4l2.PixFmtYUYV,
	platform.FormatNV12:   v4l2.PixFmtNV12,
	platform.FormatMJPEG:  v4l2.PixFmtMJPEG,
}

// preferredFormats orders formats by how little work a consumer needs to
// interpret them.
var preferredFormats = []platform.PixelFormat{
	platform.FormatBGR888,
	platform.FormatRGB888,
	platform.FormatYUYV,
	platform.FormatNV12,
	platform.FormatMJPEG,
}

func toFourCC(f platform.PixelFormat) (uint32, bool) {
	code, ok := fourccByFormat[f]
	return code, ok
}

func fromFourCC(code uint32) (platform.PixelFormat, bool) {
	for f, c := range fourccByFormat {
		if c == code {
			return f, true
		}
	}
	return "", false
}

// supportedFormats filters device formats to the ones this package can
// name, in preference order.
func supportedFormats(formats []v4l2.FormatInfo) []platform.PixelFormat {
	have := make(map[uint32]bool, len(formats))
	for _, f := range formats {
		have[f.PixelFormat] = true
	}

	var out []platform.PixelFormat
	for _, f := range preferredFormats {
		if have[fourccByFormat[f]] {
			out = append(out, f)
		}
	}
	return out
}
