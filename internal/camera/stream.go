package camera

import (
	"fmt"

	"github.com/smazurov/snapcam/internal/platform"
)

// StreamConfig is a requested or applied stream format. Zero fields in a
// request leave the device default in place.
type StreamConfig struct {
	Width       uint32               `json:"width"`
	Height      uint32               `json:"height"`
	PixelFormat platform.PixelFormat `json:"pixel_format"`
	Role        platform.StreamRole  `json:"role"`
	BufferCount int                  `json:"buffer_count"`
	Stride      uint32               `json:"stride,omitempty"`
	FrameSize   uint32               `json:"frame_size,omitempty"`
}

// DefaultStreamConfig is a 480x480 BGR888 video recording stream with four
// buffers.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Width:       480,
		Height:      480,
		PixelFormat: platform.FormatBGR888,
		Role:        platform.RoleVideoRecording,
		BufferCount: 4,
	}
}

// Size returns the resolution.
func (c StreamConfig) Size() platform.Size {
	return platform.Size{Width: c.Width, Height: c.Height}
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dx%d %s x%d", c.Width, c.Height, c.PixelFormat, c.BufferCount)
}

// adjustments lists requested fields the device did not honour.
func (c StreamConfig) adjustments(applied StreamConfig) []string {
	var out []string
	if c.Width != 0 && c.Height != 0 && c.Size() != applied.Size() {
		out = append(out, fmt.Sprintf("size %s -> %s", c.Size(), applied.Size()))
	}
	if c.PixelFormat != "" && c.PixelFormat != applied.PixelFormat {
		out = append(out, fmt.Sprintf("format %s -> %s", c.PixelFormat, applied.PixelFormat))
	}
	if c.BufferCount != 0 && c.BufferCount != applied.BufferCount {
		out = append(out, fmt.Sprintf("buffers %d -> %d", c.BufferCount, applied.BufferCount))
	}
	return out
}

func fromPlatform(sc *platform.StreamConfiguration) StreamConfig {
	return StreamConfig{
		Width:       sc.Size.Width,
		Height:      sc.Size.Height,
		PixelFormat: sc.PixelFormat,
		Role:        sc.Role,
		BufferCount: sc.BufferCount,
		Stride:      sc.Stride,
		FrameSize:   sc.FrameSize,
	}
}
