package platform

import (
	"fmt"
	"strings"
)

// PixelFormat names a frame layout using DRM-style names.
type PixelFormat string

// Supported pixel formats.
const (
	FormatBGR888 PixelFormat = "BGR888" // 24bpp, byte order R, G, B
	FormatRGB888 PixelFormat = "RGB888" // 24bpp, byte order B, G, R
	FormatYUYV   PixelFormat = "YUYV"
	FormatNV12   PixelFormat = "NV12"
	FormatMJPEG  PixelFormat = "MJPEG"
)

// ParsePixelFormat accepts format names case-insensitively.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch f := PixelFormat(strings.ToUpper(strings.TrimSpace(s))); f {
	case FormatBGR888, FormatRGB888, FormatYUYV, FormatNV12, FormatMJPEG:
		return f, nil
	case "MJPG":
		return FormatMJPEG, nil
	default:
		return "", fmt.Errorf("unknown pixel format %q", s)
	}
}

// Stride returns the bytes per line for width pixels, or 0 for compressed
// formats.
func (f PixelFormat) Stride(width uint32) uint32 {
	switch f {
	case FormatBGR888, FormatRGB888:
		return width * 3
	case FormatYUYV:
		return width * 2
	case FormatNV12:
		return width
	default:
		return 0
	}
}

// FrameSize returns the expected payload size of one frame.
func (f PixelFormat) FrameSize(size Size) uint32 {
	switch f {
	case FormatNV12:
		return size.Width * size.Height * 3 / 2
	case FormatMJPEG:
		// Upper bound used by most drivers for compressed frames.
		return size.Width * size.Height * 2
	default:
		return f.Stride(size.Width) * size.Height
	}
}

// StreamRole is a hint for the intended use of a stream.
type StreamRole int

// Stream roles.
const (
	RoleRaw StreamRole = iota
	RoleStillCapture
	RoleVideoRecording
	RoleViewfinder
)

var roleNames = map[StreamRole]string{
	RoleRaw:            "raw",
	RoleStillCapture:   "still",
	RoleVideoRecording: "video",
	RoleViewfinder:     "viewfinder",
}

func (r StreamRole) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r StreamRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *StreamRole) UnmarshalText(b []byte) error {
	v, err := ParseStreamRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseStreamRole parses names produced by StreamRole.String.
func ParseStreamRole(s string) (StreamRole, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown stream role %q", s)
}

// Size is a frame resolution in pixels.
type Size struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Stream identifies a configured stream. Implementations hand out stream
// pointers during Configure; identity is pointer equality.
type Stream struct {
	index int
}

// NewStream creates a stream handle. Only implementations call this.
func NewStream(index int) *Stream {
	return &Stream{index: index}
}

// Index is the position of the stream in its configuration.
func (s *Stream) Index() int {
	if s == nil {
		return -1
	}
	return s.index
}

// StreamConfiguration is the per-stream part of a Configuration.
type StreamConfiguration struct {
	Role        StreamRole
	Size        Size
	PixelFormat PixelFormat
	Stride      uint32
	FrameSize   uint32
	BufferCount int

	stream *Stream
}

// Stream returns the stream bound by Configure, nil before that.
func (sc *StreamConfiguration) Stream() *Stream {
	return sc.stream
}

// SetStream binds the stream. Only implementations call this.
func (sc *StreamConfiguration) SetStream(s *Stream) {
	sc.stream = s
}

// Configuration groups the stream configurations applied to a camera.
type Configuration struct {
	Streams []StreamConfiguration
}

// At returns the i-th stream configuration.
func (c *Configuration) At(i int) *StreamConfiguration {
	return &c.Streams[i]
}

// ValidationStatus is the result of Camera.Validate.
type ValidationStatus int

// Validation results.
const (
	Valid ValidationStatus = iota
	Adjusted
	Invalid
)

func (v ValidationStatus) String() string {
	switch v {
	case Valid:
		return "valid"
	case Adjusted:
		return "adjusted"
	default:
		return "invalid"
	}
}
