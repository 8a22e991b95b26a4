//go:build linux && (amd64 || arm64)

package v4l2

import (
	"testing"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{name: "YUYV format", format: PixFmtYUYV, expected: "YUYV"},
		{name: "MJPEG format", format: PixFmtMJPEG, expected: "MJPG"},
		{name: "RGB24 format", format: PixFmtRGB24, expected: "RGB3"},
		{name: "BGR24 format", format: PixFmtBGR24, expected: "BGR3"},
		{name: "NV12 format", format: PixFmtNV12, expected: "NV12"},
		{name: "null bytes", format: 0x00000000, expected: "\x00\x00\x00\x00"},
		{name: "mixed bytes", format: 0x01020304, expected: "\x04\x03\x02\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFourCC(t *testing.T) {
	tests := []struct {
		code string
		want uint32
	}{
		{"YUYV", PixFmtYUYV},
		{"MJPG", PixFmtMJPEG},
		{"RGB3", PixFmtRGB24},
		{"BGR3", PixFmtBGR24},
		{"Y8", FourCC("Y8  ")},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := FourCC(tt.code); got != tt.want {
				t.Errorf("FourCC(%q) = 0x%08X, want 0x%08X", tt.code, got, tt.want)
			}
			if len(tt.code) == 4 && FormatFourCC(FourCC(tt.code)) != tt.code {
				t.Errorf("FormatFourCC(FourCC(%q)) did not round trip", tt.code)
			}
		})
	}
}

func TestNodeLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"/dev/video0", "/dev/video1", true},
		{"/dev/video2", "/dev/video10", true},
		{"/dev/video10", "/dev/video2", false},
		{"/dev/media0", "/dev/video0", true},
	}

	for _, tt := range tests {
		if got := nodeLess(tt.a, tt.b); got != tt.want {
			t.Errorf("nodeLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCstr(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "uvcvideo")
	if got := cstr(buf); got != "uvcvideo" {
		t.Errorf("cstr() = %q, want %q", got, "uvcvideo")
	}

	full := []byte("abcd")
	if got := cstr(full); got != "abcd" {
		t.Errorf("cstr() without terminator = %q, want %q", got, "abcd")
	}
}

func TestBufferOffsetFromUnion(t *testing.T) {
	buf := v4l2Buffer{m: 0xdeadbeef_00004000}
	if got := buf.offset(); got != 0x4000 {
		t.Errorf("offset() = 0x%x, want 0x4000", got)
	}
}

func TestFormatPixOverlay(t *testing.T) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	pix := f.pix()
	pix.width = 480
	pix.height = 480
	pix.pixelformat = PixFmtRGB24

	got := fromPix(f.pix())
	if got.Width != 480 || got.Height != 480 || got.PixelFormat != PixFmtRGB24 {
		t.Errorf("fromPix() = %+v, want 480x480 RGB3", got)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open("/dev/video-does-not-exist"); err == nil {
		t.Fatal("expected error opening missing device")
	}
}
