package platform

import (
	"errors"
	"testing"
)

func TestRequestLifecycle(t *testing.T) {
	stream := NewStream(0)
	buf := NewFrameBuffer(0, make([]byte, 16))
	req := NewRequest(7)

	if req.Cookie() != 7 {
		t.Errorf("Cookie() = %d, want 7", req.Cookie())
	}
	if req.Status() != RequestPending {
		t.Fatalf("new request status = %s, want pending", req.Status())
	}
	if err := req.AddBuffer(stream, buf); err != nil {
		t.Fatalf("AddBuffer() error = %v", err)
	}
	if err := req.AddBuffer(stream, buf); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("second AddBuffer() error = %v, want ErrInvalidRequest", err)
	}

	if err := req.MarkQueued(); err != nil {
		t.Fatalf("MarkQueued() error = %v", err)
	}
	if err := req.MarkQueued(); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("MarkQueued() twice error = %v, want ErrRequestInFlight", err)
	}
	if err := req.Reuse(); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("Reuse() in flight error = %v, want ErrRequestInFlight", err)
	}

	if !req.Finish(RequestComplete) {
		t.Fatal("Finish() = false for queued request")
	}
	if req.Finish(RequestCancelled) {
		t.Error("Finish() = true for already finished request")
	}
	if err := req.MarkQueued(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("MarkQueued() on complete request error = %v, want ErrInvalidRequest", err)
	}

	if err := req.Reuse(); err != nil {
		t.Fatalf("Reuse() error = %v", err)
	}
	if req.Status() != RequestPending {
		t.Errorf("status after Reuse() = %s, want pending", req.Status())
	}
	if got := req.Buffer(stream); got != buf {
		t.Error("Reuse() dropped buffer binding")
	}
}

func TestRequestAddBufferRejectsNil(t *testing.T) {
	req := NewRequest(0)
	if err := req.AddBuffer(nil, NewFrameBuffer(0, nil)); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("AddBuffer(nil stream) error = %v", err)
	}
	if err := req.AddBuffer(NewStream(0), nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("AddBuffer(nil buffer) error = %v", err)
	}
}

func TestFrameBufferData(t *testing.T) {
	mem := []byte("abcdefgh")
	buf := NewFrameBuffer(3, mem)

	if len(buf.Data()) != 0 {
		t.Errorf("Data() before completion = %q, want empty", buf.Data())
	}

	buf.SetMetadata(FrameMetadata{BytesUsed: 4, Sequence: 9})
	if got := string(buf.Data()); got != "abcd" {
		t.Errorf("Data() = %q, want %q", got, "abcd")
	}

	buf.SetMetadata(FrameMetadata{BytesUsed: 100})
	if got := len(buf.Data()); got != len(mem) {
		t.Errorf("Data() length = %d, want clamp to %d", got, len(mem))
	}
}

func TestPixelFormatSizes(t *testing.T) {
	size := Size{Width: 480, Height: 480}
	tests := []struct {
		format PixelFormat
		stride uint32
		frame  uint32
	}{
		{FormatBGR888, 1440, 1440 * 480},
		{FormatRGB888, 1440, 1440 * 480},
		{FormatYUYV, 960, 960 * 480},
		{FormatNV12, 480, 480 * 480 * 3 / 2},
		{FormatMJPEG, 0, 480 * 480 * 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.Stride(size.Width); got != tt.stride {
				t.Errorf("Stride() = %d, want %d", got, tt.stride)
			}
			if got := tt.format.FrameSize(size); got != tt.frame {
				t.Errorf("FrameSize() = %d, want %d", got, tt.frame)
			}
		})
	}
}

func TestParsers(t *testing.T) {
	if f, err := ParsePixelFormat("bgr888"); err != nil || f != FormatBGR888 {
		t.Errorf("ParsePixelFormat(bgr888) = %q, %v", f, err)
	}
	if f, err := ParsePixelFormat("mjpg"); err != nil || f != FormatMJPEG {
		t.Errorf("ParsePixelFormat(mjpg) = %q, %v", f, err)
	}
	if _, err := ParsePixelFormat("XRGB"); err == nil {
		t.Error("ParsePixelFormat(XRGB) expected error")
	}

	for _, role := range []StreamRole{RoleRaw, RoleStillCapture, RoleVideoRecording, RoleViewfinder} {
		got, err := ParseStreamRole(role.String())
		if err != nil || got != role {
			t.Errorf("ParseStreamRole(%q) = %v, %v", role.String(), got, err)
		}
	}
	if _, err := ParseStreamRole("thermal"); err == nil {
		t.Error("ParseStreamRole(thermal) expected error")
	}
}
