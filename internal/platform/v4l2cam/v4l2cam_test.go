//go:build linux && (amd64 || arm64)

package v4l2cam

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/pkg/linuxav/v4l2"
)

func TestFourCCMapping(t *testing.T) {
	tests := []struct {
		format platform.PixelFormat
		fourcc uint32
	}{
		{platform.FormatBGR888, v4l2.PixFmtRGB24},
		{platform.FormatRGB888, v4l2.PixFmtBGR24},
		{platform.FormatYUYV, v4l2.PixFmtYUYV},
		{platform.FormatNV12, v4l2.PixFmtNV12},
		{platform.FormatMJPEG, v4l2.PixFmtMJPEG},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, ok := toFourCC(tt.format)
			if !ok || got != tt.fourcc {
				t.Errorf("toFourCC(%s) = %s, %v", tt.format, v4l2.FormatFourCC(got), ok)
			}
			back, ok := fromFourCC(tt.fourcc)
			if !ok || back != tt.format {
				t.Errorf("fromFourCC(%s) = %s, %v", v4l2.FormatFourCC(tt.fourcc), back, ok)
			}
		})
	}

	if _, ok := fromFourCC(v4l2.PixFmtH264); ok {
		t.Error("fromFourCC(H264) should not map")
	}
}

func TestSupportedFormatsOrder(t *testing.T) {
	formats := []v4l2.FormatInfo{
		{PixelFormat: v4l2.PixFmtMJPEG},
		{PixelFormat: v4l2.PixFmtH264},
		{PixelFormat: v4l2.PixFmtYUYV},
		{PixelFormat: v4l2.PixFmtRGB24},
	}

	got := supportedFormats(formats)
	want := []platform.PixelFormat{platform.FormatBGR888, platform.FormatYUYV, platform.FormatMJPEG}
	if len(got) != len(want) {
		t.Fatalf("supportedFormats() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("supportedFormats()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSubsystemRequiresStart(t *testing.T) {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := s.Get("anything"); !errors.Is(err, platform.ErrNotStarted) {
		t.Errorf("Get() before Start error = %v, want ErrNotStarted", err)
	}
	if err := s.Stop(); !errors.Is(err, platform.ErrNotStarted) {
		t.Errorf("Stop() before Start error = %v, want ErrNotStarted", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start(cancelled) error = %v, want context.Canceled", err)
	}
}
