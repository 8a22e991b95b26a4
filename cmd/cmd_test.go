package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/config"
	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/internal/platform/fake"
)

func useFake(t *testing.T, specs ...fake.CameraSpec) *fake.Subsystem {
	t.Helper()
	color.NoColor = true
	sub := fake.NewSubsystem(specs...)
	prev := newSubsystem
	newSubsystem = func() platform.Subsystem { return sub }
	t.Cleanup(func() { newSubsystem = prev })
	return sub
}

func defaultOptions(t *testing.T) *config.Options {
	t.Helper()
	opts := &config.Options{}
	if err := config.ApplyDefaults(opts); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return opts
}

func TestRunCaptureDelivers(t *testing.T) {
	sub := useFake(t, fake.CameraSpec{ID: "cam0", AutoComplete: 2 * time.Millisecond})
	opts := defaultOptions(t)
	opts.CaptureCycles = 3

	var out bytes.Buffer
	if err := runCapture(context.Background(), &out, opts); err != nil {
		t.Fatalf("runCapture() error = %v", err)
	}

	for _, want := range []string{"Fake Camera cam0", "480x480 BGR888", "delivered", "3 cycles: 3 delivered"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if sub.Started() {
		t.Error("subsystem still running after capture")
	}
}

func TestRunCaptureTimeouts(t *testing.T) {
	useFake(t, fake.CameraSpec{ID: "cam0"})
	opts := defaultOptions(t)
	opts.CaptureCycles = 2
	opts.CaptureTimeoutMs = 20

	var out bytes.Buffer
	if err := runCapture(context.Background(), &out, opts); err != nil {
		t.Fatalf("runCapture() error = %v", err)
	}
	if !strings.Contains(out.String(), "2 cycles: 0 delivered, 2 timeouts") {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunCaptureSetupFailures(t *testing.T) {
	tests := []struct {
		name  string
		specs []fake.CameraSpec
		opts  func(*config.Options)
		check func(error) bool
	}{
		{
			name:  "no cameras",
			check: func(err error) bool { return errors.Is(err, camera.ErrNoDeviceFound) },
		},
		{
			name:  "unknown device",
			specs: []fake.CameraSpec{{ID: "cam0"}},
			opts:  func(o *config.Options) { o.CameraDeviceID = "cam9" },
			check: func(err error) bool { return errors.Is(err, camera.ErrNoDeviceFound) },
		},
		{
			name:  "bad pixel format",
			specs: []fake.CameraSpec{{ID: "cam0"}},
			opts:  func(o *config.Options) { o.CameraPixelFormat = "H264" },
			check: func(err error) bool { return err != nil },
		},
		{
			name:  "acquire fails",
			specs: []fake.CameraSpec{{ID: "cam0", AcquireErr: errors.New("busy")}},
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "busy") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useFake(t, tt.specs...)
			opts := defaultOptions(t)
			if tt.opts != nil {
				tt.opts(opts)
			}

			var out bytes.Buffer
			err := runCapture(context.Background(), &out, opts)
			if err == nil || !tt.check(err) {
				t.Fatalf("runCapture() error = %v", err)
			}
			if strings.Contains(out.String(), "cycles:") {
				t.Errorf("summary printed after setup failure:\n%s", out.String())
			}
		})
	}
}

func TestRunCaptureInterrupted(t *testing.T) {
	useFake(t, fake.CameraSpec{ID: "cam0", AutoComplete: 2 * time.Millisecond})
	opts := defaultOptions(t)
	opts.CaptureCycles = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := runCapture(ctx, &out, opts); err != nil {
		t.Fatalf("runCapture() error = %v", err)
	}
	if !strings.Contains(out.String(), "cycles:") {
		t.Errorf("no summary after interrupt:\n%s", out.String())
	}
}

func TestRunDevices(t *testing.T) {
	useFake(t, fake.CameraSpec{ID: "cam0"}, fake.CameraSpec{ID: "cam1", Formats: []platform.PixelFormat{platform.FormatNV12}})

	var out bytes.Buffer
	if err := runDevices(context.Background(), &out); err != nil {
		t.Fatalf("runDevices() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Fake Camera cam0", "Fake Camera cam1", "BGR888", "YUYV", "NV12", "640x480 1920x1080"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunDevicesNone(t *testing.T) {
	useFake(t)

	var out bytes.Buffer
	if err := runDevices(context.Background(), &out); err != nil {
		t.Fatalf("runDevices() error = %v", err)
	}
	if !strings.Contains(out.String(), "No cameras found") {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := CreateVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "snapcam ") {
		t.Errorf("output = %q", out.String())
	}
}
