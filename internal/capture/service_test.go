package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/platform/fake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, spec fake.CameraSpec, timeout time.Duration) (*Service, *fake.Camera) {
	t.Helper()
	sub := fake.NewSubsystem(spec)
	mgr := camera.NewManager(sub, discardLogger(), nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Manager.Start() error = %v", err)
	}
	p, err := camera.Open(context.Background(), mgr, camera.Options{
		Stream:  camera.DefaultStreamConfig(),
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s := NewService(p, discardLogger())
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		mgr.Stop()
	})
	return s, sub.Camera(spec.ID)
}

func TestCaptureDelivered(t *testing.T) {
	s, _ := newService(t, fake.CameraSpec{ID: "cam", AutoComplete: 2 * time.Millisecond}, time.Second)

	res, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if res.Outcome != "delivered" || res.Frame == nil {
		t.Fatalf("result = %+v, want delivered frame", res)
	}
	if res.Frame.Width != 480 || res.Frame.Height != 480 || res.Frame.PixelFormat != "BGR888" {
		t.Errorf("frame = %+v, want 480x480 BGR888", res.Frame)
	}
	if res.Frame.BytesUsed == 0 {
		t.Error("frame reports no payload")
	}

	st := s.Status()
	if !st.Available || st.State != "running" || st.DeviceID != "cam" {
		t.Errorf("status = %+v", st)
	}
	if st.Summary.Delivered != 1 || st.Last == nil || st.Last.Cycle != res.Cycle {
		t.Errorf("status summary = %+v last = %+v", st.Summary, st.Last)
	}
	if st.Stream == nil || st.Stream.Role != "video" || st.Buffers != 4 {
		t.Errorf("status stream = %+v buffers = %d", st.Stream, st.Buffers)
	}
}

func TestCaptureTimeoutIsAResult(t *testing.T) {
	s, _ := newService(t, fake.CameraSpec{ID: "cam"}, 20*time.Millisecond)

	res, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if res.Outcome != "timeout" || res.Frame != nil {
		t.Errorf("result = %+v, want timeout without frame", res)
	}
	if got := s.Status().Summary.Timeouts; got != 1 {
		t.Errorf("timeouts = %d, want 1", got)
	}
}

func TestCaptureRecordsErrors(t *testing.T) {
	s, _ := newService(t, fake.CameraSpec{ID: "cam"}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Capture() error = %v, want context.Canceled", err)
	}
	if s.Status().LastError == "" {
		t.Error("last error not recorded")
	}
}

func TestServiceWithoutPipeline(t *testing.T) {
	s := NewService(nil, discardLogger())

	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Capture() error = %v, want ErrUnavailable", err)
	}
	if err := s.StartLoop(time.Second); !errors.Is(err, ErrUnavailable) {
		t.Errorf("StartLoop() error = %v, want ErrUnavailable", err)
	}
	st := s.Status()
	if st.Available || st.State != "available" {
		t.Errorf("status = %+v", st)
	}
	s.SetTimeout(time.Second)
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLoop(t *testing.T) {
	s, _ := newService(t, fake.CameraSpec{ID: "cam", AutoComplete: time.Millisecond}, time.Second)

	if err := s.StartLoop(0); err == nil {
		t.Error("StartLoop(0) error = nil")
	}
	if err := s.StartLoop(5 * time.Millisecond); err != nil {
		t.Fatalf("StartLoop() error = %v", err)
	}
	if err := s.StartLoop(5 * time.Millisecond); err != nil {
		t.Fatalf("second StartLoop() error = %v", err)
	}
	if !s.Status().Looping {
		t.Error("Looping = false while running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Summary.Delivered < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop delivered %d frames", s.Status().Summary.Delivered)
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.StopLoop()
	s.StopLoop()
	if s.Status().Looping {
		t.Error("Looping = true after StopLoop")
	}
}

func TestSetTimeout(t *testing.T) {
	s, _ := newService(t, fake.CameraSpec{ID: "cam"}, time.Second)

	s.SetTimeout(250 * time.Millisecond)
	if got := s.Status().TimeoutMs; got != 250 {
		t.Errorf("TimeoutMs = %d, want 250", got)
	}
	s.SetTimeout(0)
	if got := s.Status().TimeoutMs; got != camera.DefaultTimeout.Milliseconds() {
		t.Errorf("TimeoutMs = %d, want default", got)
	}
}
