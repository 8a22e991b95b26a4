package led

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/snapcam/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingController struct {
	mu    sync.Mutex
	calls []Pattern
	err   error
}

func (r *recordingController) Set(_ string, p Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, p)
	return nil
}

func (r *recordingController) Available() []string { return []string{"system"} }

func (r *recordingController) snapshot() []Pattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func TestIndicatorFollowsState(t *testing.T) {
	ctrl := &recordingController{}
	ind := NewIndicator(ctrl, "", events.New(), discardLogger())
	if ind.name != "system" {
		t.Fatalf("name = %q, want first available LED", ind.name)
	}

	ind.set(PatternOff)
	for _, to := range []string{"acquired", "configured", "running", "running", "configured", "available"} {
		ind.handleState(events.DeviceStateChangedEvent{To: to})
	}

	want := []Pattern{PatternOff, PatternBlink, PatternSolid, PatternBlink, PatternOff}
	if got := ctrl.snapshot(); !slices.Equal(got, want) {
		t.Errorf("patterns = %v, want %v", got, want)
	}
}

func TestIndicatorBlinksOnError(t *testing.T) {
	ctrl := &recordingController{}
	ind := NewIndicator(ctrl, "system", events.New(), discardLogger())

	ind.handleState(events.DeviceStateChangedEvent{To: "running"})
	ind.handleError(events.CaptureErrorEvent{Kind: "device_busy"})

	if got := ind.Pattern(); got != PatternBlink {
		t.Errorf("Pattern() = %s, want blink", got)
	}
}

func TestIndicatorKeepsPatternWhenSetFails(t *testing.T) {
	ctrl := &recordingController{err: errors.New("permission denied")}
	ind := NewIndicator(ctrl, "system", events.New(), discardLogger())

	ind.handleState(events.DeviceStateChangedEvent{To: "running"})
	if got := ind.Pattern(); got != "" {
		t.Errorf("Pattern() = %q after failed write", got)
	}
}

func TestIndicatorSubscribes(t *testing.T) {
	bus := events.New()
	ctrl := &recordingController{}
	ind := NewIndicator(ctrl, "system", bus, discardLogger())
	ind.Start()

	bus.Publish(events.DeviceStateChangedEvent{To: "running"})
	deadline := time.Now().Add(time.Second)
	for ind.Pattern() != PatternSolid {
		if time.Now().After(deadline) {
			t.Fatal("indicator did not react to state event")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ind.Stop()
	if got := ind.Pattern(); got != PatternOff {
		t.Errorf("Pattern() after Stop = %s, want off", got)
	}
}

func TestSysfsSet(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sys_led"), 0o755); err != nil {
		t.Fatal(err)
	}
	s := newSysfs(root, map[string]string{"system": "sys_led"})

	tests := []struct {
		pattern    Pattern
		trigger    string
		brightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternBlink, "heartbeat", "1"},
		{PatternOff, "none", "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			if err := s.Set("system", tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			trigger, _ := os.ReadFile(filepath.Join(root, "sys_led", "trigger"))
			brightness, _ := os.ReadFile(filepath.Join(root, "sys_led", "brightness"))
			if string(trigger) != tt.trigger || string(brightness) != tt.brightness {
				t.Errorf("trigger = %q, brightness = %q", trigger, brightness)
			}
		})
	}

	if err := s.Set("user", PatternSolid); err == nil {
		t.Error("Set() accepted an unknown LED")
	}
	if err := s.Set("system", "strobe"); err == nil {
		t.Error("Set() accepted an unknown pattern")
	}
}

func TestNewDetectsBoard(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model")
	if err := os.WriteFile(model, []byte("FriendlyElec NanoPC-T6\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	prevModel, prevLEDs := deviceTreeModelPath, sysfsLEDPath
	deviceTreeModelPath, sysfsLEDPath = model, dir
	t.Cleanup(func() { deviceTreeModelPath, sysfsLEDPath = prevModel, prevLEDs })

	ctrl := New(discardLogger())
	if got := ctrl.Available(); !slices.Equal(got, []string{"system", "user"}) {
		t.Errorf("Available() = %v", got)
	}

	deviceTreeModelPath = filepath.Join(dir, "missing")
	if got := New(discardLogger()).Available(); len(got) != 0 {
		t.Errorf("unknown board Available() = %v", got)
	}
}
