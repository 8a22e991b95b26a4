//go:build linux && (amd64 || arm64)

package v4l2cam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/pkg/linuxav/v4l2"
)

// Subsystem enumerates V4L2 capture nodes.
type Subsystem struct {
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	devices []v4l2.DeviceInfo
	cameras map[string]*Camera
}

var (
	_ platform.Subsystem = (*Subsystem)(nil)
	_ platform.Describer = (*Subsystem)(nil)
	_ platform.Refresher = (*Subsystem)(nil)
)

// New creates a V4L2 subsystem.
func New(logger *slog.Logger) *Subsystem {
	return &Subsystem{logger: logger}
}

// Start scans for capture nodes.
func (s *Subsystem) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return platform.ErrAlreadyStarted
	}

	devices, err := v4l2.FindDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	s.devices = devices
	s.cameras = make(map[string]*Camera)
	s.started = true
	s.logger.Debug("V4L2 subsystem started", "devices", len(devices))
	return nil
}

// Stop forgets enumerated devices. Cameras still acquired are reported.
func (s *Subsystem) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return platform.ErrNotStarted
	}

	for id, c := range s.cameras {
		if c.acquired() {
			s.logger.Warn("Subsystem stopped with camera still acquired", "camera", id)
		}
	}
	s.started = false
	s.devices = nil
	s.cameras = nil
	s.logger.Debug("V4L2 subsystem stopped")
	return nil
}

// Cameras lists capture nodes in device-node order.
func (s *Subsystem) Cameras() []platform.CameraInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]platform.CameraInfo, 0, len(s.devices))
	for _, d := range s.devices {
		infos = append(infos, platform.CameraInfo{ID: d.DeviceID, Name: d.DeviceName, Path: d.DevicePath})
	}
	return infos
}

// Refresh re-scans capture nodes after a hotplug event. Cameras that
// vanished are dropped unless still acquired.
func (s *Subsystem) Refresh() ([]platform.CameraInfo, error) {
	devices, err := v4l2.FindDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, platform.ErrNotStarted
	}
	present := make(map[string]bool, len(devices))
	for _, d := range devices {
		present[d.DeviceID] = true
	}
	for id, c := range s.cameras {
		if !present[id] && !c.acquired() {
			delete(s.cameras, id)
		}
	}
	s.devices = devices
	s.mu.Unlock()

	s.logger.Debug("V4L2 devices rescanned", "devices", len(devices))
	return s.Cameras(), nil
}

// Get returns the camera with a stable ID or device path.
func (s *Subsystem) Get(id string) (platform.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, platform.ErrNotStarted
	}

	for _, d := range s.devices {
		if d.DeviceID != id && d.DevicePath != id {
			continue
		}
		if c, ok := s.cameras[d.DeviceID]; ok {
			return c, nil
		}
		c := newCamera(d, s.logger.With("camera", d.DeviceID))
		s.cameras[d.DeviceID] = c
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", platform.ErrNotFound, id)
}

// Describe lists the formats of a capture node that this package can drive,
// with their frame sizes. The device is opened briefly and not acquired.
func (s *Subsystem) Describe(id string) ([]platform.FormatCaps, error) {
	s.mu.Lock()
	var path string
	for _, d := range s.devices {
		if d.DeviceID == id || d.DevicePath == id {
			path = d.DevicePath
			break
		}
	}
	s.mu.Unlock()
	if path == "" {
		return nil, fmt.Errorf("%w: %s", platform.ErrNotFound, id)
	}

	formats, err := v4l2.GetFormats(path)
	if err != nil {
		return nil, err
	}
	names := make(map[uint32]string, len(formats))
	for _, f := range formats {
		names[f.PixelFormat] = f.FormatName
	}

	var caps []platform.FormatCaps
	for _, f := range supportedFormats(formats) {
		code, _ := toFourCC(f)
		res, err := v4l2.GetResolutions(path, code)
		if err != nil {
			s.logger.Debug("Failed to enumerate frame sizes", "path", path, "format", f, "error", err)
		}
		fc := platform.FormatCaps{Format: f, Description: names[code], Sizes: make([]platform.Size, 0, len(res))}
		for _, r := range res {
			fc.Sizes = append(fc.Sizes, platform.Size{Width: r.Width, Height: r.Height})
		}
		caps = append(caps, fc)
	}
	return caps, nil
}
