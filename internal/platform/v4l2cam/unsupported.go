//go:build !(linux && (amd64 || arm64))

package v4l2cam

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smazurov/snapcam/internal/platform"
)

var errUnsupported = errors.New("v4l2 capture requires linux/amd64 or linux/arm64")

// Subsystem reports that V4L2 capture is unavailable on this platform.
type Subsystem struct {
	logger *slog.Logger
}

var _ platform.Subsystem = (*Subsystem)(nil)

// New creates a subsystem that fails to start.
func New(logger *slog.Logger) *Subsystem {
	return &Subsystem{logger: logger}
}

func (s *Subsystem) Start(context.Context) error {
	return errUnsupported
}

func (s *Subsystem) Stop() error {
	return platform.ErrNotStarted
}

func (s *Subsystem) Cameras() []platform.CameraInfo {
	return nil
}

func (s *Subsystem) Get(string) (platform.Camera, error) {
	return nil, platform.ErrNotStarted
}

func (s *Subsystem) Describe(string) ([]platform.FormatCaps, error) {
	return nil, errUnsupported
}

func (s *Subsystem) Refresh() ([]platform.CameraInfo, error) {
	return nil, errUnsupported
}
