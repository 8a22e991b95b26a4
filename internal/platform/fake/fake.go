// Package fake implements platform interfaces in memory. Cameras complete
// requests when told to, or on a timer, and every call is recorded so tests
// can assert setup and teardown ordering.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/smazurov/snapcam/internal/platform"
)

// Call names recorded by the fake.
const (
	CallSubsystemStart  = "subsystem.start"
	CallSubsystemStop   = "subsystem.stop"
	CallAcquire         = "camera.acquire"
	CallRelease         = "camera.release"
	CallGenerate        = "camera.generate"
	CallValidate        = "camera.validate"
	CallConfigure       = "camera.configure"
	CallStart           = "camera.start"
	CallStop            = "camera.stop"
	CallConnect         = "camera.connect"
	CallDisconnect      = "camera.disconnect"
	CallCreateRequest   = "request.create"
	CallQueueRequest    = "request.queue"
	CallCompleteRequest = "request.complete"
	CallNewAllocator    = "allocator.new"
	CallAllocate        = "allocator.allocate"
	CallFree            = "allocator.free"
	CallCloseAllocator  = "allocator.close"
)

// Subsystem is an in-memory platform.Subsystem.
type Subsystem struct {
	rec *Recorder

	// StartErr, when set, is returned by Start.
	StartErr error

	mu      sync.Mutex
	started bool
	cameras []*Camera
}

var (
	_ platform.Subsystem = (*Subsystem)(nil)
	_ platform.Describer = (*Subsystem)(nil)
	_ platform.Refresher = (*Subsystem)(nil)
)

// NewSubsystem creates a subsystem exposing one camera per spec, in order.
func NewSubsystem(specs ...CameraSpec) *Subsystem {
	s := &Subsystem{rec: &Recorder{}}
	for _, spec := range specs {
		s.cameras = append(s.cameras, newCamera(spec.withDefaults(len(s.cameras)), s.rec))
	}
	return s
}

// Recorder returns the call log shared by the subsystem and its cameras.
func (s *Subsystem) Recorder() *Recorder {
	return s.rec
}

// Camera returns the fake camera with id for direct test control.
func (s *Subsystem) Camera(id string) *Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		if c.spec.ID == id {
			return c
		}
	}
	return nil
}

// Started reports whether Start succeeded and Stop has not been called.
func (s *Subsystem) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start implements platform.Subsystem.
func (s *Subsystem) Start(ctx context.Context) error {
	s.rec.record(CallSubsystemStart)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.StartErr != nil {
		return s.StartErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return platform.ErrAlreadyStarted
	}
	s.started = true
	return nil
}

// Stop implements platform.Subsystem.
func (s *Subsystem) Stop() error {
	s.rec.record(CallSubsystemStop)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return platform.ErrNotStarted
	}
	for _, c := range s.cameras {
		if c.Acquired() {
			s.rec.violate("subsystem stopped while camera %s acquired", c.spec.ID)
		}
	}
	s.started = false
	return nil
}

// Cameras implements platform.Subsystem.
func (s *Subsystem) Cameras() []platform.CameraInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	infos := make([]platform.CameraInfo, 0, len(s.cameras))
	for _, c := range s.cameras {
		infos = append(infos, platform.CameraInfo{ID: c.spec.ID, Name: c.spec.Name, Path: "fake://" + c.spec.ID})
	}
	return infos
}

// Get implements platform.Subsystem.
func (s *Subsystem) Get(id string) (platform.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, platform.ErrNotStarted
	}
	for _, c := range s.cameras {
		if c.spec.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", platform.ErrNotFound, id)
}

// Describe implements platform.Describer. Each format offers the default
// and maximum sizes.
func (s *Subsystem) Describe(id string) ([]platform.FormatCaps, error) {
	c := s.Camera(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", platform.ErrNotFound, id)
	}
	caps := make([]platform.FormatCaps, 0, len(c.spec.Formats))
	for _, f := range c.spec.Formats {
		caps = append(caps, platform.FormatCaps{
			Format: f,
			Sizes:  []platform.Size{c.spec.DefaultSize, c.spec.MaxSize},
		})
	}
	return caps, nil
}

// Plug adds a camera, as if it was connected after Start.
func (s *Subsystem) Plug(spec CameraSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, newCamera(spec.withDefaults(len(s.cameras)), s.rec))
}

// Unplug removes camera id from enumeration. A held camera keeps working.
func (s *Subsystem) Unplug(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = slices.DeleteFunc(s.cameras, func(c *Camera) bool { return c.spec.ID == id })
}

// Refresh implements platform.Refresher.
func (s *Subsystem) Refresh() ([]platform.CameraInfo, error) {
	if !s.Started() {
		return nil, platform.ErrNotStarted
	}
	return s.Cameras(), nil
}
