// Package platform defines the boundary between the capture controller and
// the camera subsystem that drives real hardware.
//
// The model follows the usual camera-stack shape: a Subsystem enumerates
// Cameras; a Camera is acquired exclusively, configured with a
// Configuration of one or more streams, given buffers by an Allocator and
// fed Requests that each bind one FrameBuffer per stream. Completed or
// cancelled requests are reported through a single completion callback that
// runs on a goroutine owned by the implementation.
//
// Implementations live in sub-packages: v4l2cam drives Linux V4L2 capture
// nodes, fake provides a scriptable in-memory camera for tests.
package platform

import (
	"context"
	"errors"
)

// Errors reported by implementations. Callers match them with errors.Is.
var (
	ErrBusy            = errors.New("camera busy")
	ErrNotFound        = errors.New("camera not found")
	ErrAlreadyStarted  = errors.New("subsystem already started")
	ErrNotStarted      = errors.New("subsystem not started")
	ErrRoleUnsupported = errors.New("stream role not supported")
	ErrNoMemory        = errors.New("cannot allocate buffer memory")
	ErrNotStreaming    = errors.New("camera not streaming")
	ErrRequestInFlight = errors.New("request in flight")
	ErrInvalidRequest  = errors.New("invalid request")
)

// CameraInfo describes an enumerated camera.
type CameraInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Subsystem owns process-wide camera state. Start must be called before any
// camera operation and Stop after every camera has been released.
type Subsystem interface {
	Start(ctx context.Context) error
	Stop() error
	Cameras() []CameraInfo
	Get(id string) (Camera, error)
}

// FormatCaps lists the frame sizes a camera offers for one pixel format.
type FormatCaps struct {
	Format      PixelFormat `json:"format"`
	Description string      `json:"description,omitempty"`
	Sizes       []Size      `json:"sizes"`
}

// Describer is implemented by subsystems that can list a camera's formats
// without acquiring it.
type Describer interface {
	Describe(id string) ([]FormatCaps, error)
}

// Refresher is implemented by subsystems that can re-enumerate cameras
// while started, for hotplug. Cameras already handed out stay valid.
type Refresher interface {
	Refresh() ([]CameraInfo, error)
}

// RequestCompletedFunc receives requests as the hardware finishes with them.
// It is invoked on an implementation-owned goroutine and must not block.
type RequestCompletedFunc func(req *Request)

// Camera is one physical device.
type Camera interface {
	ID() string

	// Acquire locks the device for this process. ErrBusy means another
	// owner holds it.
	Acquire() error
	Release() error

	// GenerateConfiguration builds a default configuration with one stream
	// per role. It fails with ErrRoleUnsupported when a role cannot be
	// served at all.
	GenerateConfiguration(roles ...StreamRole) (*Configuration, error)

	// Validate adjusts cfg in place to the nearest supported values.
	Validate(cfg *Configuration) ValidationStatus
	Configure(cfg *Configuration) error

	NewAllocator() (Allocator, error)
	CreateRequest(cookie uint64) (*Request, error)
	QueueRequest(req *Request) error

	// SetRequestCompleted installs the completion callback. Passing nil
	// disconnects it.
	SetRequestCompleted(fn RequestCompletedFunc)

	Start() error
	// Stop halts capture. Requests still in flight are completed with
	// RequestCancelled before Stop returns.
	Stop() error
}

// Allocator reserves hardware buffers for configured streams.
type Allocator interface {
	// Allocate reserves buffers for a stream and returns how many were
	// obtained.
	Allocate(stream *Stream) (int, error)
	Buffers(stream *Stream) []*FrameBuffer
	Free(stream *Stream) error
	// Close releases the allocator. Buffers must have been freed first.
	Close() error
}
