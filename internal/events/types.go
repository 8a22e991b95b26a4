package events

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeDeviceStateChanged
	TypeFrameCaptured
	TypeCaptureTimeout
	TypeCaptureCancelled
	TypeCaptureError
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent is published when the camera subsystem starts and
// lists its devices.
type DeviceDiscoveryEvent struct {
	DeviceID  string `json:"device_id" example:"usb-046d_0825-video-index0" doc:"Stable device identifier"`
	Name      string `json:"name" example:"UVC Camera (046d:0825)" doc:"Device name"`
	Path      string `json:"path,omitempty" example:"/dev/video0" doc:"Device node"`
	Action    string `json:"action" example:"found" doc:"Action type: found, selected, added, removed, connected"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// DeviceStateChangedEvent tracks a device handle through its lifecycle.
type DeviceStateChangedEvent struct {
	DeviceID  string `json:"device_id" doc:"Stable device identifier"`
	SessionID string `json:"session_id" doc:"Identifier of the handle that holds the device"`
	From      string `json:"from" example:"configured" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceStateChangedEvent.
func (e DeviceStateChangedEvent) Type() uint32 { return TypeDeviceStateChanged }

// FrameCapturedEvent describes a delivered frame. Pixel data is not carried.
type FrameCapturedEvent struct {
	DeviceID    string `json:"device_id" doc:"Stable device identifier"`
	SessionID   string `json:"session_id" doc:"Capture session"`
	Cycle       uint64 `json:"cycle" example:"12" doc:"Capture cycle number within the session"`
	Request     uint64 `json:"request" example:"2" doc:"Request slot that completed"`
	Sequence    uint32 `json:"sequence" example:"341" doc:"Hardware frame sequence number"`
	BytesUsed   int    `json:"bytes_used" example:"691200" doc:"Payload size"`
	Status      string `json:"status" example:"success" doc:"Frame status: success, error"`
	Width       uint32 `json:"width" example:"480" doc:"Frame width"`
	Height      uint32 `json:"height" example:"480" doc:"Frame height"`
	PixelFormat string `json:"pixel_format" example:"BGR888" doc:"Frame pixel format"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Hardware capture timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// CaptureTimeoutEvent is published when a cycle saw no completion in time.
type CaptureTimeoutEvent struct {
	DeviceID  string `json:"device_id" doc:"Stable device identifier"`
	SessionID string `json:"session_id" doc:"Capture session"`
	Cycle     uint64 `json:"cycle" doc:"Capture cycle number"`
	Timeout   string `json:"timeout" example:"1s" doc:"Wait bound that elapsed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureTimeoutEvent.
func (e CaptureTimeoutEvent) Type() uint32 { return TypeCaptureTimeout }

// CaptureCancelledEvent is published when the hardware cancelled a request.
type CaptureCancelledEvent struct {
	DeviceID  string `json:"device_id" doc:"Stable device identifier"`
	SessionID string `json:"session_id" doc:"Capture session"`
	Cycle     uint64 `json:"cycle" doc:"Capture cycle number"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureCancelledEvent.
func (e CaptureCancelledEvent) Type() uint32 { return TypeCaptureCancelled }

// CaptureErrorEvent reports a failed setup or capture cycle.
type CaptureErrorEvent struct {
	DeviceID  string `json:"device_id,omitempty" doc:"Stable device identifier"`
	Kind      string `json:"kind" example:"device_busy" doc:"Error kind"`
	Error     string `json:"error" example:"camera busy" doc:"Detailed error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
