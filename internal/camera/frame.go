package camera

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/platform"
)

// Plane is one stream's buffer in a completed request.
type Plane struct {
	Stream   int
	Buffer   int
	Data     []byte
	Metadata platform.FrameMetadata
}

// Frame is a completed request handed to a FrameHandler. Plane data is only
// valid until the handler returns; the buffers go back to the device on the
// next cycle.
type Frame struct {
	DeviceID  string
	SessionID string
	Cycle     uint64
	Request   uint64
	Config    StreamConfig
	Planes    []Plane
}

// Primary returns the plane of the first stream.
func (f *Frame) Primary() Plane {
	if len(f.Planes) == 0 {
		return Plane{}
	}
	return f.Planes[0]
}

// FrameHandler interprets delivered frames. It runs on the goroutine that
// called RunCycle.
type FrameHandler interface {
	HandleFrame(ctx context.Context, f *Frame) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, f *Frame) error

// HandleFrame implements FrameHandler.
func (fn FrameHandlerFunc) HandleFrame(ctx context.Context, f *Frame) error {
	return fn(ctx, f)
}

// EventHandler logs frame metadata and publishes a FrameCapturedEvent.
// Pixel data is not inspected.
type EventHandler struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewEventHandler creates the default frame handler.
func NewEventHandler(bus *events.Bus, logger *slog.Logger) *EventHandler {
	return &EventHandler{bus: bus, logger: logger}
}

// HandleFrame implements FrameHandler.
func (h *EventHandler) HandleFrame(_ context.Context, f *Frame) error {
	p := f.Primary()
	h.logger.Debug("Frame captured",
		"device_id", f.DeviceID,
		"cycle", f.Cycle,
		"request", f.Request,
		"sequence", p.Metadata.Sequence,
		"bytes_used", p.Metadata.BytesUsed,
		"status", p.Metadata.Status.String())

	h.bus.Publish(events.FrameCapturedEvent{
		DeviceID:    f.DeviceID,
		SessionID:   f.SessionID,
		Cycle:       f.Cycle,
		Request:     f.Request,
		Sequence:    p.Metadata.Sequence,
		BytesUsed:   p.Metadata.BytesUsed,
		Status:      p.Metadata.Status.String(),
		Width:       f.Config.Width,
		Height:      f.Config.Height,
		PixelFormat: string(f.Config.PixelFormat),
		Timestamp:   p.Metadata.Timestamp.Format(time.RFC3339Nano),
	})
	return nil
}

func newFrame(h *Handle, req *platform.Request, cycle uint64) *Frame {
	cfg, _ := h.Applied()
	f := &Frame{
		DeviceID:  h.Info().ID,
		SessionID: h.SessionID(),
		Cycle:     cycle,
		Request:   req.Cookie(),
		Config:    cfg,
	}
	for _, b := range req.Bindings() {
		f.Planes = append(f.Planes, Plane{
			Stream:   b.Stream.Index(),
			Buffer:   b.Buffer.Index(),
			Data:     b.Buffer.Data(),
			Metadata: b.Buffer.Metadata(),
		})
	}
	return f
}
