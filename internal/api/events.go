package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/snapcam/internal/events"
)

// registerSSERoutes registers the capture event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device, state and capture cycle events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-discovery":     events.DeviceDiscoveryEvent{},
		"device-state-changed": events.DeviceStateChangedEvent{},
		"frame-captured":       events.FrameCapturedEvent{},
		"capture-timeout":      events.CaptureTimeoutEvent{},
		"capture-cancelled":    events.CaptureCancelledEvent{},
		"capture-error":        events.CaptureErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		defer events.SubscribeDeviceEvents(s.eventBus, eventCh)()

		// Confirms the subscription to the client before any real event.
		if err := send.Data(events.DeviceDiscoveryEvent{
			Name:      "system",
			Action:    "connected",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
