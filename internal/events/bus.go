package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous: each
// subscriber receives events on its own goroutine.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// A nil bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}

	switch e := ev.(type) {
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case DeviceStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FrameCapturedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureTimeoutEvent:
		event.Publish(b.dispatcher, e)
	case CaptureCancelledEvent:
		event.Publish(b.dispatcher, e)
	case CaptureErrorEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter and
// returns an unsubscribe function. Unknown handler types are ignored.
//
//	unsub := bus.Subscribe(func(e FrameCapturedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameCapturedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureTimeoutEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureCancelledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
