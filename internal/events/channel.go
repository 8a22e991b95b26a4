package events

import "github.com/kelindar/event"

// SubscribeToChannel copies events of type T into ch without blocking the
// publisher. Events that do not fit are dropped.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeDeviceEvents copies every discovery, state and capture event
// into ch. The returned func removes all of the subscriptions.
func SubscribeDeviceEvents(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[DeviceDiscoveryEvent](bus, ch),
		SubscribeToChannel[DeviceStateChangedEvent](bus, ch),
		SubscribeToChannel[FrameCapturedEvent](bus, ch),
		SubscribeToChannel[CaptureTimeoutEvent](bus, ch),
		SubscribeToChannel[CaptureCancelledEvent](bus, ch),
		SubscribeToChannel[CaptureErrorEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
