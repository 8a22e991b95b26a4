package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameCapturedEvent, 1)

	unsub := bus.Subscribe(func(e FrameCapturedEvent) {
		received <- e
	})
	defer unsub()

	ev := FrameCapturedEvent{DeviceID: "cam0", Cycle: 3, Sequence: 41, BytesUsed: 691200}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got != ev {
			t.Errorf("received %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan DeviceStateChangedEvent, 1)
	received2 := make(chan DeviceStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e DeviceStateChangedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e DeviceStateChangedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(DeviceStateChangedEvent{DeviceID: "cam0", From: "configured", To: "running"})

	for i, ch := range []chan DeviceStateChangedEvent{received1, received2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i+1)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaptureTimeoutEvent, 1)

	unsub := bus.Subscribe(func(e CaptureTimeoutEvent) { received <- e })

	bus.Publish(CaptureTimeoutEvent{DeviceID: "cam0", Cycle: 1})
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("event not delivered before unsubscribe")
	}

	unsub()

	bus.Publish(CaptureTimeoutEvent{DeviceID: "cam0", Cycle: 2})
	select {
	case <-received:
		t.Fatal("should not receive event after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := New()
	timeouts := make(chan CaptureTimeoutEvent, 1)
	cancels := make(chan CaptureCancelledEvent, 1)

	defer bus.Subscribe(func(e CaptureTimeoutEvent) { timeouts <- e })()
	defer bus.Subscribe(func(e CaptureCancelledEvent) { cancels <- e })()

	bus.Publish(CaptureCancelledEvent{DeviceID: "cam0"})

	select {
	case <-cancels:
	case <-time.After(time.Second):
		t.Fatal("cancelled event not delivered")
	}
	select {
	case <-timeouts:
		t.Fatal("timeout subscriber received cancelled event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_NilPublish(_ *testing.T) {
	var bus *Bus
	bus.Publish(FrameCapturedEvent{})
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := New()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	unsub := bus.Subscribe(func(FrameCapturedEvent) { wg.Done() })
	defer unsub()

	for i := range n {
		go bus.Publish(FrameCapturedEvent{Cycle: uint64(i)})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all events delivered")
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[CaptureErrorEvent](bus, ch)
	defer unsub()

	bus.Publish(CaptureErrorEvent{Kind: "device_busy"})
	bus.Publish(CaptureErrorEvent{Kind: "allocation_failed"})

	select {
	case ev := <-ch:
		if _, ok := ev.(CaptureErrorEvent); !ok {
			t.Errorf("received %T, want CaptureErrorEvent", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event forwarded")
	}
}

func TestSubscribeDeviceEvents(t *testing.T) {
	bus := New()
	ch := make(chan any, 8)
	unsub := SubscribeDeviceEvents(bus, ch)

	bus.Publish(DeviceStateChangedEvent{DeviceID: "cam0", From: "configured", To: "running"})
	bus.Publish(CaptureTimeoutEvent{DeviceID: "cam0"})
	bus.Publish(LogEntryEvent{Message: "not a device event"})

	got := map[uint32]bool{}
	deadline := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got[ev.(Event).Type()] = true
		case <-deadline:
			t.Fatalf("received %v, want state and timeout events", got)
		}
	}
	if got[TypeLogEntry] {
		t.Error("log entry forwarded as a device event")
	}

	unsub()
	bus.Publish(CaptureTimeoutEvent{DeviceID: "cam0"})
	select {
	case ev := <-ch:
		t.Errorf("received %T after unsubscribe", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventJSON(t *testing.T) {
	ev := FrameCapturedEvent{
		DeviceID:    "cam0",
		Cycle:       1,
		Sequence:    9,
		Width:       480,
		Height:      480,
		PixelFormat: "BGR888",
		Status:      "success",
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"device_id", "cycle", "sequence", "pixel_format", "bytes_used"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing %q: %s", key, data)
		}
	}
	if ev.Type() != TypeFrameCaptured {
		t.Errorf("Type() = %d, want %d", ev.Type(), TypeFrameCaptured)
	}
}
