package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCycle(t *testing.T) {
	deviceID := "test-cycle-cam"
	DeleteDeviceMetrics(deviceID)

	if s := GetCaptureStats(deviceID); s != nil {
		t.Fatal("expected nil stats for unknown device")
	}

	before := testutil.ToFloat64(cyclesTotal.WithLabelValues(deviceID, OutcomeDelivered))
	RecordCycle(deviceID, OutcomeDelivered, 20*time.Millisecond)
	RecordCycle(deviceID, OutcomeDelivered, 30*time.Millisecond)
	RecordCycle(deviceID, OutcomeTimeout, time.Second)
	RecordCycle(deviceID, OutcomeCancelled, time.Millisecond)

	if got := testutil.ToFloat64(cyclesTotal.WithLabelValues(deviceID, OutcomeDelivered)) - before; got != 2 {
		t.Errorf("delivered counter delta = %v, want 2", got)
	}

	s := GetCaptureStats(deviceID)
	if s == nil {
		t.Fatal("expected stats")
	}
	if s.Delivered != 2 || s.Timeouts != 1 || s.Cancelled != 1 || s.Errors != 0 {
		t.Errorf("stats = %+v", s)
	}
	if s.LastOutcome != OutcomeCancelled || s.LastDuration != time.Millisecond {
		t.Errorf("last = %s %v", s.LastOutcome, s.LastDuration)
	}

	s.Delivered = 999
	if GetCaptureStats(deviceID).Delivered != 2 {
		t.Error("cache was modified through returned copy")
	}

	DeleteDeviceMetrics(deviceID)
	if GetCaptureStats(deviceID) != nil {
		t.Error("stats should be deleted")
	}
}

func TestDeviceGauges(t *testing.T) {
	deviceID := "test-gauge-cam"
	defer DeleteDeviceMetrics(deviceID)

	SetDeviceState(deviceID, 3)
	SetBuffersAllocated(deviceID, 4)

	if got := testutil.ToFloat64(deviceState.WithLabelValues(deviceID)); got != 3 {
		t.Errorf("state = %v, want 3", got)
	}
	if got := testutil.ToFloat64(buffersAllocated.WithLabelValues(deviceID)); got != 4 {
		t.Errorf("buffers = %v, want 4", got)
	}
}

func TestRecordSetupFailure(t *testing.T) {
	before := testutil.ToFloat64(setupFailures.WithLabelValues("device_busy"))
	RecordSetupFailure("device_busy")
	if got := testutil.ToFloat64(setupFailures.WithLabelValues("device_busy")) - before; got != 1 {
		t.Errorf("setup failure delta = %v, want 1", got)
	}
}

func TestRecordCycleConcurrent(t *testing.T) {
	deviceID := "test-concurrent-cam"
	DeleteDeviceMetrics(deviceID)
	defer DeleteDeviceMetrics(deviceID)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordCycle(deviceID, OutcomeDelivered, time.Millisecond)
		}()
	}
	wg.Wait()

	if s := GetCaptureStats(deviceID); s == nil || s.Delivered != 20 {
		t.Errorf("stats = %+v, want 20 delivered", s)
	}
}
