// Package metrics provides Prometheus metrics for the capture controller.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes used as label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapcam",
		Subsystem: "capture",
		Name:      "cycles_total",
		Help:      "Capture cycles by outcome",
	}, []string{"device_id", "outcome"})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "snapcam",
		Subsystem: "capture",
		Name:      "cycle_duration_seconds",
		Help:      "Time from queueing requests to the end of the wait",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
	}, []string{"device_id"})

	deviceState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "snapcam",
		Subsystem: "device",
		Name:      "state",
		Help:      "Device handle state (0 available, 1 acquired, 2 configured, 3 running)",
	}, []string{"device_id"})

	buffersAllocated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "snapcam",
		Subsystem: "device",
		Name:      "buffers_allocated",
		Help:      "Hardware buffers currently held by the request pool",
	}, []string{"device_id"})

	setupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapcam",
		Subsystem: "device",
		Name:      "setup_failures_total",
		Help:      "Failed device setup attempts by error kind",
	}, []string{"kind"})

	// Local cache for the status API.
	statsCache   = make(map[string]*CaptureStats)
	statsCacheMu sync.RWMutex
)

// CaptureStats holds running totals for a device.
type CaptureStats struct {
	Delivered    uint64
	Timeouts     uint64
	Cancelled    uint64
	Errors       uint64
	LastOutcome  string
	LastDuration time.Duration
	LastCycleAt  time.Time
}

// RecordCycle counts a finished capture cycle.
func RecordCycle(deviceID, outcome string, d time.Duration) {
	cyclesTotal.WithLabelValues(deviceID, outcome).Inc()
	cycleDuration.WithLabelValues(deviceID).Observe(d.Seconds())

	updateStats(deviceID, func(s *CaptureStats) {
		switch outcome {
		case OutcomeDelivered:
			s.Delivered++
		case OutcomeTimeout:
			s.Timeouts++
		case OutcomeCancelled:
			s.Cancelled++
		default:
			s.Errors++
		}
		s.LastOutcome = outcome
		s.LastDuration = d
		s.LastCycleAt = time.Now()
	})
}

// SetDeviceState records the numeric handle state of a device.
func SetDeviceState(deviceID string, state int) {
	deviceState.WithLabelValues(deviceID).Set(float64(state))
}

// SetBuffersAllocated records how many buffers the pool holds.
func SetBuffersAllocated(deviceID string, n int) {
	buffersAllocated.WithLabelValues(deviceID).Set(float64(n))
}

// RecordSetupFailure counts a failed setup step by error kind.
func RecordSetupFailure(kind string) {
	setupFailures.WithLabelValues(kind).Inc()
}

// DeleteDeviceMetrics removes per-device gauges and cached stats. Counters
// are kept so rates stay continuous across reconnects.
func DeleteDeviceMetrics(deviceID string) {
	deviceState.DeleteLabelValues(deviceID)
	buffersAllocated.DeleteLabelValues(deviceID)

	statsCacheMu.Lock()
	delete(statsCache, deviceID)
	statsCacheMu.Unlock()
}

// GetCaptureStats returns a copy of the cached totals, or nil.
func GetCaptureStats(deviceID string) *CaptureStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()

	if s, ok := statsCache[deviceID]; ok {
		c := *s
		return &c
	}
	return nil
}

func updateStats(deviceID string, fn func(*CaptureStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()

	s, ok := statsCache[deviceID]
	if !ok {
		s = &CaptureStats{}
		statsCache[deviceID] = s
	}
	fn(s)
}
