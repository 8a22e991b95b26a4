package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/events"
)

// Indicator mirrors the camera handle state on one LED: solid while
// streaming, blinking while the device is held but not streaming or after
// a capture error, off once the device is released.
type Indicator struct {
	controller Controller
	name       string
	bus        *events.Bus
	logger     *slog.Logger

	mu      sync.Mutex
	pattern Pattern
	unsubs  []func()
}

// NewIndicator drives the LED called name. An empty name uses the first
// LED the controller exposes.
func NewIndicator(controller Controller, name string, bus *events.Bus, logger *slog.Logger) *Indicator {
	if name == "" {
		if leds := controller.Available(); len(leds) > 0 {
			name = leds[0]
		}
	}
	return &Indicator{controller: controller, name: name, bus: bus, logger: logger}
}

// Start turns the LED off and follows state events until Stop.
func (i *Indicator) Start() {
	i.set(PatternOff)
	i.mu.Lock()
	i.unsubs = append(i.unsubs,
		i.bus.Subscribe(func(e events.DeviceStateChangedEvent) { i.handleState(e) }),
		i.bus.Subscribe(func(e events.CaptureErrorEvent) { i.handleError(e) }),
	)
	i.mu.Unlock()
	i.logger.Info("LED indicator started", "led", i.name)
}

// Stop unsubscribes and turns the LED off.
func (i *Indicator) Stop() {
	i.mu.Lock()
	unsubs := i.unsubs
	i.unsubs = nil
	i.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	i.set(PatternOff)
}

// Pattern returns the last pattern applied.
func (i *Indicator) Pattern() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pattern
}

func (i *Indicator) handleState(e events.DeviceStateChangedEvent) {
	switch e.To {
	case camera.StateRunning.String():
		i.set(PatternSolid)
	case camera.StateAcquired.String(), camera.StateConfigured.String():
		i.set(PatternBlink)
	default:
		i.set(PatternOff)
	}
}

func (i *Indicator) handleError(e events.CaptureErrorEvent) {
	i.logger.Debug("Capture error, blinking LED", "kind", e.Kind)
	i.set(PatternBlink)
}

func (i *Indicator) set(p Pattern) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if p == i.pattern {
		return
	}
	if i.name == "" {
		i.pattern = p
		return
	}
	if err := i.controller.Set(i.name, p); err != nil {
		i.logger.Warn("Failed to set LED", "led", i.name, "pattern", p, "error", err)
		return
	}
	i.pattern = p
}
