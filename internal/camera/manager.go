package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/platform"
)

// Manager owns a started platform subsystem. It is started once, hands out
// Handles, and is stopped after every Handle has released its device.
type Manager struct {
	sub    platform.Subsystem
	logger *slog.Logger
	bus    *events.Bus

	mu      sync.Mutex
	started bool
	stopped bool
	holders int
}

// NewManager wraps sub. A nil logger uses the "camera" module logger; a nil
// bus disables event publishing.
func NewManager(sub platform.Subsystem, logger *slog.Logger, bus *events.Bus) *Manager {
	if logger == nil {
		logger = logging.GetLogger("camera")
	}
	return &Manager{sub: sub, logger: logger, bus: bus}
}

// Start starts the subsystem and checks that at least one camera exists.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return stateError("start manager", "manager was stopped and cannot be restarted")
	}
	if m.started {
		return stateError("start manager", "manager already started")
	}

	if err := m.sub.Start(ctx); err != nil {
		return newError(KindSubsystemUnavailable, "start manager", err)
	}

	cams := m.sub.Cameras()
	if len(cams) == 0 {
		if err := m.sub.Stop(); err != nil {
			m.logger.Warn("Failed to stop empty subsystem", "error", err)
		}
		return newError(KindSubsystemUnavailable, "start manager", ErrNoDeviceFound)
	}

	m.started = true
	now := time.Now().Format(time.RFC3339)
	for _, c := range cams {
		m.logger.Info("Camera found", "device_id", c.ID, "name", c.Name, "path", c.Path)
		m.bus.Publish(events.DeviceDiscoveryEvent{
			DeviceID:  c.ID,
			Name:      c.Name,
			Path:      c.Path,
			Action:    "found",
			Timestamp: now,
		})
	}
	return nil
}

// Stop stops the subsystem. It fails while a Handle still holds a device
// and is a no-op when the manager is not running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return nil
	}
	if m.holders > 0 {
		return newError(KindInvalidState, "stop manager",
			fmt.Errorf("%w: %d device(s) still held", ErrTeardownOrder, m.holders))
	}

	m.stopped = true
	m.started = false
	if err := m.sub.Stop(); err != nil && !errors.Is(err, platform.ErrNotStarted) {
		return fmt.Errorf("stop subsystem: %w", err)
	}
	m.logger.Debug("Camera manager stopped")
	return nil
}

// Started reports whether Start succeeded and Stop has not run.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Cameras lists cameras known to the started subsystem.
func (m *Manager) Cameras() []platform.CameraInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	return m.sub.Cameras()
}

// Describe lists the formats and sizes of camera id when the subsystem can
// report them without acquiring the device.
func (m *Manager) Describe(id string) ([]platform.FormatCaps, error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil, stateError("describe", "manager not started")
	}
	d, ok := m.sub.(platform.Describer)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return d.Describe(id)
}

// Refresh re-enumerates cameras after a hotplug event and returns the new
// list. Handles keep the device they hold.
func (m *Manager) Refresh() ([]platform.CameraInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, stateError("refresh", "manager not started")
	}
	r, ok := m.sub.(platform.Refresher)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return r.Refresh()
}

// NewHandle creates an unacquired Handle bound to this manager.
func (m *Manager) NewHandle(opts HandleOptions) *Handle {
	return newHandle(m, opts)
}

func (m *Manager) camera(id string) (platform.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, stateError("acquire", "manager not started")
	}
	return m.sub.Get(id)
}

func (m *Manager) hold() {
	m.mu.Lock()
	m.holders++
	m.mu.Unlock()
}

func (m *Manager) unhold() {
	m.mu.Lock()
	if m.holders > 0 {
		m.holders--
	}
	m.mu.Unlock()
}
