package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/metrics"
	"github.com/smazurov/snapcam/internal/platform"
)

// HandleOptions configures a Handle.
type HandleOptions struct {
	// Selector picks the device. Nil means FirstDevice.
	Selector Selector
	// Strict rejects configurations the device had to adjust.
	Strict bool
}

// Handle is the owner of one physical camera and its state machine:
//
//	Available -> Acquired -> Configured -> Running
//
// Every transition is explicit; skipping a state returns ErrInvalidState
// and leaves the handle untouched. Close tears down from any state.
type Handle struct {
	mgr        *Manager
	selector   Selector
	negotiator *Negotiator
	strict     bool
	logger     *slog.Logger
	bus        *events.Bus
	sessionID  string

	mu        sync.Mutex
	state     State
	cam       platform.Camera
	info      platform.CameraInfo
	pcfg      *platform.Configuration
	applied   StreamConfig
	pool      *RequestPool
	connected bool
}

func newHandle(m *Manager, opts HandleOptions) *Handle {
	sel := opts.Selector
	if sel == nil {
		sel = FirstDevice
	}
	id := uuid.NewString()
	logger := m.logger.With("session_id", id)
	return &Handle{
		mgr:        m,
		selector:   sel,
		negotiator: NewNegotiator(logger),
		strict:     opts.Strict,
		logger:     logger,
		bus:        m.bus,
		sessionID:  id,
	}
}

// Acquire selects a device and locks it for this process.
func (h *Handle) Acquire(ctx context.Context) error {
	const op = "acquire"

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateAvailable {
		return stateError(op, "handle is %s", h.state)
	}
	if err := ctx.Err(); err != nil {
		return newError(KindAcquisitionFailed, op, err)
	}
	if !h.mgr.Started() {
		return stateError(op, "manager not started")
	}

	info, err := h.selector.Select(h.mgr.Cameras())
	if err != nil {
		return newError(KindAcquisitionFailed, op, err)
	}
	cam, err := h.mgr.camera(info.ID)
	if err != nil {
		return newError(KindAcquisitionFailed, op, fmt.Errorf("%s: %w", info.ID, err))
	}
	if err := cam.Acquire(); err != nil {
		if errors.Is(err, platform.ErrBusy) {
			return newError(KindAcquisitionFailed, op, fmt.Errorf("%w: %s: %w", ErrDeviceBusy, info.ID, err))
		}
		return newError(KindAcquisitionFailed, op, fmt.Errorf("%s: %w", info.ID, err))
	}

	h.mgr.hold()
	h.cam = cam
	h.info = info
	h.bus.Publish(events.DeviceDiscoveryEvent{
		DeviceID:  info.ID,
		Name:      info.Name,
		Path:      info.Path,
		Action:    "selected",
		Timestamp: time.Now().Format(time.RFC3339),
	})
	h.setState(StateAcquired)
	return nil
}

// Configure negotiates want with the device and applies the result. The
// returned configuration is what the device will deliver, which may differ
// from want unless the handle is strict.
//
// Configuring an already configured handle releases its buffers first and
// builds a fresh configuration.
func (h *Handle) Configure(want StreamConfig) (StreamConfig, error) {
	const op = "configure"

	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateAcquired:
	case StateConfigured:
		if err := h.releaseBuffersLocked(); err != nil {
			return StreamConfig{}, err
		}
		h.pcfg = nil
		h.applied = StreamConfig{}
		h.setState(StateAcquired)
	default:
		return StreamConfig{}, stateError(op, "handle is %s", h.state)
	}

	neg, err := h.negotiator.Negotiate(h.cam, want)
	if err != nil {
		return StreamConfig{}, err
	}
	if neg.Status == platform.Adjusted {
		if h.strict {
			return StreamConfig{}, newError(KindInvalidConfiguration, op,
				fmt.Errorf("device adjusted request: %v", neg.Adjustments))
		}
		h.logger.Warn("Device adjusted requested configuration",
			"requested", want.String(), "applied", neg.Applied.String(), "changes", neg.Adjustments)
	}

	if err := h.cam.Configure(neg.Config); err != nil {
		return StreamConfig{}, newError(KindInvalidConfiguration, op, err)
	}

	h.pcfg = neg.Config
	h.applied = fromPlatform(neg.Config.At(0))
	h.logger.Info("Stream configured", "device_id", h.info.ID, "config", h.applied.String(), "role", h.applied.Role)
	h.setState(StateConfigured)
	return h.applied, nil
}

// AllocateBuffers reserves buffers and builds one request per buffer. On
// failure nothing stays allocated.
func (h *Handle) AllocateBuffers() error {
	const op = "allocate"

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateConfigured {
		return stateError(op, "handle is %s", h.state)
	}
	if h.pool != nil {
		return stateError(op, "buffers already allocated")
	}

	pool := newRequestPool(h.cam, h.pcfg, h.logger)
	if err := pool.Allocate(); err != nil {
		return err
	}
	h.pool = pool
	metrics.SetBuffersAllocated(h.info.ID, pool.Buffers())
	h.logger.Info("Buffers allocated", "device_id", h.info.ID,
		"buffers", pool.Buffers(), "requests", len(pool.Requests()))
	return nil
}

// ReleaseBuffers frees the request pool. It is a no-op without one and
// refuses while the device runs.
func (h *Handle) ReleaseBuffers() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseBuffersLocked()
}

func (h *Handle) releaseBuffersLocked() error {
	if h.pool == nil {
		return nil
	}
	if h.state == StateRunning {
		return stateError("release buffers", "device is running")
	}
	err := h.pool.Release()
	h.pool = nil
	metrics.SetBuffersAllocated(h.info.ID, 0)
	if err != nil {
		return fmt.Errorf("release buffers: %w", err)
	}
	return nil
}

// Start begins capture. It is only legal from Configured with buffers
// allocated.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startLocked()
}

func (h *Handle) startLocked() error {
	const op = "start"

	if h.state != StateConfigured {
		return stateError(op, "handle is %s", h.state)
	}
	if h.pool == nil {
		return stateError(op, "no buffers allocated")
	}
	if err := h.cam.Start(); err != nil {
		return newError(KindAcquisitionFailed, op, err)
	}
	h.setState(StateRunning)
	return nil
}

// ensureRunning starts a configured device and accepts a running one.
func (h *Handle) ensureRunning() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateRunning {
		return nil
	}
	if h.state != StateConfigured {
		return stateError("capture", "handle is %s", h.state)
	}
	return h.startLocked()
}

// Stop halts capture and returns to Configured. In-flight requests are
// cancelled through the completion callback before Stop returns. Stopping
// a configured handle is a no-op.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateRunning:
		return h.stopLocked()
	case StateConfigured:
		return nil
	default:
		return stateError("stop", "handle is %s", h.state)
	}
}

func (h *Handle) stopLocked() error {
	err := h.cam.Stop()
	h.setState(StateConfigured)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Release unlocks the device and returns to Available. It is idempotent on
// an available handle. Buffers must have been released and the device
// stopped first.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.state == StateAvailable:
		return nil
	case h.state == StateRunning:
		return stateError("release", "device is running")
	case h.pool != nil:
		return newError(KindInvalidState, "release",
			fmt.Errorf("%w: buffers still allocated", ErrTeardownOrder))
	case h.connected:
		return newError(KindInvalidState, "release",
			fmt.Errorf("%w: completion callback still connected", ErrTeardownOrder))
	}
	return h.releaseLocked()
}

func (h *Handle) releaseLocked() error {
	err := h.cam.Release()
	h.mgr.unhold()
	h.cam = nil
	h.pcfg = nil
	h.applied = StreamConfig{}
	h.setState(StateAvailable)
	h.info = platform.CameraInfo{}
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

// Close tears the handle down from whatever state it is in: stop the
// device, disconnect the completion callback, free buffers, close the
// allocator, release the device. It is safe to call repeatedly.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	if h.state == StateRunning {
		if err := h.stopLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.connected {
		h.cam.SetRequestCompleted(nil)
		h.connected = false
	}
	if h.pool != nil {
		if err := h.pool.FreeBuffers(); err != nil {
			errs = append(errs, fmt.Errorf("free buffers: %w", err))
		}
		if err := h.pool.CloseAllocator(); err != nil {
			errs = append(errs, fmt.Errorf("close allocator: %w", err))
		}
		h.pool = nil
		metrics.SetBuffersAllocated(h.info.ID, 0)
	}
	if h.state != StateAvailable {
		if err := h.releaseLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// connect installs the completion callback. A nil fn disconnects it.
func (h *Handle) connect(fn platform.RequestCompletedFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state < StateAcquired {
		return stateError("connect", "handle is %s", h.state)
	}
	h.cam.SetRequestCompleted(fn)
	h.connected = fn != nil
	return nil
}

// queue submits req to the running device.
func (h *Handle) queue(req *platform.Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateRunning {
		return stateError("queue", "handle is %s", h.state)
	}
	return h.cam.QueueRequest(req)
}

// requests returns the pooled requests, nil without a pool.
func (h *Handle) requests() []*platform.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool == nil {
		return nil
	}
	return h.pool.Requests()
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Info describes the held device. It is zero while Available.
func (h *Handle) Info() platform.CameraInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

// Applied returns the configuration the device accepted and whether one is
// in effect.
func (h *Handle) Applied() (StreamConfig, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applied, h.state >= StateConfigured
}

// Buffers returns the number of buffers held by the request pool.
func (h *Handle) Buffers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool == nil {
		return 0
	}
	return h.pool.Buffers()
}

// SessionID identifies this handle in logs and events.
func (h *Handle) SessionID() string {
	return h.sessionID
}

func (h *Handle) setState(to State) {
	from := h.state
	if from == to {
		return
	}
	h.state = to

	h.logger.Info("Device state changed", "device_id", h.info.ID, "from", from.String(), "to", to.String())
	metrics.SetDeviceState(h.info.ID, int(to))
	h.bus.Publish(events.DeviceStateChangedEvent{
		DeviceID:  h.info.ID,
		SessionID: h.sessionID,
		From:      from.String(),
		To:        to.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
