package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/metrics"
	"github.com/smazurov/snapcam/internal/platform"
)

// DefaultTimeout bounds the wait of a capture cycle.
const DefaultTimeout = time.Second

// Outcome is how a capture cycle ended. None of them is an error.
type Outcome int

// Cycle outcomes.
const (
	OutcomeDelivered Outcome = iota
	OutcomeTimeout
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return metrics.OutcomeDelivered
	case OutcomeTimeout:
		return metrics.OutcomeTimeout
	case OutcomeCancelled:
		return metrics.OutcomeCancelled
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// CycleResult describes one finished capture cycle.
type CycleResult struct {
	Cycle    uint64
	Outcome  Outcome
	Frame    *Frame
	Duration time.Duration
	// Submitted counts requests queued by this cycle.
	Submitted int
	// Stale counts completions skipped because their request had already
	// been requeued.
	Stale int
	// HandlerErr is the frame handler's error. It does not fail the cycle.
	HandlerErr error
}

// Summary totals a run of cycles.
type Summary struct {
	Cycles    int `json:"cycles"`
	Delivered int `json:"delivered"`
	Timeouts  int `json:"timeouts"`
	Cancelled int `json:"cancelled"`
}

func (s *Summary) Add(r *CycleResult) {
	s.Cycles++
	switch r.Outcome {
	case OutcomeDelivered:
		s.Delivered++
	case OutcomeTimeout:
		s.Timeouts++
	case OutcomeCancelled:
		s.Cancelled++
	}
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Timeout bounds each wait. Zero means DefaultTimeout.
	Timeout time.Duration
	// Handler receives delivered frames. Nil uses an EventHandler.
	Handler FrameHandler
	// OnCycle observes every finished cycle.
	OnCycle func(*CycleResult)
}

// Controller runs capture cycles on a configured Handle: submit the pooled
// requests, wait for one completion or the timeout, dispatch the frame.
type Controller struct {
	h       *Handle
	signal  *completionSignal
	handler FrameHandler
	onCycle func(*CycleResult)
	logger  *slog.Logger
	bus     *events.Bus

	timeout atomic.Int64
	cycles  atomic.Uint64

	// one cycle at a time
	mu sync.Mutex
}

// NewController binds a controller to h and installs the completion
// callback. h must be configured with buffers allocated.
func NewController(h *Handle, opts ControllerOptions) (*Controller, error) {
	if s := h.State(); s < StateConfigured {
		return nil, stateError("new controller", "handle is %s", s)
	}
	if h.requests() == nil {
		return nil, stateError("new controller", "no buffers allocated")
	}

	c := &Controller{
		h:       h,
		signal:  newCompletionSignal(),
		handler: opts.Handler,
		onCycle: opts.OnCycle,
		logger:  h.logger,
		bus:     h.bus,
	}
	if c.handler == nil {
		c.handler = NewEventHandler(h.bus, h.logger)
	}
	c.SetTimeout(opts.Timeout)

	if err := h.connect(c.requestCompleted); err != nil {
		return nil, err
	}
	return c, nil
}

// SetTimeout changes the wait bound for subsequent cycles. Non-positive
// values restore DefaultTimeout.
func (c *Controller) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout.Store(int64(d))
}

// Timeout returns the current wait bound.
func (c *Controller) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// Handle returns the handle the controller drives.
func (c *Controller) Handle() *Handle {
	return c.h
}

// Close disconnects the completion callback. The handle stays in its
// current state.
func (c *Controller) Close() error {
	return c.h.connect(nil)
}

// requestCompleted runs on the platform's completion goroutine.
func (c *Controller) requestCompleted(req *platform.Request) {
	if req.Status() == platform.RequestCancelled {
		c.signal.post(completion{kind: completionCancelled, req: req})
		return
	}
	c.signal.post(completion{
		kind: completionReady,
		req:  req,
		action: func(ctx context.Context, cycle uint64) (*Frame, error) {
			f := newFrame(c.h, req, cycle)
			return f, c.handler.HandleFrame(ctx, f)
		},
	})
}

// RunCycle runs one capture cycle. Timeout and cancellation are reported
// as outcomes; errors are reserved for state violations, queue failures
// and ctx ending.
func (c *Controller) RunCycle(ctx context.Context) (*CycleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	res := &CycleResult{Cycle: c.cycles.Add(1)}
	deviceID := c.h.Info().ID

	fail := func(err error) (*CycleResult, error) {
		metrics.RecordCycle(deviceID, metrics.OutcomeError, time.Since(start))
		c.logger.Error("Capture cycle failed", "device_id", deviceID, "cycle", res.Cycle, "error", err)
		c.bus.Publish(events.CaptureErrorEvent{
			DeviceID:  deviceID,
			Kind:      errorKindLabel(err),
			Error:     err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return nil, err
	}

	if err := c.h.ensureRunning(); err != nil {
		return fail(err)
	}

	c.signal.clear()
	n, err := c.submit()
	if err != nil {
		return fail(err)
	}
	res.Submitted = n

	timeout := c.Timeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		comp, err := c.signal.wait(ctx, timer.C)
		if err != nil {
			return fail(err)
		}
		if comp.stale() {
			res.Stale++
			continue
		}

		switch comp.kind {
		case completionEmpty:
			res.Outcome = OutcomeTimeout
			c.logger.Warn("Capture timed out", "device_id", deviceID, "cycle", res.Cycle, "timeout", timeout)
			c.bus.Publish(events.CaptureTimeoutEvent{
				DeviceID:  deviceID,
				SessionID: c.h.SessionID(),
				Cycle:     res.Cycle,
				Timeout:   timeout.String(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		case completionCancelled:
			res.Outcome = OutcomeCancelled
			c.logger.Warn("Capture request cancelled", "device_id", deviceID, "cycle", res.Cycle, "request", comp.req.Cookie())
			c.bus.Publish(events.CaptureCancelledEvent{
				DeviceID:  deviceID,
				SessionID: c.h.SessionID(),
				Cycle:     res.Cycle,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		case completionReady:
			res.Outcome = OutcomeDelivered
			res.Frame, res.HandlerErr = comp.action(ctx, res.Cycle)
			if res.HandlerErr != nil {
				c.logger.Warn("Frame handler failed", "device_id", deviceID, "cycle", res.Cycle, "error", res.HandlerErr)
			}
		}
		break
	}

	res.Duration = time.Since(start)
	metrics.RecordCycle(deviceID, res.Outcome.String(), res.Duration)
	c.logger.Debug("Capture cycle finished", "device_id", deviceID, "cycle", res.Cycle,
		"outcome", res.Outcome.String(), "duration", res.Duration, "submitted", res.Submitted, "stale", res.Stale)
	if c.onCycle != nil {
		c.onCycle(res)
	}
	return res, nil
}

// submit queues every pooled request that is not already in flight.
// Finished requests are reused in place.
func (c *Controller) submit() (int, error) {
	n := 0
	for _, req := range c.h.requests() {
		switch req.Status() {
		case platform.RequestQueued:
			continue
		case platform.RequestComplete, platform.RequestCancelled:
			if err := req.Reuse(); err != nil {
				return n, fmt.Errorf("reuse request %d: %w", req.Cookie(), err)
			}
		}
		if err := c.h.queue(req); err != nil {
			return n, fmt.Errorf("queue request %d: %w", req.Cookie(), err)
		}
		n++
	}
	return n, nil
}

// RunCycles runs n cycles, or until ctx ends when n <= 0. Timeouts and
// cancellations are counted and do not stop the run.
func (c *Controller) RunCycles(ctx context.Context, n int) (Summary, error) {
	var sum Summary
	for i := 0; n <= 0 || i < n; i++ {
		res, err := c.RunCycle(ctx)
		if err != nil {
			if n <= 0 && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return sum, nil
			}
			return sum, err
		}
		sum.Add(res)
	}
	return sum, nil
}

func errorKindLabel(err error) string {
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "capture"
	}
}
