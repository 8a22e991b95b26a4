package camera

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/metrics"
)

// Options describes a capture pipeline.
type Options struct {
	Selector Selector
	Stream   StreamConfig
	Strict   bool
	Timeout  time.Duration
	Handler  FrameHandler
	OnCycle  func(*CycleResult)
	// Start starts the device during Open instead of on the first cycle.
	Start bool
}

// Pipeline is an acquired, configured camera with buffers and a controller.
type Pipeline struct {
	Handle     *Handle
	Controller *Controller
	Applied    StreamConfig
}

// Open acquires a camera through mgr, configures it, allocates buffers and
// builds a controller. Any failure tears down what was set up and returns
// the classified error; no partially built pipeline escapes.
func Open(ctx context.Context, mgr *Manager, opts Options) (*Pipeline, error) {
	h := mgr.NewHandle(HandleOptions{Selector: opts.Selector, Strict: opts.Strict})

	p, err := open(ctx, h, opts)
	if err != nil {
		if cerr := h.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		kind := errorKindLabel(err)
		metrics.RecordSetupFailure(kind)
		mgr.logger.Error("Failed to open camera", "kind", kind, "error", err)
		mgr.bus.Publish(events.CaptureErrorEvent{
			Kind:      kind,
			Error:     err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return nil, err
	}
	return p, nil
}

func open(ctx context.Context, h *Handle, opts Options) (*Pipeline, error) {
	if err := h.Acquire(ctx); err != nil {
		return nil, err
	}
	applied, err := h.Configure(opts.Stream)
	if err != nil {
		return nil, err
	}
	if err := h.AllocateBuffers(); err != nil {
		return nil, err
	}
	ctrl, err := NewController(h, ControllerOptions{
		Timeout: opts.Timeout,
		Handler: opts.Handler,
		OnCycle: opts.OnCycle,
	})
	if err != nil {
		return nil, err
	}
	if opts.Start {
		if err := h.Start(); err != nil {
			return nil, err
		}
	}
	return &Pipeline{Handle: h, Controller: ctrl, Applied: applied}, nil
}

// RunCycle runs one capture cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleResult, error) {
	return p.Controller.RunCycle(ctx)
}

// Close tears the pipeline down in order. It is idempotent.
func (p *Pipeline) Close() error {
	return p.Handle.Close()
}
