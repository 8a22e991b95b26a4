// Package capture shares one open camera pipeline between on-demand
// triggers and an optional background loop.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/camera"
)

// ErrUnavailable is returned when no camera pipeline is open.
var ErrUnavailable = errors.New("no camera open")

// FrameInfo is the metadata of a delivered frame. Pixel data is never
// exposed.
type FrameInfo struct {
	Request     uint64 `json:"request" example:"2" doc:"Request slot that completed"`
	Sequence    uint32 `json:"sequence" example:"341" doc:"Hardware frame sequence number"`
	BytesUsed   int    `json:"bytes_used" example:"691200" doc:"Payload size"`
	Status      string `json:"status" example:"success" doc:"Frame status"`
	Width       uint32 `json:"width" example:"480" doc:"Frame width"`
	Height      uint32 `json:"height" example:"480" doc:"Frame height"`
	PixelFormat string `json:"pixel_format" example:"BGR888" doc:"Frame pixel format"`
	Timestamp   string `json:"timestamp,omitempty" doc:"Hardware capture timestamp"`
}

// Result summarizes one capture cycle.
type Result struct {
	Cycle        uint64     `json:"cycle" example:"12" doc:"Cycle number within the session"`
	Outcome      string     `json:"outcome" example:"delivered" doc:"delivered, timeout or cancelled"`
	DurationMs   float64    `json:"duration_ms" example:"33.4" doc:"Cycle wall time"`
	Submitted    int        `json:"submitted" example:"4" doc:"Requests queued by the cycle"`
	Stale        int        `json:"stale,omitempty" doc:"Completions skipped as stale"`
	Frame        *FrameInfo `json:"frame,omitempty" doc:"Delivered frame metadata"`
	HandlerError string     `json:"handler_error,omitempty" doc:"Frame handler failure"`
	Timestamp    string     `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"When the cycle finished"`
}

// NewResult converts a controller result.
func NewResult(r *camera.CycleResult) Result {
	out := Result{
		Cycle:      r.Cycle,
		Outcome:    r.Outcome.String(),
		DurationMs: float64(r.Duration.Microseconds()) / 1000,
		Submitted:  r.Submitted,
		Stale:      r.Stale,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if r.HandlerErr != nil {
		out.HandlerError = r.HandlerErr.Error()
	}
	if f := r.Frame; f != nil {
		p := f.Primary()
		fi := &FrameInfo{
			Request:     f.Request,
			Sequence:    p.Metadata.Sequence,
			BytesUsed:   p.Metadata.BytesUsed,
			Status:      p.Metadata.Status.String(),
			Width:       f.Config.Width,
			Height:      f.Config.Height,
			PixelFormat: string(f.Config.PixelFormat),
		}
		if !p.Metadata.Timestamp.IsZero() {
			fi.Timestamp = p.Metadata.Timestamp.Format(time.RFC3339Nano)
		}
		out.Frame = fi
	}
	return out
}

// StreamInfo is the applied stream configuration.
type StreamInfo struct {
	Width       uint32 `json:"width" example:"480"`
	Height      uint32 `json:"height" example:"480"`
	PixelFormat string `json:"pixel_format" example:"BGR888"`
	Role        string `json:"role" example:"video"`
	BufferCount int    `json:"buffer_count" example:"4"`
	Stride      uint32 `json:"stride,omitempty"`
	FrameSize   uint32 `json:"frame_size,omitempty"`
}

// Status is a point-in-time view of the capture service.
type Status struct {
	Available bool           `json:"available" doc:"Whether a camera is open"`
	DeviceID  string         `json:"device_id,omitempty" doc:"Stable device identifier"`
	Name      string         `json:"name,omitempty" doc:"Device name"`
	Path      string         `json:"path,omitempty" doc:"Device node"`
	SessionID string         `json:"session_id,omitempty" doc:"Handle session"`
	State     string         `json:"state" example:"running" doc:"Handle state"`
	Stream    *StreamInfo    `json:"stream,omitempty" doc:"Applied stream configuration"`
	Buffers   int            `json:"buffers" example:"4" doc:"Allocated buffers"`
	TimeoutMs int64          `json:"timeout_ms" example:"1000" doc:"Cycle wait bound"`
	Looping   bool           `json:"looping" doc:"Whether the background loop runs"`
	Summary   camera.Summary `json:"summary" doc:"Totals since start"`
	Last      *Result        `json:"last,omitempty" doc:"Most recent cycle"`
	LastError string         `json:"last_error,omitempty" doc:"Most recent cycle error"`
}

// Service runs capture cycles on a pipeline. The pipeline may be nil, in
// which case every capture fails with ErrUnavailable.
type Service struct {
	pipeline *camera.Pipeline
	logger   *slog.Logger

	mu      sync.Mutex
	summary camera.Summary
	last    *Result
	lastErr string

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wraps p.
func NewService(p *camera.Pipeline, logger *slog.Logger) *Service {
	return &Service{pipeline: p, logger: logger}
}

// Available reports whether a pipeline is open.
func (s *Service) Available() bool {
	return s.pipeline != nil
}

// Capture runs one cycle. Timeouts and cancellations are results, not
// errors.
func (s *Service) Capture(ctx context.Context) (*Result, error) {
	if s.pipeline == nil {
		return nil, ErrUnavailable
	}

	res, err := s.pipeline.RunCycle(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	s.summary.Add(res)
	out := NewResult(res)
	s.last = &out
	s.lastErr = ""
	return &out, nil
}

// SetTimeout changes the cycle wait bound.
func (s *Service) SetTimeout(d time.Duration) {
	if s.pipeline == nil {
		return
	}
	s.pipeline.Controller.SetTimeout(d)
	s.logger.Info("Capture timeout updated", "timeout", s.pipeline.Controller.Timeout())
}

// Status returns the current view.
func (s *Service) Status() Status {
	st := Status{State: camera.StateAvailable.String()}

	s.loopMu.Lock()
	st.Looping = s.cancel != nil
	s.loopMu.Unlock()

	s.mu.Lock()
	st.Summary = s.summary
	st.Last = s.last
	st.LastError = s.lastErr
	s.mu.Unlock()

	if s.pipeline == nil {
		return st
	}

	h := s.pipeline.Handle
	info := h.Info()
	st.Available = true
	st.DeviceID = info.ID
	st.Name = info.Name
	st.Path = info.Path
	st.SessionID = h.SessionID()
	st.State = h.State().String()
	st.Buffers = h.Buffers()
	st.TimeoutMs = s.pipeline.Controller.Timeout().Milliseconds()
	if cfg, ok := h.Applied(); ok {
		st.Stream = &StreamInfo{
			Width:       cfg.Width,
			Height:      cfg.Height,
			PixelFormat: string(cfg.PixelFormat),
			Role:        cfg.Role.String(),
			BufferCount: cfg.BufferCount,
			Stride:      cfg.Stride,
			FrameSize:   cfg.FrameSize,
		}
	}
	return st
}

// StartLoop captures every interval until StopLoop. Calling it while a loop
// runs is a no-op.
func (s *Service) StartLoop(interval time.Duration) error {
	if s.pipeline == nil {
		return ErrUnavailable
	}
	if interval <= 0 {
		return errors.New("capture interval must be positive")
	}

	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, interval, s.done)

	s.logger.Info("Capture loop started", "interval", interval)
	return nil
}

func (s *Service) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := s.Capture(ctx)
		switch {
		case err == nil:
			s.logger.Debug("Background capture", "cycle", res.Cycle, "outcome", res.Outcome)
		case ctx.Err() != nil:
			return
		case camera.KindOf(err) == camera.KindInvalidState:
			s.logger.Error("Capture loop stopped", "error", err)
			s.loopMu.Lock()
			if s.done == done {
				s.cancel()
				s.cancel, s.done = nil, nil
			}
			s.loopMu.Unlock()
			return
		default:
			s.logger.Warn("Background capture failed", "error", err)
		}
	}
}

// StopLoop stops the background loop and waits for it to exit.
func (s *Service) StopLoop() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Capture loop stopped")
}

// Close stops the loop and tears the pipeline down.
func (s *Service) Close() error {
	s.StopLoop()
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Close()
}
