package camera

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/snapcam/internal/platform"
)

// RequestPool owns the allocator, the buffers of every configured stream and
// one capture request per buffer of the primary stream.
//
// Teardown must run FreeBuffers then CloseAllocator; CloseAllocator refuses
// to run while buffers are outstanding.
type RequestPool struct {
	cam    platform.Camera
	cfg    *platform.Configuration
	logger *slog.Logger

	alloc     platform.Allocator
	allocated []*platform.Stream
	buffers   int
	requests  []*platform.Request
}

func newRequestPool(cam platform.Camera, cfg *platform.Configuration, logger *slog.Logger) *RequestPool {
	return &RequestPool{cam: cam, cfg: cfg, logger: logger}
}

// Allocate reserves buffers and builds requests. On failure everything
// obtained so far is released before the error is returned.
func (p *RequestPool) Allocate() error {
	if p.alloc != nil {
		return stateError("allocate", "pool already allocated")
	}
	if p.cfg == nil || len(p.cfg.Streams) == 0 {
		return stateError("allocate", "no configured streams")
	}

	alloc, err := p.cam.NewAllocator()
	if err != nil {
		return newError(KindAllocationFailed, "allocate", err)
	}
	p.alloc = alloc

	for i := range p.cfg.Streams {
		stream := p.cfg.At(i).Stream()
		if stream == nil {
			return p.rollback(newError(KindAllocationFailed, "allocate",
				fmt.Errorf("stream %d has not been configured", i)))
		}

		n, err := alloc.Allocate(stream)
		if err != nil {
			return p.rollback(newError(KindAllocationFailed, "allocate", err))
		}
		p.allocated = append(p.allocated, stream)
		p.buffers += n
		if n == 0 {
			return p.rollback(newError(KindAllocationFailed, "allocate",
				fmt.Errorf("stream %d: %w", i, platform.ErrNoMemory)))
		}
	}

	primary := p.cfg.At(0).Stream()
	for i, buf := range alloc.Buffers(primary) {
		req, err := p.cam.CreateRequest(uint64(i))
		if err != nil {
			return p.rollback(newError(KindAllocationFailed, "build request",
				fmt.Errorf("%w: request %d: %w", ErrRequestBuildFailed, i, err)))
		}
		if err := p.bind(req, i, primary, buf); err != nil {
			return p.rollback(newError(KindAllocationFailed, "build request",
				fmt.Errorf("%w: request %d: %w", ErrRequestBuildFailed, i, err)))
		}
		p.requests = append(p.requests, req)
	}
	if len(p.requests) == 0 {
		return p.rollback(newError(KindAllocationFailed, "build request",
			fmt.Errorf("%w: no buffers for primary stream", ErrRequestBuildFailed)))
	}

	p.logger.Debug("Request pool ready", "buffers", p.buffers, "requests", len(p.requests))
	return nil
}

// bind attaches the primary buffer and, for secondary streams, the buffer
// with the same index when one exists.
func (p *RequestPool) bind(req *platform.Request, i int, primary *platform.Stream, buf *platform.FrameBuffer) error {
	if err := req.AddBuffer(primary, buf); err != nil {
		return err
	}
	for _, s := range p.allocated[1:] {
		bufs := p.alloc.Buffers(s)
		if i < len(bufs) {
			if err := req.AddBuffer(s, bufs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *RequestPool) rollback(cause error) error {
	if err := p.Release(); err != nil {
		p.logger.Error("Rollback after failed allocation incomplete", "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

// Requests returns the pooled requests in creation order.
func (p *RequestPool) Requests() []*platform.Request {
	return p.requests
}

// Buffers returns the number of buffers held across all streams.
func (p *RequestPool) Buffers() int {
	return p.buffers
}

// Allocated reports whether the pool holds an allocator.
func (p *RequestPool) Allocated() bool {
	return p.alloc != nil
}

// FreeBuffers drops the requests and returns every stream's buffers to the
// allocator.
func (p *RequestPool) FreeBuffers() error {
	p.requests = nil

	var errs []error
	for _, s := range p.allocated {
		if err := p.alloc.Free(s); err != nil {
			errs = append(errs, fmt.Errorf("free stream %d: %w", s.Index(), err))
		}
	}
	p.allocated = nil
	p.buffers = 0
	return errors.Join(errs...)
}

// CloseAllocator releases the allocator itself.
func (p *RequestPool) CloseAllocator() error {
	if p.alloc == nil {
		return nil
	}
	if len(p.allocated) > 0 {
		return newError(KindInvalidState, "close allocator",
			fmt.Errorf("%w: %d stream(s) still hold buffers", ErrTeardownOrder, len(p.allocated)))
	}
	err := p.alloc.Close()
	p.alloc = nil
	return err
}

// Release frees buffers then closes the allocator. It is idempotent.
func (p *RequestPool) Release() error {
	if p.alloc == nil {
		return nil
	}
	freeErr := p.FreeBuffers()
	return errors.Join(freeErr, p.CloseAllocator())
}
