package platform

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FrameStatus reports how the hardware finished with a buffer.
type FrameStatus int

// Frame statuses.
const (
	FrameSuccess FrameStatus = iota
	FrameError
	FrameCancelled
)

func (s FrameStatus) String() string {
	switch s {
	case FrameSuccess:
		return "success"
	case FrameError:
		return "error"
	default:
		return "cancelled"
	}
}

// FrameMetadata is filled by the hardware when a buffer completes.
type FrameMetadata struct {
	Status    FrameStatus
	Sequence  uint32
	Timestamp time.Time
	BytesUsed int
}

// FrameBuffer is one hardware buffer. Memory is owned by the Allocator that
// produced it and is only valid until the stream is freed.
type FrameBuffer struct {
	index int
	mem   []byte

	mu   sync.Mutex
	meta FrameMetadata
}

// NewFrameBuffer wraps buffer memory. Only implementations call this.
func NewFrameBuffer(index int, mem []byte) *FrameBuffer {
	return &FrameBuffer{index: index, mem: mem}
}

// Index is the driver-side buffer index.
func (b *FrameBuffer) Index() int {
	return b.index
}

// Len is the size of the mapped memory.
func (b *FrameBuffer) Len() int {
	return len(b.mem)
}

// Data returns the bytes written by the last completion.
func (b *FrameBuffer) Data() []byte {
	b.mu.Lock()
	n := b.meta.BytesUsed
	b.mu.Unlock()
	if n > len(b.mem) {
		n = len(b.mem)
	}
	return b.mem[:n]
}

// Metadata returns the metadata of the last completion.
func (b *FrameBuffer) Metadata() FrameMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta
}

// SetMetadata records completion metadata. Only implementations call this.
func (b *FrameBuffer) SetMetadata(m FrameMetadata) {
	b.mu.Lock()
	b.meta = m
	b.mu.Unlock()
}

// RequestStatus tracks a request through its lifecycle.
type RequestStatus int32

// Request statuses.
const (
	RequestPending RequestStatus = iota
	RequestQueued
	RequestComplete
	RequestCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestQueued:
		return "queued"
	case RequestComplete:
		return "complete"
	case RequestCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Binding pairs a stream with the buffer a request captures into.
type Binding struct {
	Stream *Stream
	Buffer *FrameBuffer
}

// Request is a unit of capture work: one buffer per stream, submitted to
// the hardware and returned through the completion callback.
//
// Status transitions are atomic so the completion goroutine and the owner
// can observe them without extra locking.
type Request struct {
	cookie uint64
	status atomic.Int32

	mu       sync.Mutex
	bindings []Binding
}

// NewRequest creates an empty pending request. Only implementations call
// this; callers go through Camera.CreateRequest.
func NewRequest(cookie uint64) *Request {
	return &Request{cookie: cookie}
}

// Cookie returns the opaque value given at creation.
func (r *Request) Cookie() uint64 {
	return r.cookie
}

// Status returns the current lifecycle status.
func (r *Request) Status() RequestStatus {
	return RequestStatus(r.status.Load())
}

// AddBuffer binds a buffer for stream. Each stream may be bound once and
// only while the request is not in flight.
func (r *Request) AddBuffer(stream *Stream, buf *FrameBuffer) error {
	if stream == nil || buf == nil {
		return fmt.Errorf("%w: nil stream or buffer", ErrInvalidRequest)
	}
	if r.Status() == RequestQueued {
		return ErrRequestInFlight
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		if b.Stream == stream {
			return fmt.Errorf("%w: stream %d already bound", ErrInvalidRequest, stream.Index())
		}
	}
	r.bindings = append(r.bindings, Binding{Stream: stream, Buffer: buf})
	return nil
}

// Bindings returns the stream/buffer pairs in the order they were added.
func (r *Request) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// Buffer returns the buffer bound for stream, or nil.
func (r *Request) Buffer(stream *Stream) *FrameBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		if b.Stream == stream {
			return b.Buffer
		}
	}
	return nil
}

// Reuse returns a finished request to pending, keeping its buffers so it
// can be queued again.
func (r *Request) Reuse() error {
	for {
		cur := r.status.Load()
		if RequestStatus(cur) == RequestQueued {
			return ErrRequestInFlight
		}
		if r.status.CompareAndSwap(cur, int32(RequestPending)) {
			return nil
		}
	}
}

// MarkQueued moves a pending request in flight. Only implementations call
// this from QueueRequest.
func (r *Request) MarkQueued() error {
	if !r.status.CompareAndSwap(int32(RequestPending), int32(RequestQueued)) {
		if r.Status() == RequestQueued {
			return ErrRequestInFlight
		}
		return fmt.Errorf("%w: request is %s, reuse it first", ErrInvalidRequest, r.Status())
	}
	return nil
}

// Finish completes an in-flight request with status. It reports false when
// the request was not in flight. Only implementations call this.
func (r *Request) Finish(status RequestStatus) bool {
	return r.status.CompareAndSwap(int32(RequestQueued), int32(status))
}
