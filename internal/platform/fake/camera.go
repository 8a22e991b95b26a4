package fake

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/platform"
)

// CameraSpec describes a fake camera and the faults it injects.
type CameraSpec struct {
	ID   string
	Name string

	Formats     []platform.PixelFormat
	Roles       []platform.StreamRole
	DefaultSize platform.Size
	MinSize     platform.Size
	MaxSize     platform.Size
	// WidthAlign rounds validated widths down to a multiple of this value.
	WidthAlign uint32
	MaxBuffers int

	AcquireErr   error
	ConfigureErr error
	StartErr     error
	AllocateErr  error
	// AllocateLimit caps the number of buffers granted per stream. Zero
	// means no cap.
	AllocateLimit int
	// FailCreateRequestAt fails the n-th CreateRequest call (1-based).
	FailCreateRequestAt int
	// AutoComplete completes each queued request after this delay.
	AutoComplete time.Duration
}

func (s CameraSpec) withDefaults(n int) CameraSpec {
	if s.ID == "" {
		s.ID = fmt.Sprintf("fake-%d", n)
	}
	if s.Name == "" {
		s.Name = "Fake Camera " + s.ID
	}
	if len(s.Formats) == 0 {
		s.Formats = []platform.PixelFormat{platform.FormatBGR888, platform.FormatYUYV}
	}
	if len(s.Roles) == 0 {
		s.Roles = []platform.StreamRole{platform.RoleVideoRecording, platform.RoleViewfinder, platform.RoleStillCapture}
	}
	if s.DefaultSize == (platform.Size{}) {
		s.DefaultSize = platform.Size{Width: 640, Height: 480}
	}
	if s.MinSize == (platform.Size{}) {
		s.MinSize = platform.Size{Width: 32, Height: 32}
	}
	if s.MaxSize == (platform.Size{}) {
		s.MaxSize = platform.Size{Width: 1920, Height: 1080}
	}
	if s.WidthAlign == 0 {
		s.WidthAlign = 1
	}
	if s.MaxBuffers == 0 {
		s.MaxBuffers = 8
	}
	return s
}

// Camera is an in-memory platform.Camera.
type Camera struct {
	spec CameraSpec
	rec  *Recorder

	mu         sync.Mutex
	acquired   bool
	configured bool
	running    bool
	streams    []*platform.Stream
	applied    []platform.StreamConfiguration
	allocators []*Allocator
	live       map[*platform.FrameBuffer]bool
	callback   platform.RequestCompletedFunc
	queued     []*platform.Request
	created    int
	queuedAll  int
	sequence   uint32
	notify     chan struct{}
}

var _ platform.Camera = (*Camera)(nil)

func newCamera(spec CameraSpec, rec *Recorder) *Camera {
	return &Camera{
		spec:   spec,
		rec:    rec,
		live:   make(map[*platform.FrameBuffer]bool),
		notify: make(chan struct{}),
	}
}

// ID implements platform.Camera.
func (c *Camera) ID() string {
	return c.spec.ID
}

// Acquire implements platform.Camera.
func (c *Camera) Acquire() error {
	c.rec.record(CallAcquire)
	if c.spec.AcquireErr != nil {
		return c.spec.AcquireErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquired {
		return platform.ErrBusy
	}
	c.acquired = true
	return nil
}

// Release implements platform.Camera.
func (c *Camera) Release() error {
	c.rec.record(CallRelease)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return errors.New("camera not acquired")
	}
	if c.running {
		c.rec.violate("camera %s released while running", c.spec.ID)
	}
	if len(c.allocators) > 0 {
		c.rec.violate("camera %s released with %d allocator(s) open", c.spec.ID, len(c.allocators))
	}
	if c.callback != nil {
		c.rec.violate("camera %s released with completion callback connected", c.spec.ID)
	}
	c.acquired = false
	c.configured = false
	c.streams = nil
	c.applied = nil
	return nil
}

// GenerateConfiguration implements platform.Camera.
func (c *Camera) GenerateConfiguration(roles ...platform.StreamRole) (*platform.Configuration, error) {
	c.rec.record(CallGenerate)
	if len(roles) == 0 {
		return &platform.Configuration{}, nil
	}

	cfg := &platform.Configuration{}
	for _, role := range roles {
		if !slices.Contains(c.spec.Roles, role) {
			return nil, fmt.Errorf("%w: %s", platform.ErrRoleUnsupported, role)
		}
		format := c.spec.Formats[0]
		cfg.Streams = append(cfg.Streams, platform.StreamConfiguration{
			Role:        role,
			Size:        c.spec.DefaultSize,
			PixelFormat: format,
			Stride:      format.Stride(c.spec.DefaultSize.Width),
			FrameSize:   format.FrameSize(c.spec.DefaultSize),
			BufferCount: 4,
		})
	}
	return cfg, nil
}

// Validate implements platform.Camera.
func (c *Camera) Validate(cfg *platform.Configuration) platform.ValidationStatus {
	c.rec.record(CallValidate)
	if cfg == nil || len(cfg.Streams) == 0 {
		return platform.Invalid
	}

	status := platform.Valid
	for i := range cfg.Streams {
		sc := &cfg.Streams[i]
		if sc.Size.Width == 0 || sc.Size.Height == 0 {
			return platform.Invalid
		}

		if !slices.Contains(c.spec.Formats, sc.PixelFormat) {
			sc.PixelFormat = c.spec.Formats[0]
			status = platform.Adjusted
		}

		size := platform.Size{
			Width:  clamp(sc.Size.Width, c.spec.MinSize.Width, c.spec.MaxSize.Width),
			Height: clamp(sc.Size.Height, c.spec.MinSize.Height, c.spec.MaxSize.Height),
		}
		size.Width -= size.Width % c.spec.WidthAlign
		if size != sc.Size {
			sc.Size = size
			status = platform.Adjusted
		}

		if sc.BufferCount < 1 {
			sc.BufferCount = 1
			status = platform.Adjusted
		} else if sc.BufferCount > c.spec.MaxBuffers {
			sc.BufferCount = c.spec.MaxBuffers
			status = platform.Adjusted
		}

		sc.Stride = sc.PixelFormat.Stride(sc.Size.Width)
		sc.FrameSize = sc.PixelFormat.FrameSize(sc.Size)
	}
	return status
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}

// Configure implements platform.Camera.
func (c *Camera) Configure(cfg *platform.Configuration) error {
	c.rec.record(CallConfigure)
	if c.spec.ConfigureErr != nil {
		return c.spec.ConfigureErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return errors.New("camera not acquired")
	}
	if c.running {
		c.rec.violate("camera %s configured while running", c.spec.ID)
		return errors.New("camera running")
	}

	c.streams = c.streams[:0]
	for i := range cfg.Streams {
		s := platform.NewStream(i)
		cfg.Streams[i].SetStream(s)
		c.streams = append(c.streams, s)
	}
	c.applied = slices.Clone(cfg.Streams)
	c.configured = true
	return nil
}

// NewAllocator implements platform.Camera.
func (c *Camera) NewAllocator() (platform.Allocator, error) {
	c.rec.record(CallNewAllocator)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return nil, errors.New("camera not configured")
	}
	a := &Allocator{cam: c, buffers: make(map[*platform.Stream][]*platform.FrameBuffer)}
	c.allocators = append(c.allocators, a)
	return a, nil
}

// CreateRequest implements platform.Camera.
func (c *Camera) CreateRequest(cookie uint64) (*platform.Request, error) {
	c.rec.record(CallCreateRequest)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
	if c.spec.FailCreateRequestAt > 0 && c.created == c.spec.FailCreateRequestAt {
		return nil, errors.New("out of request slots")
	}
	if !c.configured {
		return nil, errors.New("camera not configured")
	}
	return platform.NewRequest(cookie), nil
}

// QueueRequest implements platform.Camera.
func (c *Camera) QueueRequest(req *platform.Request) error {
	c.rec.record(CallQueueRequest)

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return platform.ErrNotStreaming
	}
	bindings := req.Bindings()
	if len(bindings) == 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: no buffers", platform.ErrInvalidRequest)
	}
	for _, b := range bindings {
		if !c.live[b.Buffer] {
			c.rec.violate("request %d queued with freed buffer %d", req.Cookie(), b.Buffer.Index())
			c.mu.Unlock()
			return fmt.Errorf("%w: buffer %d not allocated", platform.ErrInvalidRequest, b.Buffer.Index())
		}
	}
	if err := req.MarkQueued(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.queued = append(c.queued, req)
	c.queuedAll++
	close(c.notify)
	c.notify = make(chan struct{})
	delay := c.spec.AutoComplete
	c.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() {
			c.finish(req, platform.RequestComplete, platform.FrameSuccess)
		})
	}
	return nil
}

// SetRequestCompleted implements platform.Camera.
func (c *Camera) SetRequestCompleted(fn platform.RequestCompletedFunc) {
	if fn == nil {
		c.rec.record(CallDisconnect)
	} else {
		c.rec.record(CallConnect)
	}

	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
}

// Start implements platform.Camera.
func (c *Camera) Start() error {
	c.rec.record(CallStart)
	if c.spec.StartErr != nil {
		return c.spec.StartErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		c.rec.violate("camera %s started before configure", c.spec.ID)
		return errors.New("camera not configured")
	}
	c.running = true
	return nil
}

// Stop implements platform.Camera. Requests in flight are cancelled
// synchronously through the completion callback.
func (c *Camera) Stop() error {
	c.rec.record(CallStop)

	c.mu.Lock()
	c.running = false
	pending := c.queued
	c.queued = nil
	cb := c.callback
	c.mu.Unlock()

	for _, req := range pending {
		c.deliver(req, cb, platform.RequestCancelled, platform.FrameCancelled, 0)
	}
	return nil
}

// CompleteNext finishes the oldest in-flight request successfully. It
// reports false when nothing is in flight.
func (c *Camera) CompleteNext() bool {
	return c.finishOldest(platform.RequestComplete, platform.FrameSuccess)
}

// FailNext completes the oldest in-flight request with a frame error.
func (c *Camera) FailNext() bool {
	return c.finishOldest(platform.RequestComplete, platform.FrameError)
}

// CancelNext cancels the oldest in-flight request.
func (c *Camera) CancelNext() bool {
	return c.finishOldest(platform.RequestCancelled, platform.FrameCancelled)
}

func (c *Camera) finishOldest(status platform.RequestStatus, frame platform.FrameStatus) bool {
	c.mu.Lock()
	if len(c.queued) == 0 {
		c.mu.Unlock()
		return false
	}
	req := c.queued[0]
	c.mu.Unlock()
	return c.finish(req, status, frame)
}

func (c *Camera) finish(req *platform.Request, status platform.RequestStatus, frame platform.FrameStatus) bool {
	c.mu.Lock()
	i := slices.Index(c.queued, req)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.queued = slices.Delete(c.queued, i, i+1)
	c.sequence++
	seq := c.sequence
	cb := c.callback
	c.mu.Unlock()

	c.deliver(req, cb, status, frame, seq)
	return true
}

func (c *Camera) deliver(req *platform.Request, cb platform.RequestCompletedFunc, status platform.RequestStatus, frame platform.FrameStatus, seq uint32) {
	now := time.Now()
	for _, b := range req.Bindings() {
		used := 0
		if frame == platform.FrameSuccess {
			used = b.Buffer.Len()
		}
		b.Buffer.SetMetadata(platform.FrameMetadata{
			Status:    frame,
			Sequence:  seq,
			Timestamp: now,
			BytesUsed: used,
		})
	}
	if !req.Finish(status) {
		return
	}
	c.rec.record(CallCompleteRequest)
	if cb != nil {
		cb(req)
	}
}

// WaitQueued blocks until at least n requests have been queued since the
// camera was created, or timeout elapses.
func (c *Camera) WaitQueued(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		c.mu.Lock()
		done := c.queuedAll >= n
		notify := c.notify
		c.mu.Unlock()
		if done {
			return true
		}
		select {
		case <-notify:
		case <-timer.C:
			return false
		}
	}
}

// InFlight returns the number of queued, unfinished requests.
func (c *Camera) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// Acquired reports whether the camera is held.
func (c *Camera) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// Running reports whether the camera is started.
func (c *Camera) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Connected reports whether a completion callback is installed.
func (c *Camera) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// OutstandingBuffers counts buffers allocated and not yet freed.
func (c *Camera) OutstandingBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Applied returns the stream configurations passed to the last Configure.
func (c *Camera) Applied() []platform.StreamConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.applied)
}

// Allocator is an in-memory platform.Allocator backed by byte slices.
type Allocator struct {
	cam     *Camera
	buffers map[*platform.Stream][]*platform.FrameBuffer
	closed  bool
}

var _ platform.Allocator = (*Allocator)(nil)

// Allocate implements platform.Allocator.
func (a *Allocator) Allocate(stream *platform.Stream) (int, error) {
	c := a.cam
	c.rec.record(CallAllocate)
	if c.spec.AllocateErr != nil {
		return 0, c.spec.AllocateErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if a.closed {
		return 0, errors.New("allocator closed")
	}
	i := slices.Index(c.streams, stream)
	if i < 0 {
		return 0, fmt.Errorf("%w: unknown stream", platform.ErrInvalidRequest)
	}
	if _, ok := a.buffers[stream]; ok {
		return 0, platform.ErrBusy
	}

	sc := c.applied[i]
	count := sc.BufferCount
	if c.spec.AllocateLimit > 0 && count > c.spec.AllocateLimit {
		count = c.spec.AllocateLimit
	}
	bufs := make([]*platform.FrameBuffer, 0, count)
	for n := 0; n < count; n++ {
		b := platform.NewFrameBuffer(n, make([]byte, sc.FrameSize))
		bufs = append(bufs, b)
		c.live[b] = true
	}
	a.buffers[stream] = bufs
	return count, nil
}

// Buffers implements platform.Allocator.
func (a *Allocator) Buffers(stream *platform.Stream) []*platform.FrameBuffer {
	a.cam.mu.Lock()
	defer a.cam.mu.Unlock()
	return slices.Clone(a.buffers[stream])
}

// Free implements platform.Allocator.
func (a *Allocator) Free(stream *platform.Stream) error {
	c := a.cam
	c.rec.record(CallFree)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.rec.violate("buffers freed while camera %s running", c.spec.ID)
	}
	bufs, ok := a.buffers[stream]
	if !ok {
		return fmt.Errorf("%w: stream not allocated", platform.ErrInvalidRequest)
	}
	for _, b := range bufs {
		delete(c.live, b)
	}
	delete(a.buffers, stream)
	return nil
}

// Close implements platform.Allocator.
func (a *Allocator) Close() error {
	c := a.cam
	c.rec.record(CallCloseAllocator)

	c.mu.Lock()
	defer c.mu.Unlock()
	if a.closed {
		return nil
	}
	if len(a.buffers) > 0 {
		c.rec.violate("allocator closed with %d stream(s) still allocated", len(a.buffers))
	}
	a.closed = true
	c.allocators = slices.DeleteFunc(c.allocators, func(x *Allocator) bool { return x == a })
	return nil
}
