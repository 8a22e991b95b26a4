//go:build linux && (amd64 || arm64)

package v4l2cam

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/pkg/linuxav/v4l2"
)

const (
	pollInterval = 100 * time.Millisecond
	minBuffers   = 1
	maxBuffers   = 32
)

// Camera is one V4L2 capture node.
type Camera struct {
	info   v4l2.DeviceInfo
	logger *slog.Logger

	mu         sync.Mutex
	dev        *v4l2.Device
	formats    []platform.PixelFormat
	stream     *platform.Stream
	applied    platform.StreamConfiguration
	configured bool
	alloc      *allocator
	callback   platform.RequestCompletedFunc
	inflight   map[int]*platform.Request
	running    bool
	stop       chan struct{}
	done       chan struct{}
	kick       chan struct{}
}

var _ platform.Camera = (*Camera)(nil)

func newCamera(info v4l2.DeviceInfo, logger *slog.Logger) *Camera {
	return &Camera{
		info:     info,
		logger:   logger,
		inflight: make(map[int]*platform.Request),
		kick:     make(chan struct{}, 1),
	}
}

// ID returns the stable device identifier.
func (c *Camera) ID() string {
	return c.info.DeviceID
}

func (c *Camera) acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev != nil
}

// Acquire opens the node and claims record priority on it.
func (c *Camera) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return platform.ErrBusy
	}

	dev, err := v4l2.Open(c.info.DevicePath)
	if err != nil {
		return err
	}
	if err := dev.ClaimPriority(); err != nil {
		dev.Close()
		if errors.Is(err, v4l2.ErrDeviceBusy) {
			return fmt.Errorf("%w: %s", platform.ErrBusy, c.info.DevicePath)
		}
		return err
	}

	formats, err := dev.Formats()
	if err != nil {
		dev.Close()
		return fmt.Errorf("failed to enumerate formats: %w", err)
	}

	c.dev = dev
	c.formats = supportedFormats(formats)
	c.logger.Debug("Camera acquired", "path", c.info.DevicePath, "formats", c.formats)
	return nil
}

// Release closes the node.
func (c *Camera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return errors.New("camera not acquired")
	}
	if c.running {
		return errors.New("camera running")
	}

	err := c.dev.Close()
	c.dev = nil
	c.configured = false
	c.stream = nil
	c.logger.Debug("Camera released")
	return err
}

// GenerateConfiguration returns the current device format for a single
// role. A capture node has one stream, so more than one role is rejected.
func (c *Camera) GenerateConfiguration(roles ...platform.StreamRole) (*platform.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, errors.New("camera not acquired")
	}
	if len(roles) == 0 {
		return &platform.Configuration{}, nil
	}
	if len(roles) > 1 {
		return nil, fmt.Errorf("%w: capture node has a single stream", platform.ErrRoleUnsupported)
	}
	if roles[0] == platform.RoleRaw || len(c.formats) == 0 {
		return nil, fmt.Errorf("%w: %s", platform.ErrRoleUnsupported, roles[0])
	}

	cur, err := c.dev.GetFormat()
	if err != nil {
		return nil, err
	}
	format := c.formats[0]
	size := platform.Size{Width: cur.Width, Height: cur.Height}

	bufferCount := 4
	if roles[0] == platform.RoleStillCapture {
		bufferCount = 2
	}

	return &platform.Configuration{Streams: []platform.StreamConfiguration{{
		Role:        roles[0],
		Size:        size,
		PixelFormat: format,
		Stride:      format.Stride(size.Width),
		FrameSize:   format.FrameSize(size),
		BufferCount: bufferCount,
	}}}, nil
}

// Validate asks the driver for the closest format it supports.
func (c *Camera) Validate(cfg *platform.Configuration) platform.ValidationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil || cfg == nil || len(cfg.Streams) == 0 || len(c.formats) == 0 {
		return platform.Invalid
	}

	status := platform.Valid
	if len(cfg.Streams) > 1 {
		cfg.Streams = cfg.Streams[:1]
		status = platform.Adjusted
	}

	sc := &cfg.Streams[0]
	if sc.Size.Width == 0 || sc.Size.Height == 0 {
		return platform.Invalid
	}
	if !slices.Contains(c.formats, sc.PixelFormat) {
		sc.PixelFormat = c.formats[0]
		status = platform.Adjusted
	}

	fourcc, _ := toFourCC(sc.PixelFormat)
	got, err := c.dev.TryFormat(v4l2.PixFormat{Width: sc.Size.Width, Height: sc.Size.Height, PixelFormat: fourcc})
	if err != nil {
		// Some drivers lack TRY_FMT; S_FMT will have the final word.
		c.logger.Debug("TRY_FMT failed, accepting request as-is", "error", err)
		got = v4l2.PixFormat{Width: sc.Size.Width, Height: sc.Size.Height, PixelFormat: fourcc}
	}

	if f, ok := fromFourCC(got.PixelFormat); ok && f != sc.PixelFormat {
		sc.PixelFormat = f
		status = platform.Adjusted
	}
	if size := (platform.Size{Width: got.Width, Height: got.Height}); size != sc.Size {
		sc.Size = size
		status = platform.Adjusted
	}

	sc.Stride = got.BytesPerLine
	if sc.Stride == 0 {
		sc.Stride = sc.PixelFormat.Stride(sc.Size.Width)
	}
	sc.FrameSize = got.SizeImage
	if sc.FrameSize == 0 {
		sc.FrameSize = sc.PixelFormat.FrameSize(sc.Size)
	}

	if sc.BufferCount < minBuffers {
		sc.BufferCount = minBuffers
		status = platform.Adjusted
	} else if sc.BufferCount > maxBuffers {
		sc.BufferCount = maxBuffers
		status = platform.Adjusted
	}
	return status
}

// Configure applies the validated format to the device.
func (c *Camera) Configure(cfg *platform.Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return errors.New("camera not acquired")
	}
	if c.running {
		return errors.New("camera running")
	}
	if cfg == nil || len(cfg.Streams) != 1 {
		return errors.New("configuration must have exactly one stream")
	}

	sc := &cfg.Streams[0]
	fourcc, ok := toFourCC(sc.PixelFormat)
	if !ok {
		return fmt.Errorf("unsupported pixel format %s", sc.PixelFormat)
	}

	got, err := c.dev.SetFormat(v4l2.PixFormat{Width: sc.Size.Width, Height: sc.Size.Height, PixelFormat: fourcc})
	if err != nil {
		if errors.Is(err, v4l2.ErrDeviceBusy) {
			return fmt.Errorf("%w: set format", platform.ErrBusy)
		}
		return fmt.Errorf("failed to set format: %w", err)
	}
	if got.PixelFormat != fourcc || got.Width != sc.Size.Width || got.Height != sc.Size.Height {
		return fmt.Errorf("driver applied %dx%d %s instead of %s %s",
			got.Width, got.Height, v4l2.FormatFourCC(got.PixelFormat), sc.Size, sc.PixelFormat)
	}
	if got.BytesPerLine != 0 {
		sc.Stride = got.BytesPerLine
	}
	if got.SizeImage != 0 {
		sc.FrameSize = got.SizeImage
	}

	c.stream = platform.NewStream(0)
	sc.SetStream(c.stream)
	c.applied = *sc
	c.configured = true
	c.logger.Debug("Camera configured", "size", sc.Size, "format", sc.PixelFormat, "stride", sc.Stride)
	return nil
}

// NewAllocator returns the buffer allocator for the configured stream.
func (c *Camera) NewAllocator() (platform.Allocator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return nil, errors.New("camera not configured")
	}
	if c.alloc != nil && !c.alloc.closed {
		return nil, fmt.Errorf("%w: allocator already open", platform.ErrBusy)
	}
	c.alloc = &allocator{cam: c}
	return c.alloc, nil
}

// CreateRequest returns an empty request.
func (c *Camera) CreateRequest(cookie uint64) (*platform.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return nil, errors.New("camera not configured")
	}
	return platform.NewRequest(cookie), nil
}

// QueueRequest hands the request's buffer to the driver.
func (c *Camera) QueueRequest(req *platform.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return platform.ErrNotStreaming
	}

	buf := req.Buffer(c.stream)
	if buf == nil {
		return fmt.Errorf("%w: no buffer for stream", platform.ErrInvalidRequest)
	}
	if _, busy := c.inflight[buf.Index()]; busy {
		return fmt.Errorf("%w: buffer %d", platform.ErrRequestInFlight, buf.Index())
	}
	if err := req.MarkQueued(); err != nil {
		return err
	}
	if err := c.dev.QueueBuffer(buf.Index()); err != nil {
		req.Finish(platform.RequestCancelled)
		return err
	}
	c.inflight[buf.Index()] = req

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return nil
}

// SetRequestCompleted installs or removes the completion callback.
func (c *Camera) SetRequestCompleted(fn platform.RequestCompletedFunc) {
	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
}

// Start turns streaming on and starts the dequeue goroutine.
func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return errors.New("camera not configured")
	}
	if c.running {
		return nil
	}
	if err := c.dev.StreamOn(); err != nil {
		return err
	}

	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.dispatch(c.dev, c.stop, c.done)
	c.logger.Debug("Streaming started")
	return nil
}

// Stop turns streaming off. Buffers still queued are returned unfilled and
// their requests complete as cancelled.
func (c *Camera) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	done := c.done
	dev := c.dev
	c.mu.Unlock()

	<-done
	err := dev.StreamOff()

	c.mu.Lock()
	pending := make([]*platform.Request, 0, len(c.inflight))
	for _, req := range c.inflight {
		pending = append(pending, req)
	}
	clear(c.inflight)
	cb := c.callback
	stream := c.stream
	c.mu.Unlock()

	slices.SortFunc(pending, func(a, b *platform.Request) int {
		return cmp.Compare(a.Cookie(), b.Cookie())
	})
	for _, req := range pending {
		if buf := req.Buffer(stream); buf != nil {
			buf.SetMetadata(platform.FrameMetadata{Status: platform.FrameCancelled, Timestamp: time.Now()})
		}
		if req.Finish(platform.RequestCancelled) && cb != nil {
			cb(req)
		}
	}

	c.logger.Debug("Streaming stopped", "cancelled", len(pending))
	return err
}

// dispatch waits for filled buffers and completes their requests. V4L2
// reports POLLERR while no buffer is queued, so it parks on kick instead of
// polling an empty queue.
func (c *Camera) dispatch(dev *v4l2.Device, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		c.mu.Lock()
		idle := len(c.inflight) == 0
		c.mu.Unlock()
		if idle {
			select {
			case <-stop:
				return
			case <-c.kick:
			}
			continue
		}

		ready, err := dev.WaitReadable(pollInterval)
		if err != nil {
			c.logger.Debug("Poll failed", "error", err)
			select {
			case <-stop:
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if !ready {
			continue
		}

		buf, err := dev.DequeueBuffer()
		if errors.Is(err, v4l2.ErrNoBuffer) {
			continue
		}
		if err != nil {
			c.logger.Warn("Failed to dequeue buffer", "error", err)
			continue
		}
		c.complete(buf)
	}
}

func (c *Camera) complete(buf v4l2.Buffer) {
	c.mu.Lock()
	req, ok := c.inflight[buf.Index]
	delete(c.inflight, buf.Index)
	cb := c.callback
	stream := c.stream
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("Dequeued buffer with no request", "index", buf.Index)
		return
	}

	status := platform.FrameSuccess
	if buf.Error {
		status = platform.FrameError
	}
	if fb := req.Buffer(stream); fb != nil {
		fb.SetMetadata(platform.FrameMetadata{
			Status:    status,
			Sequence:  buf.Sequence,
			Timestamp: buf.Timestamp,
			BytesUsed: int(buf.BytesUsed),
		})
	}
	if req.Finish(platform.RequestComplete) && cb != nil {
		cb(req)
	}
}

// allocator maps driver buffers for the single stream of a camera.
type allocator struct {
	cam     *Camera
	buffers []*platform.FrameBuffer
	mems    [][]byte
	closed  bool
}

func (a *allocator) Allocate(stream *platform.Stream) (int, error) {
	c := a.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.closed {
		return 0, errors.New("allocator closed")
	}
	if stream == nil || stream != c.stream {
		return 0, fmt.Errorf("%w: unknown stream", platform.ErrInvalidRequest)
	}
	if len(a.buffers) > 0 {
		return 0, fmt.Errorf("%w: stream already allocated", platform.ErrBusy)
	}

	n, err := c.dev.RequestBuffers(c.applied.BufferCount)
	if err != nil {
		if errors.Is(err, v4l2.ErrDeviceBusy) {
			return 0, fmt.Errorf("%w: request buffers", platform.ErrBusy)
		}
		return 0, fmt.Errorf("%w: %w", platform.ErrNoMemory, err)
	}
	if n == 0 {
		return 0, platform.ErrNoMemory
	}

	for i := 0; i < n; i++ {
		mem, err := c.dev.MapBuffer(i)
		if err != nil {
			a.release()
			return 0, fmt.Errorf("%w: %w", platform.ErrNoMemory, err)
		}
		a.mems = append(a.mems, mem)
		a.buffers = append(a.buffers, platform.NewFrameBuffer(i, mem))
	}

	if n != c.applied.BufferCount {
		c.logger.Debug("Driver adjusted buffer count", "requested", c.applied.BufferCount, "granted", n)
	}
	return n, nil
}

func (a *allocator) Buffers(stream *platform.Stream) []*platform.FrameBuffer {
	a.cam.mu.Lock()
	defer a.cam.mu.Unlock()
	if stream != a.cam.stream {
		return nil
	}
	return slices.Clone(a.buffers)
}

func (a *allocator) Free(stream *platform.Stream) error {
	a.cam.mu.Lock()
	defer a.cam.mu.Unlock()
	if stream != a.cam.stream {
		return fmt.Errorf("%w: unknown stream", platform.ErrInvalidRequest)
	}
	return a.release()
}

// release unmaps buffers and returns them to the driver. Caller holds
// cam.mu.
func (a *allocator) release() error {
	var errs []error
	for _, mem := range a.mems {
		if err := v4l2.UnmapBuffer(mem); err != nil {
			errs = append(errs, err)
		}
	}
	a.mems = nil
	a.buffers = nil

	if a.cam.dev != nil {
		if _, err := a.cam.dev.RequestBuffers(0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *allocator) Close() error {
	a.cam.mu.Lock()
	defer a.cam.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if len(a.buffers) > 0 {
		return a.release()
	}
	return nil
}
