//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open V4L2 capture node using memory-mapped streaming I/O.
// Methods are not safe for concurrent use except DequeueBuffer and
// WaitReadable, which may run on a separate goroutine while the owner
// queues buffers.
type Device struct {
	path string
	fd   int
	caps v4l2Capability
}

// Open opens a capture node and verifies it supports streaming capture.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	d := &Device{path: path, fd: fd}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&d.caps)); err != nil {
		closeFD(fd)
		return nil, fmt.Errorf("failed to query capabilities of %s: %w", path, err)
	}

	caps := d.caps.capabilities
	if caps&capDeviceCaps != 0 {
		caps = d.caps.deviceCaps
	}
	if caps&capVideoCapture == 0 || caps&capStreaming == 0 {
		closeFD(fd)
		return nil, fmt.Errorf("%s: %w", path, ErrNotCaptureDevice)
	}

	return d, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Name returns the card name reported by the driver.
func (d *Device) Name() string {
	return cstr(d.caps.card[:])
}

// Close closes the file descriptor. Mapped buffers must be unmapped first.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := closeFD(d.fd)
	d.fd = -1
	return err
}

// ClaimPriority takes V4L2_PRIORITY_RECORD on this handle, which makes other
// handles unable to change the device configuration. Drivers without priority
// support are treated as claimable.
func (d *Device) ClaimPriority() error {
	prio := uint32(priorityRecord)
	err := ioctl(d.fd, vidiocSPriority, unsafe.Pointer(&prio))
	switch {
	case err == nil, errors.Is(err, unix.ENOTTY), errors.Is(err, unix.EINVAL):
		return nil
	case errors.Is(err, unix.EBUSY):
		return ErrDeviceBusy
	default:
		return fmt.Errorf("failed to set priority: %w", err)
	}
}

// Formats enumerates the capture formats of the open device.
func (d *Device) Formats() ([]FormatInfo, error) {
	return enumFormats(d.fd)
}

// Resolutions enumerates frame sizes of the open device for a pixel format.
func (d *Device) Resolutions(pixelFormat uint32) ([]Resolution, error) {
	return enumResolutions(d.fd, pixelFormat)
}

// TryFormat asks the driver which format it would apply for the request
// without changing device state.
func (d *Device) TryFormat(want PixFormat) (PixFormat, error) {
	return d.exchangeFormat(vidiocTryFmt, want)
}

// SetFormat applies a format. The driver may adjust every field; the
// returned value is what was actually applied.
func (d *Device) SetFormat(want PixFormat) (PixFormat, error) {
	got, err := d.exchangeFormat(vidiocSFmt, want)
	if errors.Is(err, unix.EBUSY) {
		return got, ErrDeviceBusy
	}
	return got, err
}

// GetFormat returns the currently applied format.
func (d *Device) GetFormat() (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	return fromPix(f.pix()), nil
}

func (d *Device) exchangeFormat(req uint, want PixFormat) (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	pix := f.pix()
	pix.width = want.Width
	pix.height = want.Height
	pix.pixelformat = want.PixelFormat
	pix.field = fieldAny

	if err := ioctl(d.fd, req, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPix(pix), nil
}

func fromPix(pix *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        pix.width,
		Height:       pix.height,
		PixelFormat:  pix.pixelformat,
		BytesPerLine: pix.bytesperline,
		SizeImage:    pix.sizeimage,
	}
}

// RequestBuffers asks the driver for count mmap buffers and returns how many
// were granted. A count of zero releases all driver buffers.
func (d *Device) RequestBuffers(count int) (int, error) {
	req := v4l2RequestBuffers{
		count:  uint32(count),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		if errors.Is(err, unix.EBUSY) {
			return 0, ErrDeviceBusy
		}
		return 0, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	return int(req.count), nil
}

// MapBuffer maps driver buffer index into the process address space.
func (d *Device) MapBuffer(index int) ([]byte, error) {
	buf := v4l2Buffer{
		index:  uint32(index),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", index, err)
	}

	mem, err := unix.Mmap(d.fd, int64(buf.offset()), int(buf.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", index, err)
	}
	return mem, nil
}

// UnmapBuffer releases a mapping returned by MapBuffer.
func UnmapBuffer(mem []byte) error {
	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}

// QueueBuffer hands buffer index to the driver for filling.
func (d *Device) QueueBuffer(index int) error {
	buf := v4l2Buffer{
		index:  uint32(index),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// DequeueBuffer takes the next filled buffer from the driver. It returns
// ErrNoBuffer when nothing is ready.
func (d *Device) DequeueBuffer() (Buffer, error) {
	buf := v4l2Buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return Buffer{}, ErrNoBuffer
		}
		return Buffer{}, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}

	return Buffer{
		Index:     int(buf.index),
		BytesUsed: buf.bytesused,
		Sequence:  buf.sequence,
		Timestamp: time.Unix(buf.timestamp.Sec, buf.timestamp.Usec*1000),
		Error:     buf.flags&bufFlagError != 0,
	}, nil
}

// StreamOn starts the capture queue.
func (d *Device) StreamOn() error {
	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	return nil
}

// StreamOff stops the capture queue. All queued buffers are returned to
// userspace ownership without being filled.
func (d *Device) StreamOff() error {
	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	return nil
}

// WaitReadable blocks until a filled buffer can be dequeued or the timeout
// expires.
func (d *Device) WaitReadable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && fds[0].Revents&unix.POLLIN == 0 {
			return false, fmt.Errorf("poll: device error (revents 0x%x)", fds[0].Revents)
		}
		return true, nil
	}
}
