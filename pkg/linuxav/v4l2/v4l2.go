//go:build linux && (amd64 || arm64)

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// 64-bit Linux targets (amd64, arm64).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Query supported formats and resolutions:
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	}
//
// # Streaming
//
// Open a device, negotiate a format, map buffers and exchange them with the
// driver:
//
//	dev, err := v4l2.Open("/dev/video0")
//	applied, err := dev.SetFormat(v4l2.PixFormat{Width: 640, Height: 480, PixelFormat: v4l2.PixFmtYUYV})
//	count, err := dev.RequestBuffers(4)
//	for i := 0; i < count; i++ {
//	    mem, _ := dev.MapBuffer(i)
//	    _ = dev.QueueBuffer(i)
//	}
//	_ = dev.StreamOn()
//	if ready, _ := dev.WaitReadable(time.Second); ready {
//	    buf, _ := dev.DequeueBuffer()
//	}
package v4l2
