// Package v4l2cam implements the platform interfaces on Linux V4L2 capture
// nodes using memory-mapped streaming I/O. Each capture node is one camera
// with a single stream.
//
// Completion is driven by a per-camera goroutine that polls the node and
// dequeues filled buffers while the camera is running.
package v4l2cam
