// Package camera drives a single camera through acquire, configure,
// allocate and capture.
//
// A Manager owns a started platform.Subsystem. A Handle holds one device and
// enforces the Available -> Acquired -> Configured -> Running state machine.
// A Controller runs capture cycles on a handle: it submits the pooled
// requests and waits, bounded by a timeout, for the completion callback to
// hand one frame back through a single-slot mailbox.
//
// Open wires all of this together and tears it down again on failure.
package camera
