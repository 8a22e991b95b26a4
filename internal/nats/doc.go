// Package nats mirrors capture events onto NATS subjects and accepts
// capture requests over request/reply, optionally from an embedded server.
//
// # Subject Hierarchy
//
//	snapcam.devices.{device}.state     # handle state changes
//	snapcam.devices.{device}.frames    # delivered frame metadata
//	snapcam.devices.{device}.timeouts  # cycles that saw no frame in time
//	snapcam.devices.{device}.cancelled # requests cancelled by the device
//	snapcam.devices.{device}.errors    # setup and cycle failures
//	snapcam.devices.{device}.discovery # found, selected, added, removed
//	snapcam.control.capture            # request: run one cycle, reply: result
//
// {device} is the stable device ID with characters NATS treats specially
// replaced by underscores. Payloads are the JSON form of the matching
// event type. Publishing is fire-and-forget (core NATS, no JetStream) and
// the publisher keeps reconnecting when the server goes away.
//
// # Debugging with nats CLI
//
// Watch everything a running snapcam publishes:
//
//	nats sub "snapcam.>"
//
// Trigger a capture and print the result:
//
//	nats request snapcam.control.capture ""
package nats
