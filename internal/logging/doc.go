// Package logging provides structured logging with per-module levels.
//
// Records go to stdout, to the systemd journal when journald is reachable,
// to a size-rotated file when one is configured, and to an in-memory
// buffer served by the HTTP API.
//
// Initialize once at startup, then take a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		File:   logging.FileConfig{Path: "/var/log/snapcam.log", MaxSizeMB: 10},
//		Modules: map[string]string{
//			"camera": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Capture started", "device", id)
//
// Levels can be changed at runtime with SetLevels; loggers already handed
// out follow the change.
//
// Journal entries carry SYSLOG_IDENTIFIER=snapcam, so
//
//	journalctl -t snapcam MODULE=camera
//
// shows one module's output.
package logging
