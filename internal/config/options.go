package config

import (
	"fmt"
	"time"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/platform"
)

// Options is the flat option set shared by every command. Field names map
// to kebab-case flags, toml tags to config keys and env tags to SNAPCAM_*
// variables.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"snapcam.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CameraDeviceID    string `help:"Camera ID or device path; empty selects the first camera" default:"" toml:"camera.device_id" env:"CAMERA_DEVICE_ID"`
	CameraWidth       int    `help:"Requested frame width" default:"480" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight      int    `help:"Requested frame height" default:"480" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraPixelFormat string `help:"Requested pixel format (BGR888, RGB888, YUYV, NV12, MJPEG)" default:"BGR888" toml:"camera.pixel_format" env:"CAMERA_PIXEL_FORMAT"`
	CameraRole        string `help:"Preferred stream role (video, viewfinder, still, raw)" default:"video" toml:"camera.role" env:"CAMERA_ROLE"`
	CameraBufferCount int    `help:"Requested buffer count" default:"4" toml:"camera.buffer_count" env:"CAMERA_BUFFER_COUNT"`
	CameraStrict      bool   `help:"Fail when the device adjusts the requested format" default:"false" toml:"camera.strict_format" env:"CAMERA_STRICT_FORMAT"`

	// Capture settings
	CaptureTimeoutMs  int `help:"Capture cycle timeout in milliseconds" default:"1000" toml:"capture.timeout_ms" env:"CAPTURE_TIMEOUT_MS"`
	CaptureCycles     int `help:"Cycles to run; 0 runs until interrupted" default:"1" toml:"capture.cycles" env:"CAPTURE_CYCLES"`
	CaptureIntervalMs int `help:"Background capture interval in serve mode; 0 captures on request only" default:"0" toml:"capture.interval_ms" env:"CAPTURE_INTERVAL_MS"`

	// Messaging settings
	NatsURL      string `help:"NATS server to publish capture events to; empty disables" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `help:"Run an embedded NATS server on loopback" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Features settings
	FeaturesLEDControl bool   `help:"Drive a board LED from the camera state" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDName    string `help:"LED to drive; empty uses the first one found" default:"" toml:"features.led_name" env:"FEATURES_LED_NAME"`
	FeaturesHotplug    bool   `help:"Watch for cameras being plugged and unplugged" default:"true" toml:"features.hotplug_enabled" env:"FEATURES_HOTPLUG"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile     string `help:"Also write logs to this file, rotated by size" default:"" toml:"logging.file.path" env:"LOGGING_FILE"`
	LoggingCamera   string `help:"Camera logging level" default:"" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingPlatform string `help:"Platform (V4L2) logging level" default:"" toml:"logging.platform" env:"LOGGING_PLATFORM"`
	LoggingAPI      string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// StreamConfig converts the camera options into a capture request.
func (o *Options) StreamConfig() (camera.StreamConfig, error) {
	sc := camera.DefaultStreamConfig()

	if o.CameraWidth < 0 || o.CameraHeight < 0 || o.CameraBufferCount < 0 {
		return sc, fmt.Errorf("camera dimensions and buffer count must not be negative")
	}
	if o.CameraWidth > 0 {
		sc.Width = uint32(o.CameraWidth)
	}
	if o.CameraHeight > 0 {
		sc.Height = uint32(o.CameraHeight)
	}
	if o.CameraBufferCount > 0 {
		sc.BufferCount = o.CameraBufferCount
	}
	if o.CameraPixelFormat != "" {
		f, err := platform.ParsePixelFormat(o.CameraPixelFormat)
		if err != nil {
			return sc, err
		}
		sc.PixelFormat = f
	}
	if o.CameraRole != "" {
		r, err := platform.ParseStreamRole(o.CameraRole)
		if err != nil {
			return sc, err
		}
		sc.Role = r
	}
	return sc, nil
}

// CaptureTimeout returns the cycle wait bound.
func (o *Options) CaptureTimeout() time.Duration {
	if o.CaptureTimeoutMs <= 0 {
		return camera.DefaultTimeout
	}
	return time.Duration(o.CaptureTimeoutMs) * time.Millisecond
}

// CaptureInterval returns the background capture period, zero when
// disabled.
func (o *Options) CaptureInterval() time.Duration {
	if o.CaptureIntervalMs <= 0 {
		return 0
	}
	return time.Duration(o.CaptureIntervalMs) * time.Millisecond
}

// LoggingConfig builds the logging configuration. Empty module levels
// follow the global level.
func (o *Options) LoggingConfig() logging.Config {
	cfg := logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: make(map[string]string),
	}
	if o.LoggingFile != "" {
		cfg.File = logging.FileConfig{Path: o.LoggingFile, MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 14}
	}
	for module, level := range map[string]string{
		"camera":   o.LoggingCamera,
		"platform": o.LoggingPlatform,
		"api":      o.LoggingAPI,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}
