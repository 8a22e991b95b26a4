package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/snapcam/cmd"
	"github.com/smazurov/snapcam/internal/api"
	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/config"
	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/led"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/monitoring"
	"github.com/smazurov/snapcam/internal/nats"
	"github.com/smazurov/snapcam/internal/platform/v4l2cam"
	"github.com/smazurov/snapcam/internal/systemd"
	"github.com/smazurov/snapcam/internal/version"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		if err := config.LoadDotEnv(); err != nil {
			slog.Warn("Failed to load .env", "error", err)
		}
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Warn("Failed to load config", "error", err)
		}

		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		var logSeq atomic.Uint64
		logging.SetLogCallback(func(e logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		})

		var (
			mgr      *camera.Manager
			pipeline *camera.Pipeline
			svc      *capture.Service
			server   *api.Server
			watcher  *config.Watcher[config.Runtime]
			hotplug  *monitoring.CameraWatcher
			natsSrv  *nats.Server
			natsPub  *nats.Publisher
			ledInd   *led.Indicator
		)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		hooks.OnStart(func() {
			logger.Info("Starting", "version", version.Banner())

			// Subscribers go first so they see the camera coming up.
			if opts.FeaturesLEDControl {
				ledLogger := logging.GetLogger("led")
				ledInd = led.NewIndicator(led.New(ledLogger), opts.FeaturesLEDName, eventBus, ledLogger)
				ledInd.Start()
			}

			mgr = camera.NewManager(v4l2cam.New(logging.GetLogger("platform")), logging.GetLogger("camera"), eventBus)
			if err := mgr.Start(context.Background()); err != nil {
				logger.Warn("Camera subsystem unavailable, serving without a camera", "error", err)
			} else {
				pipeline = openPipeline(mgr, opts, eventBus, logger)
			}

			svc = capture.NewService(pipeline, logging.GetLogger("capture"))
			if interval := opts.CaptureInterval(); interval > 0 && svc.Available() {
				if err := svc.StartLoop(interval); err != nil {
					logger.Warn("Failed to start capture loop", "error", err)
				}
			}

			if mgr.Started() && opts.FeaturesHotplug {
				hotplug = monitoring.NewCameraWatcher(mgr, mgr.Cameras(), func() string {
					return svc.Status().DeviceID
				}, eventBus, logging.GetLogger("monitoring"))
				if err := hotplug.Start(); err != nil {
					logger.Warn("Camera hotplug monitoring disabled", "error", err)
					hotplug = nil
				}
			}

			natsSrv, natsPub = startNATS(opts, eventBus, svc, logger)

			apiOpts := &api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				EventBus:          eventBus,
				Capture:           svc,
				PrometheusHandler: promhttp.Handler(),
			}
			if mgr.Started() {
				apiOpts.Cameras = mgr
			}
			server = api.NewServer(apiOpts)

			watcher = config.NewConfigWatcher(opts.Config, config.LoadRuntime, logging.GetLogger("config"))
			watcher.OnReload(func(rt config.Runtime) {
				logging.SetLevels(rt.Logging.Level, rt.Logging.Modules)
				svc.SetTimeout(rt.CaptureTimeout)
				logger.Info("Configuration reloaded", "level", rt.Logging.Level, "capture_timeout", rt.CaptureTimeout)
			})
			if err := watcher.Start(); err != nil {
				logger.Warn("Config hot reload disabled", "config", opts.Config, "error", err)
			}

			notifier.Ready()
			if st := svc.Status(); st.Available {
				notifier.Status("capturing from " + st.Name)
			} else {
				notifier.Status("no camera")
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if err := server.Start(opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()

			if server != nil {
				if err := server.Stop(); err != nil {
					logger.Error("Error stopping HTTP server", "error", err)
				}
			}
			if watcher != nil {
				if err := watcher.Stop(); err != nil {
					logger.Warn("Error stopping config watcher", "error", err)
				}
			}
			if hotplug != nil {
				hotplug.Stop()
			}
			// The camera must be released before the manager stops.
			if svc != nil {
				if err := svc.Close(); err != nil {
					logger.Error("Error closing camera", "error", err)
				}
			}
			if mgr != nil {
				if err := mgr.Stop(); err != nil {
					logger.Error("Error stopping camera manager", "error", err)
				}
			}
			if natsPub != nil {
				natsPub.Stop()
			}
			if natsSrv != nil {
				natsSrv.Stop()
			}
			if ledInd != nil {
				ledInd.Stop()
			}
			if err := logging.Shutdown(); err != nil {
				slog.Error("Error closing log file", "error", err)
			}
		})
	})

	cli.Root().Use = "snapcam"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateCaptureCmd())
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

// openPipeline opens the configured camera. Failures are logged and leave
// the server running without a camera.
func openPipeline(mgr *camera.Manager, opts *config.Options, bus *events.Bus, logger *slog.Logger) *camera.Pipeline {
	stream, err := opts.StreamConfig()
	if err != nil {
		logger.Error("Invalid camera configuration", "error", err)
		return nil
	}

	p, err := camera.Open(context.Background(), mgr, camera.Options{
		Selector: camera.ByID(opts.CameraDeviceID),
		Stream:   stream,
		Strict:   opts.CameraStrict,
		Timeout:  opts.CaptureTimeout(),
		Handler:  camera.NewEventHandler(bus, logging.GetLogger("camera")),
		Start:    true,
	})
	if err != nil {
		// Open already logged and published the failure.
		return nil
	}
	logger.Info("Camera ready",
		"device_id", p.Handle.Info().ID,
		"width", p.Applied.Width,
		"height", p.Applied.Height,
		"pixel_format", p.Applied.PixelFormat,
		"buffers", p.Handle.Buffers())
	return p
}

// startNATS starts the embedded server when asked and connects a publisher
// when there is a server to talk to. NATS problems never stop the service.
func startNATS(opts *config.Options, bus *events.Bus, svc *capture.Service, logger *slog.Logger) (*nats.Server, *nats.Publisher) {
	natsLogger := logging.GetLogger("nats")
	url := opts.NatsURL

	var srv *nats.Server
	if opts.NatsEmbedded {
		s := nats.NewServer(nats.ServerOptions{Port: opts.NatsPort, Logger: natsLogger})
		if err := s.Start(); err != nil {
			logger.Warn("Embedded NATS server failed to start", "error", err)
		} else {
			srv = s
			if url == "" {
				url = s.ClientURL()
			}
		}
	}
	if url == "" {
		return srv, nil
	}

	pub := nats.NewPublisher(url, bus, svc, natsLogger)
	if err := pub.Start(); err != nil {
		logger.Warn("Running without NATS", "url", url, "error", err)
		return srv, nil
	}
	return srv, pub
}
