package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/snapcam/internal/api/models"
	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/internal/version"
)

// CameraDirectory lists cameras and their capabilities.
type CameraDirectory interface {
	Cameras() []platform.CameraInfo
	Describe(id string) ([]platform.FormatCaps, error)
}

// CaptureService runs capture cycles on the open camera.
type CaptureService interface {
	Status() capture.Status
	Capture(ctx context.Context) (*capture.Result, error)
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	EventBus     *events.Bus
	Cameras      CameraDirectory
	Capture      CaptureService
	// PrometheusHandler serves /metrics when set.
	PrometheusHandler http.Handler
}

// Server is the HTTP control surface.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// basicAuthMiddleware checks credentials on operations that declare a
// security requirement. SSE clients that cannot set headers may pass the
// base64 credentials in the auth query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	deny := func(ctx huma.Context, msg string, errs ...error) {
		ctx.SetHeader("WWW-Authenticate", `Basic realm="snapcam"`)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ctx.Query("auth")
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				deny(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		}
		if encoded == "" {
			deny(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			deny(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			deny(ctx, "Invalid credentials format")
			return
		}
		if subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			deny(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// NewServer builds the API on a Go 1.22 ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("snapcam API", version.String())
	config.Info.Description = "Single-camera capture control for V4L2 devices"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: bus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop. It returns http.ErrServerClosed after a
// clean stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting snapcam API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and open connections, including SSE streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}
		if s.options.Capture != nil {
			resp.Body.Camera = s.options.Capture.Status().Available
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerCameraRoutes()
	s.registerMetricsRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
