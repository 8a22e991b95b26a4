package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ServerOptions configures the embedded NATS server. Port -1 picks a free
// port.
type ServerOptions struct {
	Host   string
	Port   int
	Logger *slog.Logger
}

// Server is an embedded NATS server for installations without one.
type Server struct {
	opts   ServerOptions
	ns     *server.Server
	logger *slog.Logger
}

// NewServer creates an embedded server. It listens on loopback port 4222
// unless told otherwise.
func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = server.DEFAULT_PORT
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", "nats-server")}
}

// Start runs the server and waits until it accepts clients.
func (s *Server) Start() error {
	if s.ns != nil {
		return errors.New("NATS server already running")
	}

	ns, err := server.NewServer(&server.Options{
		Host:       s.opts.Host,
		Port:       s.opts.Port,
		ServerName: "snapcam",
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 64 * 1024,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return errors.New("NATS server not ready within 5s")
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", ns.ClientURL())
	return nil
}

// Stop shuts the server down and waits for it.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
	s.logger.Info("NATS server stopped")
}

// ClientURL is the URL publishers should connect to.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
	}
	return s.ns.ClientURL()
}

// Running reports whether the server accepts clients.
func (s *Server) Running() bool {
	return s.ns != nil && s.ns.Running()
}
