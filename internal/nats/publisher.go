package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/events"
)

// captureRequestTimeout bounds a capture run on behalf of a NATS request.
const captureRequestTimeout = 30 * time.Second

// Capturer runs one capture cycle.
type Capturer interface {
	Capture(ctx context.Context) (*capture.Result, error)
}

// CaptureReply answers a request on SubjectControlCapture.
type CaptureReply struct {
	Result *capture.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Publisher forwards event bus traffic to NATS and serves capture
// requests.
type Publisher struct {
	url      string
	bus      *events.Bus
	capturer Capturer
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	sub    *nats.Subscription
	unsubs []func()
}

// NewPublisher creates a publisher for url. capturer may be nil, in which
// case no control subject is served.
func NewPublisher(url string, bus *events.Bus, capturer Capturer, logger *slog.Logger) *Publisher {
	return &Publisher{
		url:      url,
		bus:      bus,
		capturer: capturer,
		logger:   logger.With("component", "nats-publisher"),
	}
}

// Start connects and begins forwarding. A failed connect leaves the
// publisher stopped; the caller decides whether that matters.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := nats.Connect(p.url,
		nats.Name("snapcam"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return err
	}
	p.conn = conn

	if p.capturer != nil {
		sub, err := conn.Subscribe(SubjectControlCapture, p.handleCapture)
		if err != nil {
			conn.Close()
			p.conn = nil
			return err
		}
		p.sub = sub
	}

	p.unsubs = []func(){
		p.bus.Subscribe(func(e events.DeviceStateChangedEvent) { p.publish(DeviceSubject(e.DeviceID, "state"), e) }),
		p.bus.Subscribe(func(e events.FrameCapturedEvent) { p.publish(DeviceSubject(e.DeviceID, "frames"), e) }),
		p.bus.Subscribe(func(e events.CaptureTimeoutEvent) { p.publish(DeviceSubject(e.DeviceID, "timeouts"), e) }),
		p.bus.Subscribe(func(e events.CaptureCancelledEvent) { p.publish(DeviceSubject(e.DeviceID, "cancelled"), e) }),
		p.bus.Subscribe(func(e events.CaptureErrorEvent) { p.publish(DeviceSubject(e.DeviceID, "errors"), e) }),
		p.bus.Subscribe(func(e events.DeviceDiscoveryEvent) { p.publish(DeviceSubject(e.DeviceID, "discovery"), e) }),
	}

	p.logger.Info("NATS publisher connected", "url", conn.ConnectedUrlRedacted())
	return nil
}

func (p *Publisher) publish(subject string, v any) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Debug("Failed to publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) handleCapture(msg *nats.Msg) {
	if msg.Reply == "" {
		p.logger.Debug("Ignoring capture request without reply subject")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureRequestTimeout)
	defer cancel()

	var reply CaptureReply
	res, err := p.capturer.Capture(ctx)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Result = res
	}

	data, err := json.Marshal(reply)
	if err != nil {
		p.logger.Warn("Failed to marshal capture reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		p.logger.Warn("Failed to answer capture request", "error", err)
	}
}

// Connected reports whether the connection is currently up.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && p.conn.IsConnected()
}

// Stop unsubscribes from the bus, flushes pending messages and closes the
// connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	unsubs := p.unsubs
	p.unsubs = nil
	conn, sub := p.conn, p.sub
	p.conn, p.sub = nil, nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if sub != nil {
		_ = sub.Unsubscribe()
	}
	if conn != nil {
		if err := conn.Flush(); err != nil {
			p.logger.Debug("Failed to flush NATS connection", "error", err)
		}
		conn.Close()
		p.logger.Info("NATS publisher stopped")
	}
}
