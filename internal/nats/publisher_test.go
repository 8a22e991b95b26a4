package nats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(ServerOptions{Port: -1, Logger: discardLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Server.Start() error = %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func subscribe(t *testing.T, url, subject string) <-chan *nats.Msg {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	ch := make(chan *nats.Msg, 8)
	if _, err := nc.ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return ch
}

type stubCapturer struct {
	res *capture.Result
	err error
}

func (s stubCapturer) Capture(context.Context) (*capture.Result, error) {
	return s.res, s.err
}

func TestDeviceSubject(t *testing.T) {
	tests := []struct {
		id, kind, want string
	}{
		{"usb-046d_0825-video-index0", "frames", "snapcam.devices.usb-046d_0825-video-index0.frames"},
		{"platform-fe801000.csi-video-index0", "state", "snapcam.devices.platform-fe801000_csi-video-index0.state"},
		{"cam *>", "errors", "snapcam.devices.cam___.errors"},
		{"", "errors", "snapcam.devices.unknown.errors"},
	}
	for _, tt := range tests {
		if got := DeviceSubject(tt.id, tt.kind); got != tt.want {
			t.Errorf("DeviceSubject(%q, %q) = %q, want %q", tt.id, tt.kind, got, tt.want)
		}
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(ServerOptions{Port: -1, Logger: discardLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Running() {
		t.Error("server not running after Start")
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() succeeded")
	}
	s.Stop()
	if s.Running() {
		t.Error("server running after Stop")
	}
	s.Stop()
}

func TestPublisherForwardsEvents(t *testing.T) {
	srv := startServer(t)
	frames := subscribe(t, srv.ClientURL(), SubjectDevicesPrefix+".*.frames")

	bus := events.New()
	p := NewPublisher(srv.ClientURL(), bus, nil, discardLogger())
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()
	if !p.Connected() {
		t.Fatal("publisher not connected")
	}

	bus.Publish(events.FrameCapturedEvent{DeviceID: "cam0", Cycle: 7, Sequence: 99, BytesUsed: 691200})

	select {
	case msg := <-frames:
		if msg.Subject != "snapcam.devices.cam0.frames" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var got events.FrameCapturedEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got.Cycle != 7 || got.Sequence != 99 {
			t.Errorf("payload = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame event not published")
	}
}

func TestPublisherServesCapture(t *testing.T) {
	srv := startServer(t)

	tests := []struct {
		name      string
		capturer  stubCapturer
		wantCycle uint64
		wantErr   string
	}{
		{
			name:      "delivered",
			capturer:  stubCapturer{res: &capture.Result{Cycle: 3, Outcome: "delivered"}},
			wantCycle: 3,
		},
		{
			name:     "unavailable",
			capturer: stubCapturer{err: capture.ErrUnavailable},
			wantErr:  capture.ErrUnavailable.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(srv.ClientURL(), events.New(), tt.capturer, discardLogger())
			if err := p.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer p.Stop()

			nc, err := nats.Connect(srv.ClientURL())
			if err != nil {
				t.Fatal(err)
			}
			defer nc.Close()

			msg, err := nc.Request(SubjectControlCapture, nil, 2*time.Second)
			if err != nil {
				t.Fatalf("Request() error = %v", err)
			}
			var reply CaptureReply
			if err := json.Unmarshal(msg.Data, &reply); err != nil {
				t.Fatalf("reply: %v", err)
			}
			if reply.Error != tt.wantErr {
				t.Errorf("Error = %q, want %q", reply.Error, tt.wantErr)
			}
			if tt.wantErr == "" && (reply.Result == nil || reply.Result.Cycle != tt.wantCycle) {
				t.Errorf("Result = %+v", reply.Result)
			}
		})
	}
}

func TestPublisherWithoutServer(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:1", events.New(), nil, discardLogger())
	err := p.Start()
	if err == nil {
		t.Fatal("Start() succeeded without a server")
	}
	if !errors.Is(err, nats.ErrNoServers) {
		t.Logf("Start() error = %v", err)
	}
	if p.Connected() {
		t.Error("Connected() without a server")
	}
	p.Stop()
}
