// Package systemd reports service readiness and liveness to the service
// manager. Every call is a no-op when the process was not started by
// systemd with NOTIFY_SOCKET set.
package systemd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
	notify func(unsetEnv bool, state string) (bool, error)
	// watchdog returns the configured WatchdogSec, or zero.
	watchdog func() (time.Duration, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a notifier that talks to the socket in NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: daemon.SdNotify,
		watchdog: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

func (n *Notifier) send(state string) bool {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "state", state, "error", err)
		return false
	}
	return sent
}

// Ready reports that startup finished and starts the watchdog keepalive
// when WatchdogSec is configured.
func (n *Notifier) Ready() {
	if n.send(daemon.SdNotifyReady) {
		n.logger.Info("Notified systemd: ready")
	}
	n.startWatchdog()
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) {
	n.send("STATUS=" + msg)
}

// Stopping reports that shutdown began and stops the watchdog keepalive.
func (n *Notifier) Stopping() {
	n.stopWatchdog()
	if n.send(daemon.SdNotifyStopping) {
		n.logger.Info("Notified systemd: stopping")
	}
}

func (n *Notifier) startWatchdog() {
	interval, err := n.watchdog()
	if err != nil {
		n.logger.Warn("Invalid systemd watchdog settings", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	// systemd recommends pinging at half the timeout.
	go n.keepalive(ctx, interval/2, n.done)
	n.logger.Debug("Systemd watchdog enabled", "interval", interval)
}

func (n *Notifier) keepalive(ctx context.Context, every time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) stopWatchdog() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
