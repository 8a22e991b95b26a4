package systemd

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

type recorder struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return r.err == nil, r.err
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func newTestNotifier(rec *recorder, watchdog time.Duration) *Notifier {
	return &Notifier{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify:   rec.notify,
		watchdog: func() (time.Duration, error) { return watchdog, nil },
	}
}

func TestReadyAndStopping(t *testing.T) {
	rec := &recorder{}
	n := newTestNotifier(rec, 0)

	n.Ready()
	n.Status("capturing from cam0")
	n.Stopping()

	want := []string{daemon.SdNotifyReady, "STATUS=capturing from cam0", daemon.SdNotifyStopping}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestWatchdogKeepalive(t *testing.T) {
	rec := &recorder{}
	n := newTestNotifier(rec, 20*time.Millisecond)

	n.Ready()
	deadline := time.Now().Add(time.Second)
	for rec.count(daemon.SdNotifyWatchdog) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no watchdog pings sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	n.Stopping()

	after := rec.count(daemon.SdNotifyWatchdog)
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(daemon.SdNotifyWatchdog); got != after {
		t.Errorf("pings after Stopping = %d, want none", got-after)
	}
}

func TestNotifyErrorsAreNotFatal(t *testing.T) {
	rec := &recorder{err: errors.New("socket gone")}
	n := newTestNotifier(rec, 0)

	n.Ready()
	n.Stopping()

	if got := len(rec.snapshot()); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}
