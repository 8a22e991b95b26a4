// Package monitoring follows camera hotplug and keeps the camera list and
// event stream current.
package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/pkg/linuxav/hotplug"
)

// Refresher re-enumerates cameras. *camera.Manager implements it.
type Refresher interface {
	Refresh() ([]platform.CameraInfo, error)
}

// CameraWatcher rescans cameras when a video4linux node appears or
// disappears and publishes "added" and "removed" discovery events.
type CameraWatcher struct {
	refresher Refresher
	bus       *events.Bus
	logger    *slog.Logger
	// settle delays the rescan after an add so the kernel can finish
	// creating every node of the device.
	settle time.Duration
	// inUse reports the ID of the camera being captured from, if any.
	inUse func() string

	mu     sync.Mutex
	known  map[string]platform.CameraInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCameraWatcher starts from the cameras in initial. inUse may be nil.
func NewCameraWatcher(r Refresher, initial []platform.CameraInfo, inUse func() string, bus *events.Bus, logger *slog.Logger) *CameraWatcher {
	known := make(map[string]platform.CameraInfo, len(initial))
	for _, c := range initial {
		known[c.ID] = c
	}
	if inUse == nil {
		inUse = func() string { return "" }
	}
	return &CameraWatcher{
		refresher: r,
		bus:       bus,
		logger:    logger,
		settle:    time.Second,
		inUse:     inUse,
		known:     known,
	}
}

// Start opens the uevent socket and watches in the background. It returns
// hotplug.ErrUnsupported on platforms without uevents.
func (w *CameraWatcher) Start() error {
	mon, err := hotplug.Open(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer mon.Close()
		w.logger.Info("Camera hotplug monitoring started")
		err := mon.Run(ctx, func(ev hotplug.Event) { w.handle(ctx, ev) })
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Camera hotplug monitoring failed", "error", err)
		}
	}()
	return nil
}

// Stop ends monitoring and waits for the watch goroutine.
func (w *CameraWatcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *CameraWatcher) handle(ctx context.Context, ev hotplug.Event) {
	switch ev.Action {
	case hotplug.ActionAdd:
		w.logger.Debug("Video node added", "node", ev.Node())
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.settle):
		}
	case hotplug.ActionRemove:
		w.logger.Debug("Video node removed", "node", ev.Node())
	default:
		return
	}
	w.rescan()
}

// rescan diffs a fresh enumeration against the known cameras.
func (w *CameraWatcher) rescan() {
	cams, err := w.refresher.Refresh()
	if err != nil {
		w.logger.Warn("Failed to rescan cameras", "error", err)
		return
	}

	current := make(map[string]platform.CameraInfo, len(cams))
	for _, c := range cams {
		current[c.ID] = c
	}

	w.mu.Lock()
	previous := w.known
	w.known = current
	w.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	active := w.inUse()
	for id, c := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		if id == active {
			w.logger.Warn("Camera in use was unplugged", "device_id", id, "path", c.Path)
		} else {
			w.logger.Info("Camera removed", "device_id", id, "path", c.Path)
		}
		w.publish("removed", c, now)
	}
	for id, c := range current {
		if _, ok := previous[id]; ok {
			continue
		}
		w.logger.Info("Camera added", "device_id", id, "name", c.Name, "path", c.Path)
		w.publish("added", c, now)
	}
}

func (w *CameraWatcher) publish(action string, c platform.CameraInfo, ts string) {
	w.bus.Publish(events.DeviceDiscoveryEvent{
		DeviceID:  c.ID,
		Name:      c.Name,
		Path:      c.Path,
		Action:    action,
		Timestamp: ts,
	})
}
