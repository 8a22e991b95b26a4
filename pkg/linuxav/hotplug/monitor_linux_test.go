//go:build linux

package hotplug

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMonitorAccept(t *testing.T) {
	all := &Monitor{}
	if !all.accept(Event{Subsystem: "usb"}) {
		t.Error("monitor without filters rejected an event")
	}

	video := &Monitor{subsystems: []string{SubsystemVideo4Linux}}
	if !video.accept(Event{Subsystem: SubsystemVideo4Linux}) {
		t.Error("video4linux event rejected")
	}
	if video.accept(Event{Subsystem: "sound"}) {
		t.Error("sound event accepted")
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	m, err := Open(SubsystemVideo4Linux)
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Run(ctx, func(Event) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() took %v to stop", elapsed)
	}
}
