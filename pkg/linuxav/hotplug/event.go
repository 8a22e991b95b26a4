// Package hotplug reports kernel device add and remove events read from
// the netlink uevent socket, without udev or cgo.
package hotplug

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

// Kernel uevent actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// SubsystemVideo4Linux is the subsystem of V4L2 device nodes.
const SubsystemVideo4Linux = "video4linux"

// ErrUnsupported is returned on platforms without netlink uevents.
var ErrUnsupported = errors.New("hotplug monitoring not supported on this platform")

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevName   string
	Env       map[string]string
}

// Node returns the /dev path of the device, or "" when the event names no
// device node.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return path.Join("/dev", e.DevName)
}

// Parse decodes a kernel uevent of the form "ACTION@KOBJ\0KEY=VALUE\0...".
// Messages rebroadcast by udevd start with "libudev" and are rejected.
func Parse(data []byte) (Event, bool) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return Event{}, false
	}

	fields := bytes.Split(data, []byte{0})
	action, kobj, ok := strings.Cut(string(fields[0]), "@")
	if !ok || action == "" {
		return Event{}, false
	}

	ev := Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(string(f), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev, true
}
