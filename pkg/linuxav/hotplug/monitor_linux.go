//go:build linux

package hotplug

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long Run takes to notice a cancelled context.
const pollInterval = 500

// Monitor reads uevents from the kernel broadcast group.
type Monitor struct {
	fd         int
	subsystems []string
}

// Open binds a uevent socket. Only events from the given subsystems are
// delivered; none means all.
func Open(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("uevent socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}
	return &Monitor{fd: fd, subsystems: subsystems}, nil
}

// Close releases the socket. Run must have returned.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

func (m *Monitor) accept(ev Event) bool {
	return len(m.subsystems) == 0 || slices.Contains(m.subsystems, ev.Subsystem)
}

// Run calls fn for every accepted event until ctx ends. fn runs on the
// calling goroutine.
func (m *Monitor) Run(ctx context.Context, fn func(Event)) error {
	buf := make([]byte, 8192)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll uevent socket: %w", err)
		}
		if n == 0 {
			continue
		}

		size, _, err := unix.Recvfrom(m.fd, buf, unix.MSG_DONTWAIT)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			// ENOBUFS means the kernel dropped events; later ones still arrive.
			if errors.Is(err, unix.ENOBUFS) {
				continue
			}
			return fmt.Errorf("read uevent: %w", err)
		}

		if ev, ok := Parse(buf[:size]); ok && m.accept(ev) {
			fn(ev)
		}
	}
}
