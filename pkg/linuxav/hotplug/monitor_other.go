//go:build !linux

package hotplug

import "context"

// Monitor is unavailable on this platform.
type Monitor struct{}

// Open always fails with ErrUnsupported.
func Open(...string) (*Monitor, error) {
	return nil, ErrUnsupported
}

// Close does nothing.
func (m *Monitor) Close() error { return nil }

// Run always fails with ErrUnsupported.
func (m *Monitor) Run(context.Context, func(Event)) error {
	return ErrUnsupported
}
