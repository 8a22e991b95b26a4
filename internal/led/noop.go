package led

import "log/slog"

type noop struct {
	logger *slog.Logger
}

func (n noop) Set(name string, p Pattern) error {
	n.logger.Debug("LED control not available", "led", name, "pattern", p)
	return nil
}

func (noop) Available() []string { return nil }
