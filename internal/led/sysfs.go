package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// sysfs controls LEDs through /sys/class/leds/<name>/{trigger,brightness}.
type sysfs struct {
	root string
	// leds maps the names callers use to sysfs directory names.
	leds map[string]string
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{root: root, leds: leds}
}

func (s *sysfs) Set(name string, p Pattern) error {
	dir, ok := s.leds[name]
	if !ok {
		return fmt.Errorf("LED %q not supported on this board", name)
	}
	path := filepath.Join(s.root, dir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("LED %q: %w", name, err)
	}

	trigger, brightness := "none", "0"
	switch p {
	case PatternOff:
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger, brightness = "heartbeat", "1"
	default:
		return fmt.Errorf("unknown LED pattern %q", p)
	}

	if err := os.WriteFile(filepath.Join(path, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("set LED trigger: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	names := make([]string, 0, len(s.leds))
	for name := range s.leds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
