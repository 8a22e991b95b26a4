package led

import (
	"log/slog"
	"os"
	"strings"
)

var (
	deviceTreeModelPath = "/proc/device-tree/model"
	sysfsLEDPath        = "/sys/class/leds"
)

// boards maps a device-tree model substring to its LED names.
var boards = []struct {
	model string
	leds  map[string]string
}{
	{"NanoPC-T6", map[string]string{"system": "sys_led", "user": "usr_led"}},
	{"Orange Pi", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", map[string]string{"act": "ACT"}},
}

// New returns the controller for the running board, or one that only logs
// when the board is not known.
func New(logger *slog.Logger) Controller {
	model := detectBoard()
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			logger.Info("Using sysfs LED controller", "board_model", model)
			return newSysfs(sysfsLEDPath, b.leds)
		}
	}
	logger.Info("No LED support detected", "board_model", model)
	return noop{logger: logger}
}

func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
