//go:build linux && (amd64 || arm64)

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"
)

const sysfsVideo4Linux = "/sys/class/video4linux"

// FindDevices finds all V4L2 streaming capture devices on the system,
// ordered by device node name.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideo4Linux)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		caps, err := queryCapability(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		effective := caps.capabilities
		if effective&capDeviceCaps != 0 {
			effective = caps.deviceCaps
		}

		// Metadata nodes of UVC cameras share the sysfs class; skip them.
		if effective&capVideoCapture == 0 || effective&capStreaming == 0 {
			continue
		}

		indexValue := readSysfsInt(filepath.Join(sysfsVideo4Linux, entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			busInfo := cstr(caps.busInfo[:])
			if strings.HasPrefix(busInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", busInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", busInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: cstr(caps.card[:]),
			DeviceID:   stableID,
			Driver:     cstr(caps.driver[:]),
			Caps:       effective,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return nodeLess(devices[i].DevicePath, devices[j].DevicePath)
	})

	return devices, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("device with ID %s not found", deviceID)
}

// queryCapability opens the node just long enough for VIDIOC_QUERYCAP.
func queryCapability(devicePath string) (*v4l2Capability, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, err
	}
	defer closeFD(fd)

	caps := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(caps)); err != nil {
		return nil, err
	}
	return caps, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// nodeLess orders /dev/videoN paths numerically so video10 sorts after video2.
func nodeLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimPrefix(filepath.Base(a), "video"))
	nb, errB := strconv.Atoi(strings.TrimPrefix(filepath.Base(b), "video"))
	if errA != nil || errB != nil {
		return a < b
	}
	return na < nb
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
