package camera

import (
	"fmt"

	"github.com/smazurov/snapcam/internal/platform"
)

// Selector picks the camera a Handle acquires.
type Selector interface {
	Select(cams []platform.CameraInfo) (platform.CameraInfo, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(cams []platform.CameraInfo) (platform.CameraInfo, error)

// Select implements Selector.
func (f SelectorFunc) Select(cams []platform.CameraInfo) (platform.CameraInfo, error) {
	return f(cams)
}

// FirstDevice selects the first enumerated camera.
var FirstDevice Selector = SelectorFunc(func(cams []platform.CameraInfo) (platform.CameraInfo, error) {
	if len(cams) == 0 {
		return platform.CameraInfo{}, ErrNoDeviceFound
	}
	return cams[0], nil
})

// ByID selects the camera whose ID or device path equals id. An empty id
// falls back to FirstDevice.
func ByID(id string) Selector {
	if id == "" {
		return FirstDevice
	}
	return SelectorFunc(func(cams []platform.CameraInfo) (platform.CameraInfo, error) {
		for _, c := range cams {
			if c.ID == id || c.Path == id {
				return c, nil
			}
		}
		return platform.CameraInfo{}, fmt.Errorf("%w: %s", ErrNoDeviceFound, id)
	})
}
