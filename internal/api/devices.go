package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/snapcam/internal/api/models"
	"github.com/smazurov/snapcam/internal/platform"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List cameras known to the capture subsystem",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, input *models.DevicesInput) (*models.DeviceResponse, error) {
		if s.options.Cameras == nil {
			return nil, huma.Error503ServiceUnavailable("camera subsystem not running")
		}

		var inUse string
		if s.options.Capture != nil {
			inUse = s.options.Capture.Status().DeviceID
		}

		cams := s.options.Cameras.Cameras()
		devices := make([]models.DeviceInfo, 0, len(cams))
		for _, c := range cams {
			d := models.DeviceInfo{DeviceID: c.ID, Name: c.Name, Path: c.Path, InUse: c.ID == inUse}
			if input.Formats {
				caps, err := s.options.Cameras.Describe(c.ID)
				if err != nil {
					s.logger.Warn("Failed to describe device", "device_id", c.ID, "error", err)
				} else {
					d.Formats = models.NewFormatInfo(caps)
				}
			}
			devices = append(devices, d)
		}

		return &models.DeviceResponse{
			Body: models.DeviceData{Devices: devices, Count: len(devices)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-formats",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/formats",
		Summary:     "Device Formats",
		Description: "List the pixel formats and frame sizes a camera offers",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500, 503},
	}, func(_ context.Context, input *models.DeviceFormatsInput) (*models.DeviceFormatsResponse, error) {
		if s.options.Cameras == nil {
			return nil, huma.Error503ServiceUnavailable("camera subsystem not running")
		}

		caps, err := s.options.Cameras.Describe(input.DeviceID)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			return nil, huma.Error404NotFound("device not found", err)
		case errors.Is(err, errors.ErrUnsupported):
			return nil, huma.Error503ServiceUnavailable("format listing not supported", err)
		case err != nil:
			return nil, huma.Error500InternalServerError("failed to list formats", err)
		}

		if input.Format != "" {
			filtered := caps[:0]
			for _, c := range caps {
				if string(c.Format) == string(input.Format) {
					filtered = append(filtered, c)
				}
			}
			caps = filtered
		}

		return &models.DeviceFormatsResponse{
			Body: models.DeviceFormatsData{DeviceID: input.DeviceID, Formats: models.NewFormatInfo(caps)},
		}, nil
	})
}
