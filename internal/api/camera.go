package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/snapcam/internal/api/models"
	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/capture"
)

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-status",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera Status",
		Description: "Report the open camera, its applied stream configuration and capture totals",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("capture service not running")
		}
		return &models.CameraStatusResponse{Body: s.options.Capture.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "trigger-capture",
		Method:      http.MethodPost,
		Path:        "/api/camera/capture",
		Summary:     "Capture",
		Description: "Run one capture cycle and return its outcome with frame metadata. A timeout or cancelled request is a successful response with that outcome.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.CaptureResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("capture service not running")
		}

		res, err := s.options.Capture.Capture(ctx)
		switch {
		case errors.Is(err, capture.ErrUnavailable):
			return nil, huma.Error503ServiceUnavailable("no camera open", err)
		case camera.KindOf(err) == camera.KindInvalidState:
			return nil, huma.Error409Conflict("camera not ready for capture", err)
		case err != nil:
			return nil, huma.Error500InternalServerError("capture failed", err)
		}
		return &models.CaptureResponse{Body: *res}, nil
	})
}
