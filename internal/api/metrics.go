package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/snapcam/internal/api/models"
	"github.com/smazurov/snapcam/internal/metrics"
)

// registerMetricsRoutes exposes the cached capture totals as JSON. The
// Prometheus exposition is mounted separately on /metrics.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-stats",
		Method:      http.MethodGet,
		Path:        "/api/camera/stats",
		Summary:     "Capture Statistics",
		Description: "Cycle outcome totals for the open camera since process start",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.CaptureStatsResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("capture service not running")
		}
		id := s.options.Capture.Status().DeviceID
		if id == "" {
			return nil, huma.Error503ServiceUnavailable("no camera open")
		}
		return &models.CaptureStatsResponse{
			Body: models.NewCaptureStats(id, metrics.GetCaptureStats(id)),
		}, nil
	})
}
