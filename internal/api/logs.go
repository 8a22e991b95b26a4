package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/snapcam/internal/api/models"
	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/logging"
)

func toLogModel(e logging.LogEntry) models.LogEntry {
	return models.LogEntry{
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		Level:      e.Level,
		Module:     e.Module,
		Message:    e.Message,
		Attributes: e.Attributes,
	}
}

// registerLogRoutes registers the recent-log query and the log stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Return the most recent entries from the in-memory log buffer, optionally filtered by module and minimum level",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		entries := []models.LogEntry{}
		if buffer := logging.GetBuffer(); buffer != nil {
			q := logging.Query{Limit: input.Limit, Module: input.Module, MinLevel: input.Level}
			for _, e := range buffer.Query(q) {
				entries = append(entries, toLogModel(e))
			}
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		if buffer := logging.GetBuffer(); buffer != nil {
			for _, e := range buffer.Entries() {
				m := toLogModel(e)
				if err := send.Data(events.LogEntryEvent{
					Timestamp:  m.Timestamp,
					Level:      m.Level,
					Module:     m.Module,
					Message:    m.Message,
					Attributes: m.Attributes,
				}); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
