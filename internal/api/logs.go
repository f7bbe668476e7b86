package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/logging"
)

const logFeedBuffer = 256

func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Recent log history, then live entries. Transcoder output is included under the ffmpeg module.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribed before the replay so entries logged meanwhile are kept.
		feed := s.eventBus.NewFeed(logFeedBuffer, events.KindLogs)
		defer feed.Close()

		if err := replayLogs(send); err != nil {
			return
		}
		s.forward(ctx, "logs", feed, send)
	})
}

func replayLogs(send sse.Sender) error {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return nil
	}
	for _, entry := range buffer.Snapshot() {
		err := send.Data(events.LogEntryEvent{
			Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
