package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/hlsnode/internal/events"
)

// feedBuffer bounds how far a slow SSE client may lag before events are dropped.
const feedBuffer = 64

// registerSSERoutes registers the stream lifecycle event feed.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event Stream",
		Description: "Record changes, stream state transitions and watchdog alerts as they happen",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-created":       events.StreamCreatedEvent{},
		"stream-updated":       events.StreamUpdatedEvent{},
		"stream-deleted":       events.StreamDeletedEvent{},
		"stream-state-changed": events.StreamStateChangedEvent{},
		"watchdog-stale":       events.WatchdogStaleEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		feed := s.eventBus.NewFeed(feedBuffer, events.KindLifecycle, events.KindWatchdog)
		defer feed.Close()
		s.forward(ctx, "events", feed, send)
	})
}

// forward relays feed to send until the client goes away or a write fails.
func (s *Server) forward(ctx context.Context, name string, feed *events.Feed, send sse.Sender) {
	defer func() {
		if n := feed.Dropped(); n > 0 {
			s.logger.Warn("SSE client fell behind", "feed", name, "dropped", n)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-feed.C():
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}
