package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/deskbot/internal/store"
)

// runNotifier forwards run events to the client that started the run.
// The event context carries the client session of the originating tool call.
// It implements engine.EventAppender.
type runNotifier struct {
	mcpServer *server.MCPServer
}

func newRunNotifier(mcpServer *server.MCPServer) *runNotifier {
	return &runNotifier{mcpServer: mcpServer}
}

// AppendEvent sends the event as a notifications/message log entry.
// Best-effort: returns nil when no client session is attached.
func (n *runNotifier) AppendEvent(ctx context.Context, e *store.Event) error {
	if n.mcpServer == nil || server.ClientSessionFromContext(ctx) == nil {
		return nil
	}
	data := map[string]any{
		"run_id":     e.RunID,
		"event_type": e.Type,
	}
	if e.Record > 0 {
		data["record"] = e.Record
	}
	if e.Step != "" {
		data["step"] = e.Step
	}
	if len(e.Payload) > 0 {
		data["payload"] = e.Payload
	}
	return n.mcpServer.SendNotificationToClient(ctx, "notifications/message", map[string]any{
		"level":  "info",
		"logger": "deskbot",
		"data":   data,
	})
}
