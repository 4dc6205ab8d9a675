package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// eventWriteTimeout bounds one event delivery to a WebSocket client.
const eventWriteTimeout = 5 * time.Second

// handleEvents upgrades the connection and streams the session's events
// until the session goes away or the client disconnects. The first message
// is always a snapshot of the current session state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Manager().Get(r.PathValue("id"))
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "event stream aborted")

	events, cancel := sess.Subscribe()
	defer cancel()

	ctx := r.Context()
	if err := writeEvent(ctx, conn, map[string]any{
		"type":    "snapshot",
		"payload": sess.Snapshot(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
