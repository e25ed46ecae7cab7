package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Tokens authenticate the channel; origin pinning is a deployment
	// concern handled at the edge.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and hands it to the realtime
// protocol. Authentication happens in-band with the first frame.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	authorize := func(ctx context.Context, identity auth.Identity, issueID uint64) error {
		return s.issues.AuthorizeRead(ctx, identity, issueID)
	}

	if err := realtime.ServeConn(r.Context(), s.hub, conn, s.tokens, authorize); err != nil {
		logging.Warn(r.Context(), "websocket session ended with error", slog.String("error", err.Error()))
	}
	_ = conn.Close()
}
