package bridge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// WebSocketHandler accepts client connections and feeds their frames into
// the bridge.
type WebSocketHandler struct {
	bridge        *Bridge
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a WebSocket handler for the bridge.
func NewWebSocketHandler(b *Bridge, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		bridge:        b,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// the client disconnects. Disconnect cascades: every session the connection
// still owns is removed from the registry, and its pollers notice on their
// next wake.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := newWSConn(ctx, ws)
	slog.Info("Client connected via WebSocket", "conn", conn.ID(), "ip", r.RemoteAddr)

	defer h.bridge.CleanupConnection(conn)
	defer slog.Info("Client disconnected. Cleaning up associated sessions.", "conn", conn.ID())

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn", conn.ID())
			} else {
				slog.Warn("WebSocket read error", "error", err, "conn", conn.ID())
			}
			return
		}
		h.bridge.HandleMessage(ctx, conn, data)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
