package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var errConnClosed = errors.New("connection closed")

// wsConn adapts a coder/websocket connection to ClientConn. The context is
// the connection's lifetime: once it is cancelled the transport is treated
// as closed and sends are refused.
type wsConn struct {
	id  string
	ws  *websocket.Conn
	ctx context.Context

	mu      sync.Mutex
	managed []string
	seen    map[string]struct{}
}

func newWSConn(ctx context.Context, ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		ctx:  ctx,
		seen: make(map[string]struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Open() bool { return c.ctx.Err() == nil }

// Send marshals v and writes it as a text frame. Writes use a background
// context because the library tracks connection state itself; the
// connection context only gates whether a write is attempted at all.
func (c *wsConn) Send(v any) error {
	if c.ctx.Err() != nil {
		return errConnClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		if c.ctx.Err() != nil {
			return errConnClosed
		}
		return err
	}
	return nil
}

func (c *wsConn) Close(reason string) {
	if err := c.ws.Close(websocket.StatusNormalClosure, reason); err != nil {
		slog.Debug("Failed to close websocket", "error", err, "conn", c.id)
	}
}

func (c *wsConn) Manage(sessionName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[sessionName]; ok {
		return
	}
	c.seen[sessionName] = struct{}{}
	c.managed = append(c.managed, sessionName)
}

func (c *wsConn) Managed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.managed))
	copy(out, c.managed)
	return out
}
