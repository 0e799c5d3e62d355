package gateway

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func (m *Manager) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.originAllowed,
	}
}

// originAllowed accepts every origin unless an allow-list is configured.
// Requests without an Origin header come from non-browser clients.
func (m *Manager) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(m.origins) == 0 || origin == "" {
		return true
	}
	return slices.Contains(m.origins, origin)
}

// HandleWebSocket handles GET /gateway. The client gets HELLO and must
// IDENTIFY or RESUME before anything is dispatched to it.
func (m *Manager) HandleWebSocket(c echo.Context) error {
	ws, err := m.upgrader().Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("gateway upgrade failed", "remote", c.RealIP(), "error", err)
		return nil
	}

	conn := newConnection(ws, m)
	conn.SendPayload(GatewayPayload{
		Op:   OpHello,
		Data: encode(HelloData{HeartbeatInterval: int(heartbeatInterval.Milliseconds())}),
	})
	go conn.serve()
	return nil
}
