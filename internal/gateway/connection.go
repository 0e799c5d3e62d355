package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	heartbeatInterval = 30 * time.Second
	// A client that has not been heard from for heartbeatInterval plus this
	// grace is considered gone.
	heartbeatGrace  = 15 * time.Second
	identifyTimeout = 20 * time.Second

	writeWait      = 10 * time.Second
	maxPayloadSize = 8 << 10
	outboxSize     = 256

	// Inbound payload budget per connection.
	inboundRate  = 5
	inboundBurst = 20
)

// Connection is one client socket. UserID and SessionID are zero until
// the client identifies or resumes.
type Connection struct {
	UserID    int64
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	manager    *Manager
	limiter    *rate.Limiter
	identified atomic.Bool
	lastSeen   atomic.Int64 // unix millis of the last inbound frame

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, manager *Manager) *Connection {
	c := &Connection{
		Conn:    ws,
		Send:    make(chan []byte, outboxSize),
		manager: manager,
		limiter: rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		done:    make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *Connection) touch() { c.lastSeen.Store(time.Now().UnixMilli()) }

func (c *Connection) silentFor() time.Duration {
	return time.Since(time.UnixMilli(c.lastSeen.Load()))
}

// SendPayload encodes p and queues it. A slow client whose outbox is full
// loses the payload; RESUME recovers dispatches from the replay ring.
func (c *Connection) SendPayload(p GatewayPayload) {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("encoding gateway payload", "op", p.Op, "userID", c.UserID, "error", err)
		return
	}
	select {
	case c.Send <- data:
	case <-c.done:
	default:
		slog.Warn("gateway outbox full, payload dropped", "op", p.Op, "userID", c.UserID)
	}
}

// sendDispatch queues an already-encoded dispatch event. A zero seq omits
// the sequence field.
func (c *Connection) sendDispatch(name string, data json.RawMessage, seq int64) {
	p := GatewayPayload{Op: OpDispatch, Data: data, Event: &name}
	if seq > 0 {
		p.Sequence = &seq
	}
	c.SendPayload(p)
}

// Close terminates the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

// serve runs the connection until the socket closes.
func (c *Connection) serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Connection) readLoop() {
	defer func() {
		if c.identified.Load() {
			c.manager.unregister(c)
		}
		c.Close()
	}()

	c.Conn.SetReadLimit(maxPayloadSize)
	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("gateway read failed", "userID", c.UserID, "error", err)
			}
			return
		}
		c.touch()
		if !c.limiter.Allow() {
			slog.Warn("gateway inbound rate exceeded, payload dropped", "userID", c.UserID)
			continue
		}
		if !c.handle(frame) {
			return
		}
	}
}

// writeLoop drains the outbox and enforces the identify deadline and
// heartbeat liveness.
func (c *Connection) writeLoop() {
	identifyDeadline := time.NewTimer(identifyTimeout)
	liveness := time.NewTicker(heartbeatInterval)
	defer func() {
		identifyDeadline.Stop()
		liveness.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-identifyDeadline.C:
			if !c.identified.Load() {
				slog.Info("gateway client never identified, closing")
				return
			}

		case <-liveness.C:
			if c.silentFor() > heartbeatInterval+heartbeatGrace {
				slog.Info("gateway heartbeat missed, closing", "userID", c.UserID)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handle processes one client payload and reports whether the connection
// should stay open.
func (c *Connection) handle(frame []byte) bool {
	var p GatewayPayload
	if err := json.Unmarshal(frame, &p); err != nil {
		slog.Warn("gateway payload malformed", "userID", c.UserID, "error", err)
		return true
	}

	switch p.Op {
	case OpHeartbeat:
		c.SendPayload(GatewayPayload{Op: OpHeartbeatAck})
		return true

	case OpIdentify, OpResume:
		if c.identified.Load() {
			slog.Warn("gateway session already established", "userID", c.UserID, "op", p.Op)
			return false
		}
		var ok bool
		if p.Op == OpIdentify {
			ok = c.manager.handleIdentify(c, p.Data)
		} else {
			ok = c.manager.handleResume(c, p.Data)
		}
		if ok {
			c.identified.Store(true)
		}
		return ok

	default:
		if !c.identified.Load() {
			slog.Warn("gateway payload before identify", "op", p.Op)
			return false
		}
		return true
	}
}
