package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/metrics"
)

const (
	replayBufferSize = 100
)

// Manager tracks live WebSocket connections and routes dispatch events to
// them. Every event dispatched to a user is also kept in that user's replay
// ring so a RESUME after a short disconnect can catch up.
type Manager struct {
	mu          sync.RWMutex
	connections map[int64]*Connection  // userID → connection
	sessions    map[string]*Connection // sessionID → connection

	replayMu     sync.Mutex
	replayBuffer map[int64]*ringBuffer // userID → recent events

	tokens  *auth.TokenService
	metrics *metrics.Metrics
	origins []string
}

// NewManager creates a new gateway Manager.
func NewManager(tokens *auth.TokenService, m *metrics.Metrics) *Manager {
	return &Manager{
		connections:  make(map[int64]*Connection),
		sessions:     make(map[string]*Connection),
		replayBuffer: make(map[int64]*ringBuffer),
		tokens:       tokens,
		metrics:      m,
	}
}

// SetAllowedOrigins restricts browser clients to the given origins. An
// empty list allows any origin.
func (m *Manager) SetAllowedOrigins(origins []string) {
	m.origins = origins
}

// register adds a connection to the manager, replacing any older connection
// for the same user.
func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.connections[c.UserID]; ok && old != c {
		old.SendPayload(GatewayPayload{Op: OpReconnect})
		old.Close()
		delete(m.sessions, old.SessionID)
	} else if !ok {
		m.metrics.GatewayConnected()
	}

	m.connections[c.UserID] = c
	m.sessions[c.SessionID] = c
}

// unregister removes a connection from the manager.
func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.connections[c.UserID]; ok && existing == c {
		delete(m.connections, c.UserID)
		m.metrics.GatewayDisconnected()
	}
	if existing, ok := m.sessions[c.SessionID]; ok && existing == c {
		delete(m.sessions, c.SessionID)
	}
}

// Connected reports whether userID currently holds a live connection.
func (m *Manager) Connected(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[userID]
	return ok
}

// DispatchToUser records the event in the user's replay ring and sends it
// if the user is connected.
func (m *Manager) DispatchToUser(userID int64, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshal event error", "event", event, "error", err)
		return
	}
	seq := m.storeReplayEvent(userID, event, raw)

	m.mu.RLock()
	c, ok := m.connections[userID]
	m.mu.RUnlock()

	if ok {
		c.sendDispatch(event, raw, seq)
	}
}

// handleIdentify opens a fresh session for the token's user. It closes c
// and returns false when the token is rejected.
func (m *Manager) handleIdentify(c *Connection, data json.RawMessage) bool {
	var identify IdentifyData
	if err := json.Unmarshal(data, &identify); err != nil {
		slog.Warn("invalid identify data", "error", err)
		c.Close()
		return false
	}

	claims, err := m.tokens.ValidateAccessToken(identify.Token)
	if err != nil {
		slog.Warn("invalid token in identify", "error", err)
		c.Close()
		return false
	}

	c.UserID = claims.UserID
	c.SessionID = uuid.NewString()
	m.register(c)

	ready, err := json.Marshal(ReadyData{
		SessionID: c.SessionID,
		UserID:    c.UserID,
		Sequence:  m.lastSequence(c.UserID),
	})
	if err != nil {
		slog.Error("marshal ready error", "error", err)
		return true
	}
	c.sendDispatch(EventReady, ready, 0)
	slog.Info("gateway identified", "userID", c.UserID, "sessionID", c.SessionID)
	return true
}

// handleResume re-attaches the token's user and replays the events missed
// since the sequence the client reports. It closes c and returns false when
// the token is rejected.
func (m *Manager) handleResume(c *Connection, data json.RawMessage) bool {
	var resume ResumeData
	if err := json.Unmarshal(data, &resume); err != nil {
		slog.Warn("invalid resume data", "error", err)
		c.SendPayload(GatewayPayload{Op: OpReconnect})
		c.Close()
		return false
	}

	claims, err := m.tokens.ValidateAccessToken(resume.Token)
	if err != nil {
		slog.Warn("invalid token in resume", "error", err)
		c.Close()
		return false
	}

	c.UserID = claims.UserID
	c.SessionID = resume.SessionID
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	m.register(c)

	m.replayMu.Lock()
	var missed []sequencedEvent
	if rb, ok := m.replayBuffer[c.UserID]; ok {
		missed = rb.since(resume.Sequence)
	}
	m.replayMu.Unlock()

	for _, ev := range missed {
		c.sendDispatch(ev.Name, ev.Data, ev.Sequence)
	}
	slog.Info("gateway resumed", "userID", c.UserID, "replayed", len(missed))
	return true
}

// storeReplayEvent adds an event to the user's replay ring buffer and
// returns its sequence number.
func (m *Manager) storeReplayEvent(userID int64, name string, data json.RawMessage) int64 {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()

	rb, ok := m.replayBuffer[userID]
	if !ok {
		rb = newRingBuffer(replayBufferSize)
		m.replayBuffer[userID] = rb
	}
	return rb.add(name, data)
}

func (m *Manager) lastSequence(userID int64) int64 {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	if rb, ok := m.replayBuffer[userID]; ok {
		return rb.seq
	}
	return 0
}

// sequencedEvent pairs an encoded event with its sequence number for replay.
type sequencedEvent struct {
	Sequence int64
	Name     string
	Data     json.RawMessage
}

// ringBuffer is a fixed-size circular buffer for replay events.
type ringBuffer struct {
	events []sequencedEvent
	size   int
	pos    int
	seq    int64
	full   bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		events: make([]sequencedEvent, size),
		size:   size,
	}
}

func (rb *ringBuffer) add(name string, data json.RawMessage) int64 {
	rb.seq++
	rb.events[rb.pos] = sequencedEvent{Sequence: rb.seq, Name: name, Data: data}
	rb.pos = (rb.pos + 1) % rb.size
	if rb.pos == 0 {
		rb.full = true
	}
	return rb.seq
}

// since returns all events with sequence > afterSeq, oldest first.
func (rb *ringBuffer) since(afterSeq int64) []sequencedEvent {
	var result []sequencedEvent
	count := rb.size
	if !rb.full {
		count = rb.pos
	}

	start := 0
	if rb.full {
		start = rb.pos
	}

	for i := range count {
		idx := (start + i) % rb.size
		if rb.events[idx].Sequence > afterSeq {
			result = append(result, rb.events[idx])
		}
	}
	return result
}
