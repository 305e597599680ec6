// Package webchat serves the first-party chat widget: a websocket hub for
// live sessions and an HTTP fallback for posting messages.
package webchat

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/zapleads/engage-platform/internal/messaging"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// OutboundMessage is what the hub pushes to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "session", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Hub tracks live widget sessions keyed by (company, session). It implements
// messaging.Sender: a reply to a session without a live socket fails the
// send, leaving the message record delivered=false for the next page load.
type Hub struct {
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn
}

type wsConn struct {
	conn *websocket.Conn
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{logger: logger, sessions: make(map[string]*wsConn)}
}

var _ messaging.Sender = (*Hub)(nil)

func sessionKey(companyID, sessionID string) string {
	return companyID + ":" + sessionID
}

// Register binds a websocket connection to a session, replacing any prior
// connection. It returns an unregister func for the caller to defer.
func (h *Hub) Register(companyID, sessionID string, conn *websocket.Conn) func() {
	key := sessionKey(companyID, sessionID)
	wsc := &wsConn{conn: conn}
	h.mu.Lock()
	h.sessions[key] = wsc
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		if h.sessions[key] == wsc {
			delete(h.sessions, key)
		}
		h.mu.Unlock()
	}
}

// SendText pushes a bot reply to the live session.
func (h *Hub) SendText(ctx context.Context, msg messaging.OutboundText) error {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionKey(msg.CompanyID, msg.To)]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webchat: no live session for %s", msg.To)
	}
	if err := websocket.JSON.Send(wsc.conn, OutboundMessage{
		Type: "message",
		Role: "assistant",
		Text: msg.Body,
	}); err != nil {
		return fmt.Errorf("webchat: push failed: %w", err)
	}
	return nil
}

// ActiveSessions reports the number of live connections.
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
