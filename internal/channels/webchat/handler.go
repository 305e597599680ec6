package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/zapleads/engage-platform/internal/conversation"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// Processor runs the inbound pipeline for a widget message.
type Processor interface {
	HandleWebhook(ctx context.Context, body []byte) conversation.Outcome
}

// Handler exposes the widget endpoints: a websocket for live chat and an
// HTTP fallback for posting single messages.
type Handler struct {
	hub       *Hub
	processor Processor
	logger    *logging.Logger
}

// InboundFrame is what the widget sends over the socket.
type InboundFrame struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

func NewHandler(hub *Hub, processor Processor, logger *logging.Logger) *Handler {
	if hub == nil || processor == nil {
		panic("webchat: hub and processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{hub: hub, processor: processor, logger: logger}
}

// Register mounts the widget endpoints on a subrouter.
func (h *Handler) Register(r chi.Router) {
	r.Post("/message", h.HandleMessage)
	r.Get("/ws", h.HandleWebSocket)
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to a websocket and relays widget frames into the
// inbound pipeline. Query params: company (required), session (optional, one
// is minted when absent).
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	companyID := r.URL.Query().Get("company")
	if companyID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing company parameter"})
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})

	unregister := h.hub.Register(companyID, sessionID, conn)
	defer unregister()

	h.logger.Info("webchat connection opened", "company_id", companyID, "session_id", sessionID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.logger.Debug("webchat connection closed", "company_id", companyID, "error", err)
			return
		}
		if frame.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if frame.Type != "message" || strings.TrimSpace(frame.Text) == "" {
			continue
		}
		h.process(r.Context(), companyID, sessionID, "", frame.Text)
	}
}

// HandleMessage is the HTTP fallback: POST /webchat/message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID string `json:"company_id"`
		SessionID string `json:"session_id"`
		Name      string `json:"name"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CompanyID == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "company_id and text are required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	outcome := h.process(r.Context(), req.CompanyID, req.SessionID, req.Name, req.Text)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": req.SessionID,
		"outcome":    outcome,
	})
}

func (h *Handler) process(ctx context.Context, companyID, sessionID, name, text string) conversation.Outcome {
	body, err := json.Marshal(map[string]string{
		"type":      "web",
		"companyId": companyID,
		"sessionId": sessionID,
		"name":      name,
		"text":      text,
	})
	if err != nil {
		h.logger.Error("webchat payload marshal failed", "error", err)
		return conversation.Outcome{Status: conversation.StatusSkipped, Reason: "marshal_failed"}
	}
	return h.processor.HandleWebhook(ctx, body)
}
