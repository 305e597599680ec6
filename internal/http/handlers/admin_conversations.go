package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// directSender lets an operator push a message into a conversation.
type directSender interface {
	SendDirect(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, text string) error
}

// AdminConversationsHandler is the operator API for live conversations:
// inspecting threads, taking over from the assistant and handing back.
type AdminConversationsHandler struct {
	store  crm.Store
	sender directSender
	logger *logging.Logger
}

func NewAdminConversationsHandler(store crm.Store, sender directSender, logger *logging.Logger) *AdminConversationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{store: store, sender: sender, logger: logger}
}

type conversationDetail struct {
	Conversation *crm.Conversation `json:"conversation"`
	Lead         *crm.Lead         `json:"lead"`
	Messages     []crm.Message     `json:"messages"`
}

// HandleGet is GET /admin/conversations/{id}.
func (h *AdminConversationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conv, lead, ok := h.load(w, r)
	if !ok {
		return
	}
	msgs, err := h.store.RecentMessages(r.Context(), conv.ID, 100)
	if err != nil {
		h.logger.Error("message load failed", "error", err, "conversation_id", conv.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}
	writeJSON(w, http.StatusOK, conversationDetail{Conversation: conv, Lead: lead, Messages: msgs})
}

// HandleTakeover is POST /admin/conversations/{id}/takeover. The assistant
// stops replying until the conversation is released.
func (h *AdminConversationsHandler) HandleTakeover(w http.ResponseWriter, r *http.Request) {
	h.setControl(w, r, crm.ConversationHumanActive, false)
}

// HandleRelease is POST /admin/conversations/{id}/release.
func (h *AdminConversationsHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	h.setControl(w, r, crm.ConversationBotActive, true)
}

// HandleAIToggle is POST /admin/conversations/{id}/ai with {"active": bool}.
// Unlike takeover it flips only the assistant flag and leaves the status as
// is, so an operator can silence the bot without claiming the thread.
func (h *AdminConversationsHandler) HandleAIToggle(w http.ResponseWriter, r *http.Request) {
	conv, _, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid payload"})
		return
	}
	conv.AIActive = payload.Active
	conv.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateConversation(r.Context(), conv); err != nil {
		h.logger.Error("conversation update failed", "error", err, "conversation_id", conv.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// HandleReply is POST /admin/conversations/{id}/reply with {"text": ...}.
// The message is recorded and delivered as the human operator.
func (h *AdminConversationsHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	conv, lead, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil || payload.Text == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "text is required"})
		return
	}
	if err := h.sender.SendDirect(r.Context(), lead, conv, payload.Text); err != nil {
		h.logger.Error("operator reply failed", "error", err, "conversation_id", conv.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "delivery failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *AdminConversationsHandler) setControl(w http.ResponseWriter, r *http.Request, status string, aiActive bool) {
	conv, _, ok := h.load(w, r)
	if !ok {
		return
	}
	conv.Status = status
	conv.AIActive = aiActive
	conv.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateConversation(r.Context(), conv); err != nil {
		h.logger.Error("conversation update failed", "error", err, "conversation_id", conv.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *AdminConversationsHandler) load(w http.ResponseWriter, r *http.Request) (*crm.Conversation, *crm.Lead, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "conversation id required"})
		return nil, nil, false
	}
	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "conversation not found"})
			return nil, nil, false
		}
		h.logger.Error("conversation lookup failed", "error", err, "conversation_id", id)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return nil, nil, false
	}
	lead, err := h.store.GetLead(r.Context(), conv.LeadID)
	if err != nil {
		h.logger.Error("lead lookup failed", "error", err, "lead_id", conv.LeadID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return nil, nil, false
	}
	return conv, lead, true
}
