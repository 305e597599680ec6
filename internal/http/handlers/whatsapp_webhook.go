// Package handlers exposes the HTTP surface of the engagement platform:
// provider webhooks, the webchat widget endpoints and the admin API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/zapleads/engage-platform/internal/conversation"
	"github.com/zapleads/engage-platform/pkg/logging"
)

const maxWebhookBody = 1 << 20

// webhookProcessor is the piece of the conversation engine webhooks need.
type webhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte) conversation.Outcome
}

// WhatsAppWebhookHandler receives WhatsApp provider callbacks. Providers
// retry on non-2xx, so the POST endpoint always acknowledges with 200 and
// carries the real disposition in the body.
type WhatsAppWebhookHandler struct {
	engine      webhookProcessor
	verifyToken string
	logger      *logging.Logger
}

func NewWhatsAppWebhookHandler(engine webhookProcessor, verifyToken string, logger *logging.Logger) *WhatsAppWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{engine: engine, verifyToken: verifyToken, logger: logger}
}

type webhookAck struct {
	Success bool                 `json:"success"`
	Outcome conversation.Outcome `json:"outcome"`
	Error   string               `json:"error,omitempty"`
}

// HandleInbound is POST /webhooks/whatsapp. Any failure, including a panic
// further down the pipeline, is still acknowledged with 200 so the provider
// does not enter a retry storm; the error rides in the body instead.
func (h *WhatsAppWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("webhook processing panicked", "panic", rec)
			writeAck(w, webhookAck{Success: true, Error: "internal error"})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("webhook body read failed", "error", err)
		writeAck(w, webhookAck{Success: true, Error: "unreadable body"})
		return
	}

	outcome := h.engine.HandleWebhook(r.Context(), body)
	if outcome.Status == conversation.StatusSkipped {
		h.logger.Info("webhook skipped", "reason", outcome.Reason)
	}

	writeAck(w, webhookAck{Success: true, Outcome: outcome})
}

func writeAck(w http.ResponseWriter, ack webhookAck) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ack)
}

// HandleVerify is GET /webhooks/whatsapp, the Meta cloud subscription
// handshake: echo hub.challenge when the verify token matches.
func (h *WhatsAppWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}
