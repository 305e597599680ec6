package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/voice"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// funnelApplier advances the sales funnel after a call is classified.
type funnelApplier interface {
	Apply(ctx context.Context, call *crm.VoiceCall, c voice.Classification) error
}

// VoiceCallbackHandler receives the dialer's end-of-call callback, classifies
// the transcript and runs the funnel automation. The call record is updated
// exactly once with the classification result.
type VoiceCallbackHandler struct {
	calls  crm.VoiceCallRepository
	funnel funnelApplier
	logger *logging.Logger
}

func NewVoiceCallbackHandler(calls crm.VoiceCallRepository, funnel funnelApplier, logger *logging.Logger) *VoiceCallbackHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceCallbackHandler{calls: calls, funnel: funnel, logger: logger}
}

type voiceCallbackPayload struct {
	ExternalCallID string `json:"externalCallId"`
	Transcript     string `json:"transcript"`
	Duration       int    `json:"duration"`
	Status         string `json:"status"`
}

type voiceCallbackResponse struct {
	CallID     string `json:"call_id"`
	Intent     string `json:"intent"`
	Confidence int    `json:"confidence"`
	Objection  string `json:"objection,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// HandleCallback is POST /webhooks/voice/callback.
func (h *VoiceCallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid body"})
		return
	}
	var payload voiceCallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid payload"})
		return
	}
	if payload.ExternalCallID == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "externalCallId is required"})
		return
	}

	ctx := r.Context()
	call, err := h.calls.CallByExternalID(ctx, payload.ExternalCallID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "unknown call"})
			return
		}
		h.logger.Error("call lookup failed", "error", err, "external_call_id", payload.ExternalCallID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}

	result := voice.Classify(payload.Transcript)

	call.Status = "completed"
	if payload.Status != "" {
		call.Status = payload.Status
	}
	call.Intent = string(result.Intent)
	call.ConfidenceScore = result.Confidence
	call.Objection = result.Objection
	call.Transcript = payload.Transcript
	call.Duration = payload.Duration
	if err := h.calls.UpdateCall(ctx, call); err != nil {
		h.logger.Error("call update failed", "error", err, "call_id", call.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}

	if err := h.funnel.Apply(ctx, call, result); err != nil {
		h.logger.Error("funnel automation failed", "error", err, "call_id", call.ID)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "server error"})
		return
	}

	writeJSON(w, http.StatusOK, voiceCallbackResponse{
		CallID:     call.ID,
		Intent:     string(result.Intent),
		Confidence: result.Confidence,
		Objection:  result.Objection,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
