package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/zapleads/engage-platform/internal/assistant"
	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/inbound"
	"github.com/zapleads/engage-platform/internal/llm"
	"github.com/zapleads/engage-platform/internal/observability/metrics"
	"github.com/zapleads/engage-platform/internal/phone"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// Outcome statuses reported to webhook handlers. Everything is a success
// from the provider's point of view; the status explains what happened.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusDuplicate = "duplicate"
)

// Outcome describes what the engine did with one inbound message.
type Outcome struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	LeadID         string `json:"lead_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ProcessedMarker is the cross-instance idempotency gate backed by the
// processed_events table. Optional; the per-conversation externalMessageId
// check still applies without it.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Engine runs the inbound pipeline: parse, attribute, resolve, guard, build
// context, invoke the model and dispatch the reply.
type Engine struct {
	parser    *inbound.Parser
	phones    *phone.Normalizer
	store     crm.Store
	resolver  *crm.Resolver
	selector  *assistant.Selector
	prompts   *assistant.Builder
	invoker   llm.Invoker
	dispatch  *Dispatcher
	history   *HistoryCache
	processed ProcessedMarker
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger
	llmName   string
}

// EngineDeps wires an Engine. Parser, store, resolver, selector, invoker,
// dispatcher and history are required; the rest is optional.
type EngineDeps struct {
	Parser    *inbound.Parser
	Phones    *phone.Normalizer
	Store     crm.Store
	Resolver  *crm.Resolver
	Selector  *assistant.Selector
	Prompts   *assistant.Builder
	Invoker   llm.Invoker
	Dispatch  *Dispatcher
	History   *HistoryCache
	Processed ProcessedMarker
	Metrics   *metrics.EngineMetrics
	Logger    *logging.Logger
	// LLMName labels model latency metrics ("gemini", "bedrock", "webhook").
	LLMName string
}

func NewEngine(deps EngineDeps) *Engine {
	if deps.Parser == nil || deps.Store == nil || deps.Resolver == nil ||
		deps.Selector == nil || deps.Invoker == nil || deps.Dispatch == nil || deps.History == nil {
		panic("conversation: incomplete engine dependencies")
	}
	if deps.Phones == nil {
		deps.Phones = phone.NewNormalizer(phone.BrazilRule)
	}
	if deps.Prompts == nil {
		deps.Prompts = assistant.NewBuilder()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.LLMName == "" {
		deps.LLMName = "default"
	}
	return &Engine{
		parser:    deps.Parser,
		phones:    deps.Phones,
		store:     deps.Store,
		resolver:  deps.Resolver,
		selector:  deps.Selector,
		prompts:   deps.Prompts,
		invoker:   deps.Invoker,
		dispatch:  deps.Dispatch,
		history:   deps.History,
		processed: deps.Processed,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		llmName:   deps.LLMName,
	}
}

// HandleWebhook parses a raw provider body and runs the pipeline. Skips are
// reported, never errored, so handlers can acknowledge them as successes.
func (e *Engine) HandleWebhook(ctx context.Context, body []byte) Outcome {
	res := e.parser.Parse(body)
	if res.Skipped() {
		e.metrics.ObserveInbound("unknown", StatusSkipped)
		e.logger.Info("webhook skipped", "reason", res.Skip)
		return Outcome{Status: StatusSkipped, Reason: res.Skip}
	}
	return e.Process(ctx, res.Message)
}

// Process runs the pipeline for an already-parsed message.
func (e *Engine) Process(ctx context.Context, msg *inbound.Message) Outcome {
	provider := string(msg.Provider)

	companyID, outcome := e.attribute(ctx, msg)
	if outcome != nil {
		e.metrics.ObserveInbound(provider, outcome.Status)
		return *outcome
	}

	// Cross-instance idempotency gate. The per-conversation check below
	// still covers providers without stable event ids.
	if e.processed != nil && msg.ExternalMessageID != "" {
		fresh, err := e.processed.MarkProcessed(ctx, provider, msg.ExternalMessageID)
		if err != nil {
			e.logger.Error("processed-event gate failed", "error", err, "provider", provider)
		} else if !fresh {
			e.metrics.ObserveInbound(provider, StatusDuplicate)
			return Outcome{Status: StatusDuplicate, Reason: "event_already_processed"}
		}
	}

	leadPhone := msg.Sender
	if msg.Channel == inbound.ChannelWhatsApp {
		leadPhone = e.phones.Normalize(msg.Sender)
	}

	lead, err := e.resolver.ResolveLead(ctx, companyID, leadPhone, crm.LeadHints{
		Name:   msg.SenderName,
		Source: string(msg.Channel),
	})
	if err != nil {
		e.logger.Error("lead resolution failed", "error", err, "company_id", companyID)
		e.metrics.ObserveInbound(provider, StatusSkipped)
		return Outcome{Status: StatusSkipped, Reason: "lead_resolution_failed"}
	}

	conv, isFirst, err := e.resolver.ResolveConversation(ctx, lead, string(msg.Channel))
	if err != nil {
		e.logger.Error("conversation resolution failed", "error", err, "lead_id", lead.ID)
		e.metrics.ObserveInbound(provider, StatusSkipped)
		return Outcome{Status: StatusSkipped, Reason: "conversation_resolution_failed"}
	}

	if msg.ExternalMessageID != "" {
		exists, err := e.store.MessageExists(ctx, conv.ID, msg.ExternalMessageID)
		if err != nil {
			e.logger.Error("duplicate check failed", "error", err, "conversation_id", conv.ID)
		} else if exists {
			e.metrics.ObserveInbound(provider, StatusDuplicate)
			return Outcome{Status: StatusDuplicate, Reason: "message_already_recorded", LeadID: lead.ID, ConversationID: conv.ID}
		}
	}

	// History must exclude the triggering message, so load before persisting.
	history, err := e.history.Recent(ctx, conv.ID, assistant.HistoryWindow)
	if err != nil {
		e.logger.Error("history load failed", "error", err, "conversation_id", conv.ID)
		history = nil
	}

	if err := e.store.CreateMessage(ctx, &crm.Message{
		ConversationID:    conv.ID,
		LeadID:            lead.ID,
		SenderType:        crm.SenderLead,
		Direction:         crm.DirectionInbound,
		Content:           msg.Text,
		ExternalMessageID: msg.ExternalMessageID,
		Delivered:         true,
		CreatedAt:         msg.OccurredAt,
	}); err != nil {
		e.logger.Error("inbound message persist failed", "error", err, "conversation_id", conv.ID)
		e.metrics.ObserveInbound(provider, StatusSkipped)
		return Outcome{Status: StatusSkipped, Reason: "message_persist_failed", LeadID: lead.ID, ConversationID: conv.ID}
	}
	e.history.Invalidate(ctx, conv.ID)

	lead.TouchLastInteraction(msg.OccurredAt)
	if err := e.store.UpdateLead(ctx, lead); err != nil {
		e.logger.Error("lead update failed", "error", err, "lead_id", lead.ID)
	}

	done := Outcome{Status: StatusProcessed, LeadID: lead.ID, ConversationID: conv.ID}

	// A human agent owns the thread, or AI replies are disabled. The inbound
	// record is kept either way.
	if conv.Status == crm.ConversationHumanActive || !conv.AIActive {
		done.Reason = "ai_inactive"
		e.metrics.ObserveInbound(provider, StatusProcessed)
		return done
	}

	asst, err := e.selector.SelectAssistant(ctx, conv)
	if err != nil {
		if errors.Is(err, assistant.ErrNoAssistant) {
			done.Reason = "no_assistant"
		} else {
			e.logger.Error("assistant selection failed", "error", err, "conversation_id", conv.ID)
			done.Reason = "assistant_selection_failed"
		}
		e.metrics.ObserveInbound(provider, StatusProcessed)
		return done
	}

	var campaign *crm.VoiceCampaign
	if lead.CampaignID != "" {
		campaign, err = e.store.GetCampaign(ctx, lead.CampaignID)
		if err != nil && !errors.Is(err, crm.ErrNotFound) {
			e.logger.Error("campaign load failed", "error", err, "campaign_id", lead.CampaignID)
		}
	}

	prompt := e.prompts.Build(assistant.PromptInput{
		Assistant:   asst,
		Lead:        lead,
		Campaign:    campaign,
		History:     history,
		NewMessage:  msg.Text,
		IsFirstTurn: isFirst,
	})

	started := time.Now()
	reply, err := e.invoker.Invoke(ctx, prompt)
	e.metrics.ObserveAILatency(e.llmName, time.Since(started).Seconds())
	if err != nil {
		e.logger.Error("model invocation failed", "error", err, "conversation_id", conv.ID)
		done.Reason = "ai_failed"
		e.metrics.ObserveInbound(provider, StatusProcessed)
		return done
	}

	if err := e.dispatch.Dispatch(ctx, lead, conv, reply); err != nil {
		e.logger.Error("reply dispatch failed", "error", err, "conversation_id", conv.ID)
		done.Reason = "dispatch_failed"
	}
	e.history.Invalidate(ctx, conv.ID)
	e.metrics.ObserveInbound(provider, StatusProcessed)
	return done
}

// attribute resolves the owning company. WhatsApp messages are attributed by
// the address they were delivered to (instance id or business number);
// webchat messages name the company directly.
func (e *Engine) attribute(ctx context.Context, msg *inbound.Message) (string, *Outcome) {
	if msg.Channel == inbound.ChannelWebchat {
		if msg.Recipient == "" {
			return "", &Outcome{Status: StatusSkipped, Reason: "missing_company"}
		}
		return msg.Recipient, nil
	}
	conn, err := e.store.ConnectionByAddress(ctx, msg.Recipient)
	if errors.Is(err, crm.ErrNotFound) {
		e.logger.Warn("webhook for unknown connection", "address", msg.Recipient, "provider", msg.Provider)
		return "", &Outcome{Status: StatusSkipped, Reason: "unknown_connection"}
	}
	if err != nil {
		e.logger.Error("connection lookup failed", "error", err, "address", msg.Recipient)
		return "", &Outcome{Status: StatusSkipped, Reason: "connection_lookup_failed"}
	}
	return conn.CompanyID, nil
}
