package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapleads/engage-platform/pkg/logging"
)

// FlowSelector picks the conversation flow for a new conversation. It is
// implemented by the assistant package; declared here to avoid a dependency
// cycle.
type FlowSelector interface {
	SelectFlow(ctx context.Context, companyID, channel string) (*Flow, error)
}

// Greeter emits a flow's greeting as the conversation's first outbound
// message. Implemented by the response dispatcher.
type Greeter interface {
	Greet(ctx context.Context, lead *Lead, conv *Conversation, text string) error
}

// Resolver performs idempotent find-or-create of leads and conversations.
//
// Concurrency contract: two near-simultaneous first-contact webhooks may each
// observe no lead and both create one. This is accepted as a rare, bounded
// race; the query path (oldest lead, most recently updated conversation)
// makes one record canonical on the next message. Duplicate deliveries of
// the same provider message are suppressed via external message ids, not
// row locks.
type Resolver struct {
	leads         LeadRepository
	conversations ConversationRepository
	flows         FlowSelector
	greeter       Greeter
	logger        *logging.Logger
}

// NewResolver wires a resolver. The greeter may be nil; greetings are then
// skipped (e.g. in migration tooling).
func NewResolver(leads LeadRepository, conversations ConversationRepository, flows FlowSelector, greeter Greeter, logger *logging.Logger) *Resolver {
	if leads == nil || conversations == nil {
		panic("crm: lead and conversation repositories required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		leads:         leads,
		conversations: conversations,
		flows:         flows,
		greeter:       greeter,
		logger:        logger,
	}
}

// LeadHints carries optional attributes applied when a lead is first created.
type LeadHints struct {
	Name       string
	Source     string
	CampaignID string
}

// ResolveLead returns the lead owning the phone within the company, creating
// it with funnel defaults on first contact.
func (r *Resolver) ResolveLead(ctx context.Context, companyID, phone string, hints LeadHints) (*Lead, error) {
	if companyID == "" {
		return nil, ErrMissingCompany
	}
	if phone == "" {
		return nil, ErrMissingPhone
	}

	lead, err := r.leads.LeadByPhone(ctx, companyID, phone)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("crm: lead lookup: %w", err)
	}

	source := hints.Source
	if source == "" {
		source = "whatsapp"
	}
	name := hints.Name
	if name == "" {
		name = phone
	}
	lead = &Lead{
		Name:        name,
		CompanyID:   companyID,
		Phone:       phone,
		Source:      source,
		FunnelStage: StageNewLead,
		Score:       0,
		Temperature: TemperatureCold,
		CampaignID:  hints.CampaignID,
	}
	if err := r.leads.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("crm: create lead: %w", err)
	}
	r.logger.Info("lead created", "lead_id", lead.ID, "company_id", companyID, "source", source)
	return lead, nil
}

// ResolveConversation returns the open conversation for the lead on the
// channel, creating one when none exists. The boolean reports first contact:
// a newly created conversation. On creation a flow is selected and, when the
// flow defines a greeting, the greeting is emitted synchronously before
// returning, so the lead's first reply already has context.
func (r *Resolver) ResolveConversation(ctx context.Context, lead *Lead, channel string) (*Conversation, bool, error) {
	conv, err := r.conversations.FindOpenConversation(ctx, lead.ID, channel)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("crm: conversation lookup: %w", err)
	}

	conv = &Conversation{
		LeadID:    lead.ID,
		CompanyID: lead.CompanyID,
		Channel:   channel,
		Status:    ConversationBotActive,
		AIActive:  true,
	}

	var flow *Flow
	if r.flows != nil {
		flow, err = r.flows.SelectFlow(ctx, lead.CompanyID, channel)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("crm: flow selection: %w", err)
		}
		if flow != nil {
			conv.AIFlowID = flow.ID
		}
	}

	if err := r.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("crm: create conversation: %w", err)
	}
	r.logger.Info("conversation opened",
		"conversation_id", conv.ID,
		"lead_id", lead.ID,
		"channel", channel,
		"flow_id", conv.AIFlowID,
	)

	if flow != nil && flow.GreetingMessage != "" && r.greeter != nil {
		if err := r.greeter.Greet(ctx, lead, conv, flow.GreetingMessage); err != nil {
			// The greeting is best effort: the conversation exists and the
			// inbound message will still be answered.
			r.logger.Warn("greeting send failed", "error", err, "conversation_id", conv.ID)
		}
	}

	return conv, true, nil
}

// CloseConversation transitions a conversation to closed. Reopening creates
// a new record on the next inbound message.
func (r *Resolver) CloseConversation(ctx context.Context, conversationID string) error {
	conv, err := r.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	conv.Status = ConversationClosed
	conv.AIActive = false
	return r.conversations.UpdateConversation(ctx, conv)
}
