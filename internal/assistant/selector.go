package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// ErrNoAssistant is returned when no active assistant can be resolved for a
// conversation. The caller treats it as a reportable skip, not a failure.
var ErrNoAssistant = errors.New("assistant: no active assistant configured")

// Selector resolves which assistant and flow answer a conversation.
//
// Assistant resolution order, first hit wins:
//  1. the conversation's sticky assignedAssistantID, if still active
//  2. the assistant bound to the active channel connection
//  3. the newest active assistant of the company
//
// Flow resolution order:
//  1. the channel connection's default flow, if still active
//  2. the highest-priority active flow whose trigger sources include the
//     channel (an empty trigger list matches every channel)
type Selector struct {
	assistants  crm.AssistantRepository
	flows       crm.FlowRepository
	connections crm.ConnectionRepository
	logger      *logging.Logger
}

func NewSelector(assistants crm.AssistantRepository, flows crm.FlowRepository, connections crm.ConnectionRepository, logger *logging.Logger) *Selector {
	if assistants == nil || flows == nil || connections == nil {
		panic("assistant: repositories required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Selector{assistants: assistants, flows: flows, connections: connections, logger: logger}
}

// SelectAssistant resolves the assistant for the conversation.
func (s *Selector) SelectAssistant(ctx context.Context, conv *crm.Conversation) (*crm.Assistant, error) {
	if conv.AssignedAssistantID != "" {
		a, err := s.assistants.GetAssistant(ctx, conv.AssignedAssistantID)
		switch {
		case err == nil && a.IsActive:
			return a, nil
		case err != nil && !errors.Is(err, crm.ErrNotFound):
			return nil, fmt.Errorf("assistant: assigned lookup: %w", err)
		default:
			// Sticky assignment points at a deactivated or deleted
			// assistant. Fall through to the connection binding.
			s.logger.Warn("assigned assistant unavailable, falling back",
				"conversation_id", conv.ID, "assistant_id", conv.AssignedAssistantID)
		}
	}

	conn, err := s.connections.ActiveConnection(ctx, conv.CompanyID, conv.Channel)
	if err != nil && !errors.Is(err, crm.ErrNotFound) {
		return nil, fmt.Errorf("assistant: connection lookup: %w", err)
	}
	if err == nil && conn.Connected() && conn.AssistantID != "" {
		a, err := s.assistants.GetAssistant(ctx, conn.AssistantID)
		if err != nil && !errors.Is(err, crm.ErrNotFound) {
			return nil, fmt.Errorf("assistant: connection assistant lookup: %w", err)
		}
		if err == nil && a.IsActive {
			return a, nil
		}
	}

	a, err := s.assistants.NewestActiveAssistant(ctx, conv.CompanyID)
	if errors.Is(err, crm.ErrNotFound) {
		return nil, ErrNoAssistant
	}
	if err != nil {
		return nil, fmt.Errorf("assistant: newest active lookup: %w", err)
	}
	return a, nil
}

// SelectFlow resolves the conversation flow for a company/channel pair. It
// satisfies crm.FlowSelector. Returns crm.ErrNotFound when no flow applies.
func (s *Selector) SelectFlow(ctx context.Context, companyID, channel string) (*crm.Flow, error) {
	conn, err := s.connections.ActiveConnection(ctx, companyID, channel)
	if err != nil && !errors.Is(err, crm.ErrNotFound) {
		return nil, fmt.Errorf("assistant: connection lookup: %w", err)
	}
	if err == nil && conn.DefaultFlowID != "" {
		flow, err := s.flows.GetFlow(ctx, conn.DefaultFlowID)
		if err != nil && !errors.Is(err, crm.ErrNotFound) {
			return nil, fmt.Errorf("assistant: default flow lookup: %w", err)
		}
		if err == nil && flow.IsActive {
			return flow, nil
		}
	}

	flows, err := s.flows.ActiveFlows(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("assistant: active flows: %w", err)
	}
	for i := range flows {
		if flows[i].Triggers(channel) {
			flow := flows[i]
			return &flow, nil
		}
	}
	return nil, crm.ErrNotFound
}

var _ crm.FlowSelector = (*Selector)(nil)
