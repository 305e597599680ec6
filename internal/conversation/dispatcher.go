package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/llm"
	"github.com/zapleads/engage-platform/internal/messaging"
	"github.com/zapleads/engage-platform/internal/observability/metrics"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// Dispatcher delivers bot replies. The conversational record is persisted
// before any transport attempt, so a provider outage never loses a reply;
// the message simply stays delivered=false until a later send succeeds.
type Dispatcher struct {
	messages      crm.MessageRepository
	conversations crm.ConversationRepository
	router        *messaging.Router
	metrics       *metrics.EngineMetrics
	logger        *logging.Logger
	now           func() time.Time
}

func NewDispatcher(messages crm.MessageRepository, conversations crm.ConversationRepository, router *messaging.Router, m *metrics.EngineMetrics, logger *logging.Logger) *Dispatcher {
	if messages == nil || conversations == nil || router == nil {
		panic("conversation: messages, conversations and router required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		messages:      messages,
		conversations: conversations,
		router:        router,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

var _ crm.Greeter = (*Dispatcher)(nil)

// Dispatch unwraps a raw model payload and delivers the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, rawReply string) error {
	text := llm.UnwrapResponse(rawReply)
	if text == "" {
		return errors.New("conversation: model returned an empty reply")
	}
	return d.deliver(ctx, lead, conv, text)
}

// Greet sends a flow's greeting as the conversation's first outbound message.
func (d *Dispatcher) Greet(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, text string) error {
	return d.deliver(ctx, lead, conv, text)
}

// SendDirect delivers operator-authored text through the same persist-first
// path, attributed to a human sender.
func (d *Dispatcher) SendDirect(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, text string) error {
	return d.send(ctx, lead, conv, text, crm.SenderHuman)
}

func (d *Dispatcher) deliver(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, text string) error {
	return d.send(ctx, lead, conv, text, crm.SenderBot)
}

func (d *Dispatcher) send(ctx context.Context, lead *crm.Lead, conv *crm.Conversation, text, senderType string) error {
	msg := &crm.Message{
		ConversationID: conv.ID,
		LeadID:         lead.ID,
		SenderType:     senderType,
		Direction:      crm.DirectionOutbound,
		Content:        text,
		Delivered:      false,
	}
	if err := d.messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("conversation: persist outbound message: %w", err)
	}

	// Transport failures are logged and swallowed: the webhook response must
	// not depend on provider availability, and the reply is already durable.
	sender, err := d.router.ForChannel(conv.Channel)
	if err != nil {
		d.logger.Error("no sender for channel", "channel", conv.Channel, "conversation_id", conv.ID)
		d.metrics.ObserveOutbound(conv.Channel, "unroutable")
	} else if err := sender.SendText(ctx, messaging.OutboundText{
		CompanyID:      conv.CompanyID,
		ConversationID: conv.ID,
		To:             lead.Phone,
		Body:           text,
	}); err != nil {
		d.logger.Error("outbound send failed", "error", err, "channel", conv.Channel, "conversation_id", conv.ID, "message_id", msg.ID)
		d.metrics.ObserveOutbound(conv.Channel, "failed")
	} else {
		if err := d.messages.MarkMessageDelivered(ctx, msg.ID); err != nil {
			d.logger.Error("mark delivered failed", "error", err, "message_id", msg.ID)
		}
		d.metrics.ObserveOutbound(conv.Channel, "sent")
	}

	now := d.now().UTC()
	conv.LastMessageAt = &now
	if err := d.conversations.UpdateConversation(ctx, conv); err != nil {
		d.logger.Error("conversation update failed", "error", err, "conversation_id", conv.ID)
	}
	return nil
}
