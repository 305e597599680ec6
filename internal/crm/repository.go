package crm

import "context"

// LeadRepository stores leads.
type LeadRepository interface {
	GetLead(ctx context.Context, id string) (*Lead, error)
	// LeadByPhone looks a lead up by its canonical phone within a company.
	LeadByPhone(ctx context.Context, companyID, phone string) (*Lead, error)
	CreateLead(ctx context.Context, lead *Lead) error
	UpdateLead(ctx context.Context, lead *Lead) error
}

// ConversationRepository stores conversations.
type ConversationRepository interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// FindOpenConversation returns the most recently updated open
	// conversation for the lead on the given channel, or ErrNotFound.
	FindOpenConversation(ctx context.Context, leadID, channel string) (*Conversation, error)
	CreateConversation(ctx context.Context, conv *Conversation) error
	UpdateConversation(ctx context.Context, conv *Conversation) error
}

// MessageRepository stores the append-only message log.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *Message) error
	// MessageExists reports whether a message with the provider's external
	// id was already recorded for the conversation. Used to make duplicate
	// webhook deliveries idempotent.
	MessageExists(ctx context.Context, conversationID, externalID string) (bool, error)
	// RecentMessages returns the most recent messages of a conversation in
	// chronological (oldest first) order, at most limit entries.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	MarkMessageDelivered(ctx context.Context, id string) error
}

// AssistantRepository reads assistant configurations.
type AssistantRepository interface {
	GetAssistant(ctx context.Context, id string) (*Assistant, error)
	// NewestActiveAssistant returns the most recently created active
	// assistant for the company, or ErrNotFound.
	NewestActiveAssistant(ctx context.Context, companyID string) (*Assistant, error)
}

// FlowRepository reads conversation flow configurations.
type FlowRepository interface {
	GetFlow(ctx context.Context, id string) (*Flow, error)
	// ActiveFlows returns active flows for the company ordered by
	// descending priority.
	ActiveFlows(ctx context.Context, companyID string) ([]Flow, error)
}

// ConnectionRepository reads channel connection records.
type ConnectionRepository interface {
	// ActiveConnection returns the connected channel connection for the
	// company/channel pair, or ErrNotFound.
	ActiveConnection(ctx context.Context, companyID, channel string) (*ChannelConnection, error)
	// ConnectionByAddress resolves a connection by its inbound address: the
	// provider instance id or the business number a message was delivered
	// to. Used to attribute webhooks to a company.
	ConnectionByAddress(ctx context.Context, address string) (*ChannelConnection, error)
}

// TaskRepository stores follow-up tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// VoiceCallRepository stores dialer call records.
type VoiceCallRepository interface {
	CallByExternalID(ctx context.Context, externalCallID string) (*VoiceCall, error)
	UpdateCall(ctx context.Context, call *VoiceCall) error
}

// CampaignRepository stores voice campaigns.
type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (*VoiceCampaign, error)
	// IncrementCampaignResponse bumps the monotonic response counter for
	// the given intent ("yes", "maybe" or "no").
	IncrementCampaignResponse(ctx context.Context, id, intent string) error
}

// Store is the full persistence collaborator the engine works against.
type Store interface {
	LeadRepository
	ConversationRepository
	MessageRepository
	AssistantRepository
	FlowRepository
	ConnectionRepository
	TaskRepository
	VoiceCallRepository
	CampaignRepository
}
