package crm

import "time"

// Funnel stages used by the automation engine. Tenants may define more; the
// engine only ever moves leads between these.
const (
	StageNewLead   = "Novo Lead"
	StageContacted = "Em Contato"
	StageQualified = "Qualificado"
	StageLostSale  = "Venda Perdida"
)

// Lead temperatures.
const (
	TemperatureCold = "cold"
	TemperatureWarm = "warm"
	TemperatureHot  = "hot"
)

// Conversation statuses. A lead has at most one open conversation per
// channel; closed conversations are never reopened, a new record is created.
const (
	ConversationBotActive       = "bot_active"
	ConversationHumanActive     = "human_active"
	ConversationWaitingResponse = "waiting_response"
	ConversationClosed          = "closed"
)

// OpenConversationStatuses are the statuses that count as "open" for the
// one-open-conversation-per-channel invariant.
var OpenConversationStatuses = []string{
	ConversationBotActive,
	ConversationHumanActive,
	ConversationWaitingResponse,
}

// Message sender types and directions.
const (
	SenderLead  = "lead"
	SenderBot   = "bot"
	SenderHuman = "human"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Voice campaign types and assignment modes.
const (
	CampaignProspecting  = "prospecting"
	CampaignReengagement = "reengagement"

	AssignmentSpecific = "specific"
	AssignmentPool     = "pool"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Lead is a prospective customer, identified primarily by phone number and
// owned by a company.
type Lead struct {
	ID                string     `json:"id"`
	CompanyID         string     `json:"company_id"`
	UnitID            string     `json:"unit_id,omitempty"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"` // E.164
	Source            string     `json:"source"`
	FunnelStage       string     `json:"funnel_stage"`
	Score             int        `json:"score"` // 0-100
	Temperature       string     `json:"temperature"`
	Interest          string     `json:"interest,omitempty"`
	InterestLevel     string     `json:"interest_level,omitempty"`
	Urgency           string     `json:"urgency,omitempty"`
	OptOutVoice       bool       `json:"opt_out_voice"`
	CampaignID        string     `json:"campaign_id,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TouchLastInteraction stamps the lead's last interaction time.
func (l *Lead) TouchLastInteraction(at time.Time) {
	at = at.UTC()
	l.LastInteractionAt = &at
}

// Conversation is one logical interaction thread between a lead and the
// business on one channel.
type Conversation struct {
	ID                  string     `json:"id"`
	LeadID              string     `json:"lead_id"`
	CompanyID           string     `json:"company_id"`
	Channel             string     `json:"channel"`
	Status              string     `json:"status"`
	AIActive            bool       `json:"ai_active"`
	AssignedAssistantID string     `json:"assigned_assistant_id,omitempty"`
	AIFlowID            string     `json:"ai_flow_id,omitempty"`
	UnreadCount         int        `json:"unread_count"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Open reports whether the conversation still accepts inbound traffic.
func (c *Conversation) Open() bool {
	switch c.Status {
	case ConversationBotActive, ConversationHumanActive, ConversationWaitingResponse:
		return true
	default:
		return false
	}
}

// Message is one entry of the append-only conversation log. Delivery and
// read flags are the only mutable fields.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	LeadID            string    `json:"lead_id"`
	SenderType        string    `json:"sender_type"`
	Direction         string    `json:"direction"`
	Content           string    `json:"content"`
	ExternalMessageID string    `json:"external_message_id,omitempty"`
	Delivered         bool      `json:"delivered"`
	Read              bool      `json:"read"`
	CreatedAt         time.Time `json:"created_at"`
}

// Assistant is an AI persona configuration. Selected by the engine, never
// mutated by it.
type Assistant struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Name            string    `json:"name"`
	SystemPrompt    string    `json:"system_prompt"`
	Rules           []string  `json:"rules"`
	GreetingMessage string    `json:"greeting_message,omitempty"`
	Tone            string    `json:"tone,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Flow is a configured qualification script bound to an assistant and
// optionally a set of channels.
type Flow struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Name            string    `json:"name"`
	Priority        int       `json:"priority"`
	IsActive        bool      `json:"is_active"`
	TriggerSources  []string  `json:"trigger_sources"` // empty means all channels
	GreetingMessage string    `json:"greeting_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Triggers reports whether the flow applies to the given channel.
func (f *Flow) Triggers(channel string) bool {
	if len(f.TriggerSources) == 0 {
		return true
	}
	for _, src := range f.TriggerSources {
		if src == channel {
			return true
		}
	}
	return false
}

// ChannelConnection binds a provider channel (e.g. a WhatsApp instance) to a
// company, with optional assistant and flow defaults.
type ChannelConnection struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Channel       string    `json:"channel"`
	InstanceID    string    `json:"instance_id,omitempty"`
	Status        string    `json:"status"` // "connected" when live
	AssistantID   string    `json:"assistant_id,omitempty"`
	DefaultFlowID string    `json:"default_flow_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Connected reports whether the connection is live.
func (c *ChannelConnection) Connected() bool {
	return c.Status == "connected"
}

// VoiceCall is one outbound dialer call. Created by the dialer; updated
// exactly once by the intent classifier on completion.
type VoiceCall struct {
	ID              string    `json:"id"`
	LeadID          string    `json:"lead_id"`
	CampaignID      string    `json:"campaign_id"`
	ExternalCallID  string    `json:"external_call_id"`
	Status          string    `json:"status"`
	Intent          string    `json:"intent,omitempty"`
	ConfidenceScore int       `json:"confidence_score"`
	Objection       string    `json:"objection,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	Duration        int       `json:"duration"` // seconds
	CreatedAt       time.Time `json:"created_at"`
}

// VoiceCampaign aggregates dialer runs. Response counters are monotonic.
type VoiceCampaign struct {
	ID                  string    `json:"id"`
	CompanyID           string    `json:"company_id"`
	Name                string    `json:"name"`
	Type                string    `json:"type"` // prospecting or reengagement
	CampaignContext     string    `json:"campaign_context,omitempty"`
	AssignmentMode      string    `json:"assignment_mode"`
	AssignedToUserID    string    `json:"assigned_to_user_id,omitempty"`
	TotalYesResponses   int       `json:"total_yes_responses"`
	TotalMaybeResponses int       `json:"total_maybe_responses"`
	TotalNoResponses    int       `json:"total_no_responses"`
	CreatedAt           time.Time `json:"created_at"`
}

// Task is a follow-up item created by the funnel automation engine. Never
// updated by the engine after creation.
type Task struct {
	ID               string    `json:"id"`
	LeadID           string    `json:"lead_id"`
	AssignedToUserID string    `json:"assigned_to_user_id,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Priority         string    `json:"priority"`
	DueDate          time.Time `json:"due_date"`
	SourceID         string    `json:"source_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
