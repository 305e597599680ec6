package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool the store needs; tests substitute a
// mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the Store collaborator on pgx.
type PostgresStore struct {
	pool Querier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("crm: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// NewPostgresStoreWithQuerier is used by tests to inject a mock connection.
func NewPostgresStoreWithQuerier(q Querier) *PostgresStore {
	if q == nil {
		panic("crm: querier required")
	}
	return &PostgresStore{pool: q}
}

var _ Store = (*PostgresStore)(nil)

const leadColumns = `id, company_id, unit_id, name, phone, source, funnel_stage, score,
	temperature, interest, interest_level, urgency, opt_out_voice, campaign_id,
	notes, last_interaction_at, created_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.CompanyID, &lead.UnitID, &lead.Name, &lead.Phone,
		&lead.Source, &lead.FunnelStage, &lead.Score, &lead.Temperature,
		&lead.Interest, &lead.InterestLevel, &lead.Urgency, &lead.OptOutVoice,
		&lead.CampaignID, &lead.Notes, &lead.LastInteractionAt, &lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan lead: %w", err)
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return scanLead(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) LeadByPhone(ctx context.Context, companyID, phone string) (*Lead, error) {
	if companyID == "" {
		return nil, ErrMissingCompany
	}
	if phone == "" {
		return nil, ErrMissingPhone
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE company_id = $1 AND phone = $2 ORDER BY created_at ASC LIMIT 1`
	return scanLead(s.pool.QueryRow(ctx, query, companyID, phone))
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	query := `
		INSERT INTO leads (id, company_id, unit_id, name, phone, source, funnel_stage,
			score, temperature, interest, interest_level, urgency, opt_out_voice,
			campaign_id, notes, last_interaction_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		lead.ID, lead.CompanyID, lead.UnitID, lead.Name, lead.Phone, lead.Source,
		lead.FunnelStage, lead.Score, lead.Temperature, lead.Interest,
		lead.InterestLevel, lead.Urgency, lead.OptOutVoice, lead.CampaignID,
		lead.Notes, lead.LastInteractionAt,
	).Scan(&lead.CreatedAt); err != nil {
		return fmt.Errorf("crm: insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *Lead) error {
	query := `
		UPDATE leads
		SET name = $2, funnel_stage = $3, score = $4, temperature = $5,
			interest = $6, interest_level = $7, urgency = $8, opt_out_voice = $9,
			campaign_id = $10, notes = $11, last_interaction_at = $12
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, query,
		lead.ID, lead.Name, lead.FunnelStage, lead.Score, lead.Temperature,
		lead.Interest, lead.InterestLevel, lead.Urgency, lead.OptOutVoice,
		lead.CampaignID, lead.Notes, lead.LastInteractionAt,
	)
	if err != nil {
		return fmt.Errorf("crm: update lead: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const conversationColumns = `id, lead_id, company_id, channel, status, ai_active,
	assigned_assistant_id, ai_flow_id, unread_count, last_message_at, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var conv Conversation
	err := row.Scan(
		&conv.ID, &conv.LeadID, &conv.CompanyID, &conv.Channel, &conv.Status,
		&conv.AIActive, &conv.AssignedAssistantID, &conv.AIFlowID,
		&conv.UnreadCount, &conv.LastMessageAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan conversation: %w", err)
	}
	return &conv, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) FindOpenConversation(ctx context.Context, leadID, channel string) (*Conversation, error) {
	// One open conversation per (lead, channel) is a query-path contract,
	// not a unique index; when a race produced two, the most recently
	// updated one becomes canonical.
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE lead_id = $1 AND channel = $2 AND status = ANY($3)
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanConversation(s.pool.QueryRow(ctx, query, leadID, channel, OpenConversationStatuses))
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	query := `
		INSERT INTO conversations (id, lead_id, company_id, channel, status, ai_active,
			assigned_assistant_id, ai_flow_id, unread_count, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	if err := s.pool.QueryRow(ctx, query,
		conv.ID, conv.LeadID, conv.CompanyID, conv.Channel, conv.Status,
		conv.AIActive, conv.AssignedAssistantID, conv.AIFlowID,
		conv.UnreadCount, conv.LastMessageAt,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return fmt.Errorf("crm: insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		UPDATE conversations
		SET status = $2, ai_active = $3, assigned_assistant_id = $4, ai_flow_id = $5,
			unread_count = $6, last_message_at = $7, updated_at = now()
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, query,
		conv.ID, conv.Status, conv.AIActive, conv.AssignedAssistantID,
		conv.AIFlowID, conv.UnreadCount, conv.LastMessageAt,
	)
	if err != nil {
		return fmt.Errorf("crm: update conversation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	query := `
		INSERT INTO messages (id, conversation_id, lead_id, sender_type, direction,
			content, external_message_id, delivered, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.LeadID, msg.SenderType, msg.Direction,
		msg.Content, msg.ExternalMessageID, msg.Delivered, msg.Read,
	).Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("crm: insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) MessageExists(ctx context.Context, conversationID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	query := `SELECT 1 FROM messages WHERE conversation_id = $1 AND external_message_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, conversationID, externalID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("crm: message lookup: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, lead_id, sender_type, direction, content,
			external_message_id, delivered, read, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("crm: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.LeadID, &msg.SenderType,
			&msg.Direction, &msg.Content, &msg.ExternalMessageID,
			&msg.Delivered, &msg.Read, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("crm: scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list messages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkMessageDelivered(ctx context.Context, id string) error {
	// Idempotent by construction: re-marking a delivered message is a no-op.
	ct, err := s.pool.Exec(ctx, `UPDATE messages SET delivered = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("crm: mark delivered: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssistant(row pgx.Row) (*Assistant, error) {
	var a Assistant
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.Name, &a.SystemPrompt, &a.Rules,
		&a.GreetingMessage, &a.Tone, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan assistant: %w", err)
	}
	return &a, nil
}

const assistantColumns = `id, company_id, name, system_prompt, rules, greeting_message, tone, is_active, created_at`

func (s *PostgresStore) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	query := `SELECT ` + assistantColumns + ` FROM assistants WHERE id = $1`
	return scanAssistant(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) NewestActiveAssistant(ctx context.Context, companyID string) (*Assistant, error) {
	query := `
		SELECT ` + assistantColumns + `
		FROM assistants
		WHERE company_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanAssistant(s.pool.QueryRow(ctx, query, companyID))
}

const flowColumns = `id, company_id, name, priority, is_active, trigger_sources, greeting_message, created_at`

func scanFlow(row pgx.Row) (*Flow, error) {
	var f Flow
	err := row.Scan(
		&f.ID, &f.CompanyID, &f.Name, &f.Priority, &f.IsActive,
		&f.TriggerSources, &f.GreetingMessage, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan flow: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM ai_flows WHERE id = $1`
	return scanFlow(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) ActiveFlows(ctx context.Context, companyID string) ([]Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM ai_flows
		WHERE company_id = $1 AND is_active
		ORDER BY priority DESC, created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("crm: list flows: %w", err)
	}
	defer rows.Close()

	var out []Flow
	for rows.Next() {
		var f Flow
		if err := rows.Scan(
			&f.ID, &f.CompanyID, &f.Name, &f.Priority, &f.IsActive,
			&f.TriggerSources, &f.GreetingMessage, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("crm: scan flow: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list flows: %w", err)
	}
	return out, nil
}

const connectionColumns = `id, company_id, channel, instance_id, status, assistant_id, default_flow_id, created_at`

func scanConnection(row pgx.Row) (*ChannelConnection, error) {
	var c ChannelConnection
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Channel, &c.InstanceID, &c.Status,
		&c.AssistantID, &c.DefaultFlowID, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan connection: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ActiveConnection(ctx context.Context, companyID, channel string) (*ChannelConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM channel_connections
		WHERE company_id = $1 AND channel = $2 AND status = 'connected'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanConnection(s.pool.QueryRow(ctx, query, companyID, channel))
}

func (s *PostgresStore) ConnectionByAddress(ctx context.Context, address string) (*ChannelConnection, error) {
	if address == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + connectionColumns + `
		FROM channel_connections
		WHERE instance_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanConnection(s.pool.QueryRow(ctx, query, address))
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	query := `
		INSERT INTO tasks (id, lead_id, assigned_to_user_id, title, description,
			priority, due_date, source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		task.ID, task.LeadID, task.AssignedToUserID, task.Title,
		task.Description, task.Priority, task.DueDate, task.SourceID,
	).Scan(&task.CreatedAt); err != nil {
		return fmt.Errorf("crm: insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) CallByExternalID(ctx context.Context, externalCallID string) (*VoiceCall, error) {
	query := `
		SELECT id, lead_id, campaign_id, external_call_id, status,
			intent, confidence_score, objection,
			transcript, duration, created_at
		FROM voice_calls
		WHERE external_call_id = $1
	`
	var c VoiceCall
	err := s.pool.QueryRow(ctx, query, externalCallID).Scan(
		&c.ID, &c.LeadID, &c.CampaignID, &c.ExternalCallID, &c.Status,
		&c.Intent, &c.ConfidenceScore, &c.Objection, &c.Transcript,
		&c.Duration, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan voice call: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCall(ctx context.Context, call *VoiceCall) error {
	query := `
		UPDATE voice_calls
		SET status = $2, intent = $3, confidence_score = $4,
			objection = $5, transcript = $6, duration = $7
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, query,
		call.ID, call.Status, call.Intent, call.ConfidenceScore,
		call.Objection, call.Transcript, call.Duration,
	)
	if err != nil {
		return fmt.Errorf("crm: update voice call: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*VoiceCampaign, error) {
	query := `
		SELECT id, company_id, name, type, COALESCE(campaign_context, ''),
			assignment_mode, assigned_to_user_id,
			total_yes_responses, total_maybe_responses, total_no_responses, created_at
		FROM voice_campaigns
		WHERE id = $1
	`
	var c VoiceCampaign
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Type, &c.CampaignContext,
		&c.AssignmentMode, &c.AssignedToUserID, &c.TotalYesResponses,
		&c.TotalMaybeResponses, &c.TotalNoResponses, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crm: scan campaign: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) IncrementCampaignResponse(ctx context.Context, id, intent string) error {
	var column string
	switch intent {
	case "yes":
		column = "total_yes_responses"
	case "maybe":
		column = "total_maybe_responses"
	case "no":
		column = "total_no_responses"
	default:
		return nil
	}
	query := fmt.Sprintf(`UPDATE voice_campaigns SET %s = %s + 1 WHERE id = $1`, column, column)
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("crm: increment campaign counter: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
