package crm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of the Store collaborator. It
// backs unit tests and local development without Postgres, mirroring the
// query semantics of the SQL implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	leads         map[string]*Lead
	conversations map[string]*Conversation
	messages      map[string]*Message
	assistants    map[string]*Assistant
	flows         map[string]*Flow
	connections   map[string]*ChannelConnection
	tasks         map[string]*Task
	calls         map[string]*VoiceCall
	campaigns     map[string]*VoiceCampaign
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:         map[string]*Lead{},
		conversations: map[string]*Conversation{},
		messages:      map[string]*Message{},
		assistants:    map[string]*Assistant{},
		flows:         map[string]*Flow{},
		connections:   map[string]*ChannelConnection{},
		tasks:         map[string]*Task{},
		calls:         map[string]*VoiceCall{},
		campaigns:     map[string]*VoiceCampaign{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *lead
	return &cp, nil
}

func (s *MemoryStore) LeadByPhone(ctx context.Context, companyID, phone string) (*Lead, error) {
	if companyID == "" {
		return nil, ErrMissingCompany
	}
	if phone == "" {
		return nil, ErrMissingPhone
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Lead
	for _, lead := range s.leads {
		if lead.CompanyID != companyID || lead.Phone != phone {
			continue
		}
		// Oldest record wins so a racing duplicate insert still resolves
		// to one canonical lead.
		if found == nil || lead.CreatedAt.Before(found.CreatedAt) ||
			(lead.CreatedAt.Equal(found.CreatedAt) && lead.ID < found.ID) {
			found = lead
		}
	}
	if found != nil {
		cp := *found
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateLead(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lead
	s.leads[lead.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateLead(ctx context.Context, lead *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	cp := *lead
	s.leads[lead.ID] = &cp
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) FindOpenConversation(ctx context.Context, leadID, channel string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *Conversation
	for _, conv := range s.conversations {
		if conv.LeadID != leadID || conv.Channel != channel || !conv.Open() {
			continue
		}
		if newest == nil || conv.UpdatedAt.After(newest.UpdatedAt) {
			newest = conv
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	conv.UpdatedAt = time.Now().UTC()
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *MemoryStore) MessageExists(ctx context.Context, conversationID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID && msg.ExternalMessageID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) MarkMessageDelivered(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Delivered = true
	return nil
}

// Messages returns all messages of a conversation, for assertions in tests.
func (s *MemoryStore) Messages(conversationID string) []Message {
	out, _ := s.RecentMessages(context.Background(), conversationID, 0)
	return out
}

// AllMessages returns every stored message in chronological order.
func (s *MemoryStore) AllMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assistants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) NewestActiveAssistant(ctx context.Context, companyID string) (*Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *Assistant
	for _, a := range s.assistants {
		if a.CompanyID != companyID || !a.IsActive {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

// PutAssistant seeds an assistant record.
func (s *MemoryStore) PutAssistant(a *Assistant) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assistants[a.ID] = &cp
}

func (s *MemoryStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ActiveFlows(ctx context.Context, companyID string) ([]Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Flow
	for _, f := range s.flows {
		if f.CompanyID == companyID && f.IsActive {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// PutFlow seeds a flow record.
func (s *MemoryStore) PutFlow(f *Flow) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.flows[f.ID] = &cp
}

func (s *MemoryStore) ActiveConnection(ctx context.Context, companyID, channel string) (*ChannelConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.connections {
		if c.CompanyID == companyID && c.Channel == channel && c.Connected() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ConnectionByAddress(ctx context.Context, address string) (*ChannelConnection, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.connections {
		if c.InstanceID == address {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// PutConnection seeds a channel connection record.
func (s *MemoryStore) PutConnection(c *ChannelConnection) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.connections[c.ID] = &cp
}

func (s *MemoryStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

// Tasks returns all stored tasks, for assertions in tests.
func (s *MemoryStore) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) CallByExternalID(ctx context.Context, externalCallID string) (*VoiceCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.calls {
		if c.ExternalCallID == externalCallID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateCall(ctx context.Context, call *VoiceCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[call.ID]; !ok {
		return ErrNotFound
	}
	cp := *call
	s.calls[call.ID] = &cp
	return nil
}

// PutCall seeds a voice call record.
func (s *MemoryStore) PutCall(c *VoiceCall) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.calls[c.ID] = &cp
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*VoiceCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) IncrementCampaignResponse(ctx context.Context, id, intent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	switch intent {
	case "yes":
		c.TotalYesResponses++
	case "maybe":
		c.TotalMaybeResponses++
	case "no":
		c.TotalNoResponses++
	}
	return nil
}

// PutCampaign seeds a campaign record.
func (s *MemoryStore) PutCampaign(c *VoiceCampaign) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.campaigns[c.ID] = &cp
}
