package crm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubFlowSelector struct {
	flow *Flow
	err  error
}

func (s *stubFlowSelector) SelectFlow(ctx context.Context, companyID, channel string) (*Flow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.flow, nil
}

type recordingGreeter struct {
	mu    sync.Mutex
	texts []string
}

func (g *recordingGreeter) Greet(ctx context.Context, lead *Lead, conv *Conversation, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts = append(g.texts, text)
	return nil
}

func TestResolveLeadCreatesWithDefaults(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	lead, err := r.ResolveLead(context.Background(), "co-1", "+5511987654321", LeadHints{Name: "Maria", Source: "whatsapp"})
	require.NoError(t, err)
	require.Equal(t, StageNewLead, lead.FunnelStage)
	require.Equal(t, 0, lead.Score)
	require.Equal(t, TemperatureCold, lead.Temperature)
	require.Equal(t, "Maria", lead.Name)

	// Second resolution finds the same lead.
	again, err := r.ResolveLead(context.Background(), "co-1", "+5511987654321", LeadHints{})
	require.NoError(t, err)
	require.Equal(t, lead.ID, again.ID)
}

func TestResolveLeadScopedByCompany(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	a, err := r.ResolveLead(context.Background(), "co-1", "+5511987654321", LeadHints{})
	require.NoError(t, err)
	b, err := r.ResolveLead(context.Background(), "co-2", "+5511987654321", LeadHints{})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestResolveLeadValidation(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	_, err := r.ResolveLead(context.Background(), "", "+55119", LeadHints{})
	require.ErrorIs(t, err, ErrMissingCompany)
	_, err = r.ResolveLead(context.Background(), "co-1", "", LeadHints{})
	require.ErrorIs(t, err, ErrMissingPhone)
}

func TestResolveConversationFirstContactGreets(t *testing.T) {
	store := NewMemoryStore()
	greeter := &recordingGreeter{}
	flow := &Flow{ID: "flow-1", CompanyID: "co-1", IsActive: true, GreetingMessage: "Olá! Como posso ajudar?"}
	r := NewResolver(store, store, &stubFlowSelector{flow: flow}, greeter, nil)

	lead := &Lead{CompanyID: "co-1", Phone: "+5511987654321", FunnelStage: StageNewLead}
	require.NoError(t, store.CreateLead(context.Background(), lead))

	conv, first, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	require.True(t, first)
	require.Equal(t, ConversationBotActive, conv.Status)
	require.True(t, conv.AIActive)
	require.Equal(t, "flow-1", conv.AIFlowID)
	require.Equal(t, []string{"Olá! Como posso ajudar?"}, greeter.texts)

	// Second message reuses the open conversation, no second greeting.
	conv2, first, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	require.False(t, first)
	require.Equal(t, conv.ID, conv2.ID)
	require.Len(t, greeter.texts, 1)
}

func TestResolveConversationNoFlowNoGreeting(t *testing.T) {
	store := NewMemoryStore()
	greeter := &recordingGreeter{}
	r := NewResolver(store, store, &stubFlowSelector{err: ErrNotFound}, greeter, nil)

	lead := &Lead{CompanyID: "co-1", Phone: "+5511987654321"}
	require.NoError(t, store.CreateLead(context.Background(), lead))

	conv, first, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	require.True(t, first)
	require.Empty(t, conv.AIFlowID)
	require.Empty(t, greeter.texts)
}

func TestResolveConversationPerChannel(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	lead := &Lead{CompanyID: "co-1", Phone: "+5511987654321"}
	require.NoError(t, store.CreateLead(context.Background(), lead))

	wa, _, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	web, _, err := r.ResolveConversation(context.Background(), lead, "webchat")
	require.NoError(t, err)
	require.NotEqual(t, wa.ID, web.ID)
}

func TestClosedConversationOpensNewRecord(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	lead := &Lead{CompanyID: "co-1", Phone: "+5511987654321"}
	require.NoError(t, store.CreateLead(context.Background(), lead))

	conv, _, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	require.NoError(t, r.CloseConversation(context.Background(), conv.ID))

	reopened, first, err := r.ResolveConversation(context.Background(), lead, "whatsapp")
	require.NoError(t, err)
	require.True(t, first)
	require.NotEqual(t, conv.ID, reopened.ID)
}

// Two concurrent first contacts may create duplicate leads; the query path
// must still converge on one canonical lead afterwards, and no message is
// lost either way.
func TestConcurrentFirstContactConverges(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, store, nil, nil, nil)

	const phone = "+5511987654321"
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ResolveLead(context.Background(), "co-1", phone, LeadHints{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	canonical, err := r.ResolveLead(context.Background(), "co-1", phone, LeadHints{})
	require.NoError(t, err)
	next, err := r.ResolveLead(context.Background(), "co-1", phone, LeadHints{})
	require.NoError(t, err)
	require.Equal(t, canonical.ID, next.ID)
}

func TestMessageExistsSuppressesDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	msg := &Message{ConversationID: "conv-1", LeadID: "lead-1", SenderType: SenderLead, Direction: DirectionInbound, Content: "oi", ExternalMessageID: "ext-1"}
	require.NoError(t, store.CreateMessage(ctx, msg))

	dup, err := store.MessageExists(ctx, "conv-1", "ext-1")
	require.NoError(t, err)
	require.True(t, dup)

	// Messages without a provider id never collide.
	dup, err = store.MessageExists(ctx, "conv-1", "")
	require.NoError(t, err)
	require.False(t, dup)
}
