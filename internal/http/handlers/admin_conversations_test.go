package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zapleads/engage-platform/internal/crm"
)

type recordingSender struct {
	texts []string
	err   error
}

func (s *recordingSender) SendDirect(_ context.Context, _ *crm.Lead, _ *crm.Conversation, text string) error {
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

type adminFixture struct {
	store  *crm.MemoryStore
	sender *recordingSender
	router chi.Router
	conv   *crm.Conversation
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	store := crm.NewMemoryStore()

	lead := &crm.Lead{CompanyID: "co-1", Name: "Bruna", Phone: "+5511966665555", FunnelStage: crm.StageNewLead}
	require.NoError(t, store.CreateLead(context.Background(), lead))

	conv := &crm.Conversation{
		LeadID:    lead.ID,
		CompanyID: "co-1",
		Channel:   "whatsapp",
		Status:    crm.ConversationBotActive,
		AIActive:  true,
	}
	require.NoError(t, store.CreateConversation(context.Background(), conv))

	sender := &recordingSender{}
	h := NewAdminConversationsHandler(store, sender, nil)

	r := chi.NewRouter()
	r.Get("/admin/conversations/{id}", h.HandleGet)
	r.Post("/admin/conversations/{id}/takeover", h.HandleTakeover)
	r.Post("/admin/conversations/{id}/release", h.HandleRelease)
	r.Post("/admin/conversations/{id}/ai", h.HandleAIToggle)
	r.Post("/admin/conversations/{id}/reply", h.HandleReply)

	return &adminFixture{store: store, sender: sender, router: r, conv: conv}
}

func (f *adminFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (f *adminFixture) reload(t *testing.T) *crm.Conversation {
	t.Helper()
	conv, err := f.store.GetConversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	return conv
}

func TestAdminTakeoverSilencesAssistant(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/takeover", "")
	require.Equal(t, http.StatusOK, rec.Code)

	conv := f.reload(t)
	require.Equal(t, crm.ConversationHumanActive, conv.Status)
	require.False(t, conv.AIActive)
}

func TestAdminReleaseRestoresAssistant(t *testing.T) {
	f := newAdminFixture(t)
	f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/takeover", "")

	rec := f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/release", "")
	require.Equal(t, http.StatusOK, rec.Code)

	conv := f.reload(t)
	require.Equal(t, crm.ConversationBotActive, conv.Status)
	require.True(t, conv.AIActive)
}

func TestAdminAIToggleLeavesStatusAlone(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/ai", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	conv := f.reload(t)
	require.Equal(t, crm.ConversationBotActive, conv.Status)
	require.False(t, conv.AIActive)
}

func TestAdminReplySendsAsHuman(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/reply", `{"text":"Olá, aqui é a equipe."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"Olá, aqui é a equipe."}, f.sender.texts)
}

func TestAdminReplyRequiresText(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/conversations/"+f.conv.ID+"/reply", `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.sender.texts)
}

func TestAdminUnknownConversationIs404(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/conversations/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminGetReturnsThread(t *testing.T) {
	f := newAdminFixture(t)
	require.NoError(t, f.store.CreateMessage(context.Background(), &crm.Message{
		ConversationID: f.conv.ID,
		LeadID:         f.conv.LeadID,
		SenderType:     crm.SenderLead,
		Direction:      crm.DirectionInbound,
		Content:        "Oi, quanto custa?",
	}))

	rec := f.do(t, http.MethodGet, "/admin/conversations/"+f.conv.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Oi, quanto custa?")
	require.Contains(t, rec.Body.String(), "Bruna")
}
