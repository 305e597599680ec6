package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/zapleads/engage-platform/internal/conversation"
	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/http/handlers"
	"github.com/zapleads/engage-platform/pkg/logging"
)

type noopEngine struct{}

func (noopEngine) HandleWebhook(context.Context, []byte) conversation.Outcome {
	return conversation.Outcome{Status: conversation.StatusSkipped, Reason: "unrecognized_payload"}
}

type noopSender struct{}

func (noopSender) SendDirect(context.Context, *crm.Lead, *crm.Conversation, string) error {
	return nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	store := crm.NewMemoryStore()
	return New(&Config{
		Logger:             logging.Default(),
		WhatsAppWebhook:    handlers.NewWhatsAppWebhookHandler(noopEngine{}, "verify-tok", nil),
		AdminConversations: handlers.NewAdminConversationsHandler(store, noopSender{}, nil),
		AdminAuthSecret:    "router-secret",
	})
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestWebhookRoutesAreRegistered(t *testing.T) {
	r := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-tok&hub.challenge=ch-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ch-1", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	r := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/c-1", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAcceptSignedToken(t *testing.T) {
	r := testRouter(t)

	claims := jwt.RegisteredClaims{
		Subject:   "operator-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("router-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/c-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Authenticated but the conversation does not exist.
	require.Equal(t, http.StatusNotFound, rec.Code)
}
