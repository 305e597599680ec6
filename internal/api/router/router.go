// Package router wires the HTTP surface together.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zapleads/engage-platform/internal/channels/webchat"
	"github.com/zapleads/engage-platform/internal/http/handlers"
	httpmiddleware "github.com/zapleads/engage-platform/internal/http/middleware"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	WhatsAppWebhook    *handlers.WhatsAppWebhookHandler
	VoiceCallback      *handlers.VoiceCallbackHandler
	AdminConversations *handlers.AdminConversationsHandler
	Webchat            *webchat.Handler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New builds the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsAppWebhook != nil {
			public.Get("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleVerify)
			public.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
		}
		if cfg.VoiceCallback != nil {
			public.Post("/webhooks/voice/callback", cfg.VoiceCallback.HandleCallback)
		}
		if cfg.Webchat != nil {
			public.Route("/webchat", cfg.Webchat.Register)
		}
	})

	if cfg.AdminConversations != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/conversations/{id}", func(conv chi.Router) {
				conv.Get("/", cfg.AdminConversations.HandleGet)
				conv.Post("/takeover", cfg.AdminConversations.HandleTakeover)
				conv.Post("/release", cfg.AdminConversations.HandleRelease)
				conv.Post("/ai", cfg.AdminConversations.HandleAIToggle)
				conv.Post("/reply", cfg.AdminConversations.HandleReply)
			})
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
