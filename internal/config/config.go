package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	HistoryTTL    time.Duration

	// How long processed webhook event ids are kept before the purge job
	// deletes them. Providers stop retrying well inside this window.
	ProcessedEventRetention time.Duration

	// Phone normalization. The default country code is a locale-specific
	// heuristic (Brazilian numbers); tenants in other locales override it.
	DefaultCountryCode string

	// Z-API outbound transport. Instance id and token are read from the
	// environment at startup, never persisted with messages.
	ZAPIBaseURL    string
	ZAPIInstanceID string
	ZAPIToken      string

	// Meta Cloud API webhook verification.
	WhatsAppVerifyToken string

	// LLM collaborator selection: gemini, bedrock or webhook.
	LLMProvider    string
	GeminiAPIKey   string
	GeminiModelID  string
	AWSRegion      string
	BedrockModelID string
	LLMWebhookURL  string
	LLMTimeout     time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),

		ProcessedEventRetention: getEnvAsDuration("PROCESSED_EVENT_RETENTION", 30*24*time.Hour),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "55"),

		ZAPIBaseURL:    getEnv("ZAPI_BASE_URL", "https://api.z-api.io"),
		ZAPIInstanceID: getEnv("ZAPI_INSTANCE_ID", ""),
		ZAPIToken:      getEnv("ZAPI_TOKEN", ""),

		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		LLMWebhookURL:  getEnv("LLM_WEBHOOK_URL", ""),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
