package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, loaded once at startup and
// passed explicitly to every component that needs it. Nothing re-reads the
// environment after Load returns.
type Config struct {
	AppEnv  string
	AppPort int

	DatabaseURL                string
	DatabaseMaxConnections     int
	DatabaseMaxIdleConnections int
	DatabaseConnectionLifetime time.Duration
	RunMigrations              bool

	RedisURL string

	SecretKey      string
	JWTSecret      string
	AccessMinutes  int
	RefreshDays    int
	ALLOWEDOrigins string

	LMStudioBaseURL    string
	LMStudioChatModel  string
	LMStudioEmbedModel string
	LMStudioTimeout    time.Duration
	LLMRateRPS         float64
	LLMRateBurst       int

	// LLMOAuth* configure the optional OAuth2 client-credentials mode for
	// enterprise model gateways that sit behind an OAuth-secured proxy
	// instead of LMSTUDIO's normal bare bearer token. Empty TokenURL means
	// "not configured" and the client falls back to no auth header.
	LLMOAuthTokenURL     string
	LLMOAuthClientID     string
	LLMOAuthClientSecret string
	LLMOAuthScopes       string

	ChatEnabled             bool
	ChatLLMFallbackEnabled  bool
	HybridChatEnabled       bool
	HybridRouterEmbeddings  bool
	HybridRouterLLMTiebreak bool

	EmbeddingsModel    string
	RAGStore           string
	RAGPersistDir      string
	RAGTopK            int
	RAGMaxContextChars int

	AppTZ string

	AlertCronToken     string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPass           string
	AlertEmailFrom     string
	AlertEmailTo       string
	AlertWebhookURL    string
	AlertSigningSecret string

	NATSURL string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying the
// getEnv/getEnvAsInt/getEnvAsBool/getEnvAsDuration defaulting convention,
// then validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnvAsInt("APP_PORT", 8080),

		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
		DatabaseMaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		DatabaseConnectionLifetime: getEnvAsDuration("DATABASE_CONNECTION_LIFETIME", 5*time.Minute),
		RunMigrations:              getEnvAsBool("RUN_MIGRATIONS", false),

		RedisURL: getEnv("REDIS_URL", ""),

		SecretKey:      getEnv("SECRET_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessMinutes:  getEnvAsInt("ACCESS_MINUTES", 15),
		RefreshDays:    getEnvAsInt("REFRESH_DAYS", 14),
		ALLOWEDOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		LMStudioBaseURL:    getEnv("LMSTUDIO_BASE_URL", ""),
		LMStudioChatModel:  getEnv("LMSTUDIO_CHAT_MODEL", ""),
		LMStudioEmbedModel: getEnv("LMSTUDIO_EMBED_MODEL", ""),
		LMStudioTimeout:    getEnvAsDuration("LMSTUDIO_TIMEOUT", 60*time.Second),
		LLMRateRPS:         getEnvAsFloat("LLM_RATE_RPS", 4),
		LLMRateBurst:       getEnvAsInt("LLM_RATE_BURST", 2),

		LLMOAuthTokenURL:     getEnv("LLM_OAUTH_TOKEN_URL", ""),
		LLMOAuthClientID:     getEnv("LLM_OAUTH_CLIENT_ID", ""),
		LLMOAuthClientSecret: getEnv("LLM_OAUTH_CLIENT_SECRET", ""),
		LLMOAuthScopes:       getEnv("LLM_OAUTH_SCOPES", ""),

		ChatEnabled:             getEnvAsBool("CHAT_ENABLED", true),
		ChatLLMFallbackEnabled:  getEnvAsBool("CHAT_LLM_FALLBACK_ENABLED", true),
		HybridChatEnabled:       getEnvAsBool("HYBRID_CHAT_ENABLED", false),
		HybridRouterEmbeddings:  getEnvAsBool("HYBRID_ROUTER_EMBEDDINGS_ENABLED", true),
		HybridRouterLLMTiebreak: getEnvAsBool("HYBRID_ROUTER_LLM_TIEBREAKER_ENABLED", true),

		EmbeddingsModel:    getEnv("EMBEDDINGS_MODEL", ""),
		RAGStore:           getEnv("RAG_STORE", "memory"),
		RAGPersistDir:      getEnv("RAG_PERSIST_DIR", "./rag-store"),
		RAGTopK:            getEnvAsInt("RAG_TOP_K", 5),
		RAGMaxContextChars: getEnvAsInt("RAG_MAX_CONTEXT_CHARS", 6000),

		AppTZ: getEnv("APP_TZ", "UTC"),

		AlertCronToken:     getEnv("ALERT_CRON_TOKEN", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPass:           getEnv("SMTP_PASS", ""),
		AlertEmailFrom:     getEnv("ALERT_EMAIL_FROM", ""),
		AlertEmailTo:       getEnv("ALERT_EMAIL_TO", ""),
		AlertWebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
		AlertSigningSecret: getEnv("ALERT_SIGNING_SECRET", ""),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AlertCronToken == "" {
		return fmt.Errorf("ALERT_CRON_TOKEN is required")
	}
	return nil
}

// AllowedOriginsList splits the comma-separated ALLOWED_ORIGINS value.
func (c *Config) AllowedOriginsList() []string {
	parts := strings.Split(c.ALLOWEDOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, "*")
	}
	return out
}

// AlertChannels parses a comma separated channel list (e.g. "email,webhook").
func AlertChannels(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
