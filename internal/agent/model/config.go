package model

import "time"

// ================ Config ================

type SessionConfig struct {
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	MaxMessages   int           `envconfig:"SESSION_MAX_MESSAGES" default:"20"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
}

type RateLimitConfig struct {
	IPLimit         int           `envconfig:"RATE_LIMIT_IP" default:"30"`
	IPWindow        time.Duration `envconfig:"RATE_LIMIT_IP_WINDOW" default:"1m"`
	SessionLimit    int           `envconfig:"RATE_LIMIT_SESSION" default:"50"`
	SessionWindow   time.Duration `envconfig:"RATE_LIMIT_SESSION_WINDOW" default:"1h"`
	DemoDailyLimit  int           `envconfig:"RATE_LIMIT_DEMO_DAILY" default:"200"`
	DemoWindow      time.Duration `envconfig:"RATE_LIMIT_DEMO_WINDOW" default:"24h"`
	GlobalLimit     int           `envconfig:"RATE_LIMIT_GLOBAL" default:"10000"`
	GlobalWindow    time.Duration `envconfig:"RATE_LIMIT_GLOBAL_WINDOW" default:"24h"`
	CleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"5m"`
}

type CatalogConfig struct {
	StrapiURL      string        `envconfig:"STRAPI_URL" default:"http://localhost:1337"`
	StrapiToken    string        `envconfig:"STRAPI_API_TOKEN"`
	File           string        `envconfig:"CATALOG_FILE"`
	CacheTTL       time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	RequestTimeout time.Duration `envconfig:"CATALOG_REQUEST_TIMEOUT" default:"10s"`
}

type PoeConfig struct {
	APIKey      string `envconfig:"POE_API_KEY"`
	BaseURL     string `envconfig:"POE_BASE_URL" default:"https://api.poe.com/bot"`
	BotStandard string `envconfig:"POE_BOT_STANDARD" default:"GPT-4o-Mini"`
	BotAdvanced string `envconfig:"POE_BOT_ADVANCED" default:"Claude-3.5-Sonnet"`
}

type OpenRouterConfig struct {
	APIKey        string `envconfig:"OPENROUTER_API_KEY"`
	BaseURL       string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	ModelStandard string `envconfig:"OPENROUTER_MODEL_STANDARD" default:"openai/gpt-4o-mini"`
	ModelAdvanced string `envconfig:"OPENROUTER_MODEL_ADVANCED" default:"anthropic/claude-3.5-sonnet"`
}

type GeminiConfig struct {
	APIKey        string `envconfig:"GEMINI_API_KEY"`
	BaseURL       string `envconfig:"GEMINI_BASE_URL"`
	ModelStandard string `envconfig:"GEMINI_MODEL_STANDARD" default:"gemini-2.5-flash-lite"`
	ModelAdvanced string `envconfig:"GEMINI_MODEL_ADVANCED" default:"gemini-2.5-flash"`
}

// RouterConfig configures the provider chain. Primary and Secondary name one of
// "poe", "gemini" or "openrouter"; an empty name or missing key drops the link.
type RouterConfig struct {
	Primary          string        `envconfig:"MODEL_PRIMARY" default:"poe"`
	Secondary        string        `envconfig:"MODEL_SECONDARY" default:"openrouter"`
	PrimaryTimeout   time.Duration `envconfig:"MODEL_PRIMARY_TIMEOUT" default:"20s"`
	SecondaryTimeout time.Duration `envconfig:"MODEL_SECONDARY_TIMEOUT" default:"25s"`
	Temperature      float32       `envconfig:"MODEL_TEMPERATURE" default:"0.7"`
	MaxTokens        int           `envconfig:"MODEL_MAX_TOKENS" default:"800"`

	// Daily per-demo model call budgets that steer tier selection.
	AdvancedDailyBudget int `envconfig:"MODEL_BUDGET_ADVANCED" default:"200"`
	StandardDailyBudget int `envconfig:"MODEL_BUDGET_STANDARD" default:"1000"`
	TotalDailyBudget    int `envconfig:"MODEL_BUDGET_TOTAL" default:"1500"`

	Poe        PoeConfig
	OpenRouter OpenRouterConfig
	Gemini     GeminiConfig
}

type ClassifierConfig struct {
	SmartThreshold float64 `envconfig:"INTENT_SMART_THRESHOLD" default:"0.6"`
	SmartEnabled   bool    `envconfig:"INTENT_SMART_ENABLED" default:"true"`
}

type ContextConfig struct {
	HistoryTurns int `envconfig:"CONTEXT_HISTORY_TURNS" default:"10"`
	MaxChars     int `envconfig:"CONTEXT_MAX_CHARS" default:"12000"`
	MaxItems     int `envconfig:"CONTEXT_MAX_ITEMS" default:"8"`
}

type ToolsConfig struct {
	SearchLimit    int           `envconfig:"TOOLS_SEARCH_LIMIT" default:"10"`
	CompareMax     int           `envconfig:"TOOLS_COMPARE_MAX" default:"4"`
	LeadWebhookURL string        `envconfig:"LEAD_WEBHOOK_URL"`
	LeadTimeout    time.Duration `envconfig:"LEAD_TIMEOUT" default:"10s"`
}

type ServerConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigin   string        `envconfig:"HTTP_ALLOWED_ORIGIN" default:"*"`
}
