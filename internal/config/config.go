package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns int32  `envconfig:"DATABASE_MIN_CONNS" default:"1"`
	MigrationsURL    string `envconfig:"MIGRATIONS_URL" default:"file://migrations"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// API_TOKEN protects the HTTP API; empty disables the API routes.
	APIToken string `envconfig:"API_TOKEN"`

	LLMProvider      string `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL"`
	RevisionModel    string `envconfig:"REVISION_MODEL" default:"gpt-4.1"`
	JudgeModel       string `envconfig:"JUDGE_MODEL" default:"gpt-4.1-mini"`
	EvaluatorModel   string `envconfig:"EVALUATOR_MODEL" default:"gpt-4.1-mini"`
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// Global kill switch for the revision pipeline.
	RevisionDisabled          bool `envconfig:"REVISION_DISABLED" default:"false"`
	RevisionTimeoutMs         int  `envconfig:"REVISION_TIMEOUT_MS" default:"45000"`
	RevisionSelectorTimeoutMs int  `envconfig:"REVISION_SELECTOR_TIMEOUT_MS" default:"8000"`
	RevisionContextTimeoutMs  int  `envconfig:"REVISION_CONTEXT_TIMEOUT_MS" default:"5000"`

	JudgeProfile             string  `envconfig:"JUDGE_PROFILE" default:"balanced"`
	JudgeAdjudicationEnabled bool    `envconfig:"JUDGE_ADJUDICATION_ENABLED" default:"true"`
	JudgeAdjudicationMin     float64 `envconfig:"JUDGE_ADJUDICATION_MIN" default:"40"`
	JudgeAdjudicationMax     float64 `envconfig:"JUDGE_ADJUDICATION_MAX" default:"80"`

	MemoryAllowedCategories []string `envconfig:"MEMORY_ALLOWED_CATEGORIES" default:"timezone,scheduling_preference,communication_preference,role,company_context,objection"`
	MemoryMinConfidence     float64  `envconfig:"MEMORY_MIN_CONFIDENCE" default:"0.7"`
	MemoryMinTTLDays        int      `envconfig:"MEMORY_MIN_TTL_DAYS" default:"1"`
	MemoryMaxTTLDays        int      `envconfig:"MEMORY_MAX_TTL_DAYS" default:"90"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DRAFTGATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMProvider != "openai" && cfg.LLMProvider != "anthropic" {
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q (expected openai or anthropic)", cfg.LLMProvider)
	}

	return &cfg, nil
}

// RequireDatabase fails when no database is configured. Only the commands
// that touch Postgres call it.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DRAFTGATE_DATABASE_URL is required")
	}
	return nil
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAnthropic() bool {
	return c.AnthropicAPIKey != ""
}

// HasLLM reports whether the configured provider has credentials.
func (c *Config) HasLLM() bool {
	if c.LLMProvider == "anthropic" {
		return c.HasAnthropic()
	}
	return c.HasOpenAI()
}

func (c *Config) HasAPI() bool {
	return c.APIToken != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) RevisionTimeout() time.Duration {
	return time.Duration(c.RevisionTimeoutMs) * time.Millisecond
}

func (c *Config) RevisionSelectorTimeout() time.Duration {
	return time.Duration(c.RevisionSelectorTimeoutMs) * time.Millisecond
}

func (c *Config) RevisionContextTimeout() time.Duration {
	return time.Duration(c.RevisionContextTimeoutMs) * time.Millisecond
}
