package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Database  DatabaseConfig
	LLM       LLMConfig
	News      NewsConfig
	Discovery DiscoveryConfig
	Impact    ImpactConfig
	Workflow  WorkflowConfig
	Scheduler SchedulerConfig
	Telegram  TelegramConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Health    HealthConfig
	Logging   LoggingConfig
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"vantage"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// LLMConfig represents language model provider configuration
type LLMConfig struct {
	GeminiAPIKeys      []string      `envconfig:"GEMINI_API_KEYS" required:"false"`
	GeminiModels       []string      `envconfig:"GEMINI_MODELS" default:"gemini-2.5-flash,gemini-2.0-flash"`
	OpenRouterAPIKey   string        `envconfig:"OPENROUTER_API_KEY" required:"false"`
	OpenRouterModel    string        `envconfig:"OPENROUTER_MODEL" default:"deepseek/deepseek-chat"`
	RateLimitPerMinute int           `envconfig:"LLM_RATE_LIMIT_PER_MINUTE" default:"30"`
	RetryMax           int           `envconfig:"LLM_RETRY_MAX" default:"3"`
	RetryBaseSeconds   float64       `envconfig:"LLM_RETRY_BASE_SECONDS" default:"2.0"`
	RetryMultiplier    float64       `envconfig:"LLM_RETRY_MULTIPLIER" default:"2.0"`
	RequestTimeout     time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"30s"`
	Temperature        float64       `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	DailyBudgetUSD     float64       `envconfig:"LLM_DAILY_BUDGET_USD" default:"10.0"`
}

// NewsConfig represents news ingestion configuration
type NewsConfig struct {
	Enabled           bool          `envconfig:"NEWS_ENABLED" default:"true"`
	FinnhubAPIKey     string        `envconfig:"FINNHUB_API_KEY" required:"false"`
	FinnhubEnabled    bool          `envconfig:"FINNHUB_ENABLED" default:"false"`
	GoogleNewsEnabled bool          `envconfig:"GOOGLE_NEWS_ENABLED" default:"true"`
	NewsAPIKey        string        `envconfig:"NEWSAPI_API_KEY" required:"false"`
	NewsAPIEnabled    bool          `envconfig:"NEWSAPI_ENABLED" default:"false"`
	MockEnabled       bool          `envconfig:"NEWS_MOCK_ENABLED" default:"true"`
	Keywords          []string      `envconfig:"NEWS_KEYWORDS" default:"supply chain,shortage,chip,semiconductor,earnings,factory,tariff"`
	FetchLimit        int           `envconfig:"NEWS_FETCH_LIMIT" default:"20"`
	MaxArticleAge     time.Duration `envconfig:"NEWS_MAX_ARTICLE_AGE" default:"168h"`
}

// DiscoveryConfig represents relationship discovery parameters
type DiscoveryConfig struct {
	ProbeTimeout   time.Duration `envconfig:"DISCOVERY_PROBE_TIMEOUT" default:"10s"`
	MaxWorkers     int           `envconfig:"DISCOVERY_MAX_WORKERS" default:"4"`
	CacheTTL       time.Duration `envconfig:"DISCOVERY_CACHE_TTL" default:"24h"`
	EdgarUserAgent string        `envconfig:"EDGAR_USER_AGENT" default:"Vantage Research ops@vantage-intel.io"`
}

// ImpactConfig represents impact scoring thresholds
type ImpactConfig struct {
	HighSeverityPct       float64 `envconfig:"IMPACT_HIGH_SEVERITY_PCT" default:"2.0"`
	MediumSeverityPct     float64 `envconfig:"IMPACT_MEDIUM_SEVERITY_PCT" default:"0.5"`
	DefaultPortfolioValue float64 `envconfig:"IMPACT_DEFAULT_PORTFOLIO_VALUE" default:"1000000"`
}

// WorkflowConfig represents workflow engine parameters
type WorkflowConfig struct {
	ConfidenceThreshold float64 `envconfig:"WORKFLOW_CONFIDENCE_THRESHOLD" default:"0.70"`
	MaxLoops            int     `envconfig:"WORKFLOW_MAX_LOOPS" default:"2"`
}

// SchedulerConfig represents background run scheduling
type SchedulerConfig struct {
	Enabled         bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Heartbeat       time.Duration `envconfig:"SCHEDULER_HEARTBEAT" default:"10s"`
	RunInterval     time.Duration `envconfig:"SCHEDULER_RUN_INTERVAL" default:"5m"`
	RefreshInterval time.Duration `envconfig:"SCHEDULER_REFRESH_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"SCHEDULER_LOCK_TTL" default:"30s"`
}

// TelegramConfig represents alert notification configuration
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
}

// RedisConfig represents the optional distributed lock backend
type RedisConfig struct {
	Enabled bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host    string `envconfig:"REDIS_HOST" default:"localhost"`
	Port    int    `envconfig:"REDIS_PORT" default:"6379"`
}

// TelemetryConfig represents the optional ClickHouse event warehouse
type TelemetryConfig struct {
	Enabled       bool          `envconfig:"TELEMETRY_ENABLED" default:"false"`
	DSN           string        `envconfig:"TELEMETRY_CLICKHOUSE_DSN" default:"clickhouse://localhost:9000/vantage"`
	MaxBatch      int           `envconfig:"TELEMETRY_MAX_BATCH" default:"100"`
	FlushInterval time.Duration `envconfig:"TELEMETRY_FLUSH_INTERVAL" default:"5s"`
}

// HealthConfig represents the ops health endpoint
type HealthConfig struct {
	Port int `envconfig:"HEALTH_PORT" default:"8090"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Workflow.ConfidenceThreshold <= 0 || c.Workflow.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1]")
	}
	if c.Workflow.MaxLoops < 0 {
		return fmt.Errorf("max_loops must not be negative")
	}
	if c.LLM.RateLimitPerMinute < 1 {
		return fmt.Errorf("llm rate_limit_per_minute must be at least 1")
	}
	if c.LLM.RetryMax < 1 {
		return fmt.Errorf("llm retry_max must be at least 1")
	}
	if c.LLM.RetryMultiplier < 1 {
		return fmt.Errorf("llm retry_multiplier must be at least 1")
	}
	if c.Discovery.MaxWorkers < 1 {
		return fmt.Errorf("discovery max_workers must be at least 1")
	}
	if c.Impact.HighSeverityPct <= c.Impact.MediumSeverityPct {
		return fmt.Errorf("impact high severity threshold must exceed the medium threshold")
	}
	if c.Impact.MediumSeverityPct <= 0 {
		return fmt.Errorf("impact medium severity threshold must be positive")
	}
	if c.Scheduler.Heartbeat <= 0 || c.Scheduler.RunInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisAddr returns the host:port pair for the lock backend.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasGemini reports whether at least one Gemini key is configured.
func (c *LLMConfig) HasGemini() bool {
	for _, k := range c.GeminiAPIKeys {
		if k != "" {
			return true
		}
	}
	return false
}

// HasOpenRouter reports whether the OpenRouter fallback is configured.
func (c *LLMConfig) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

// HasProviders reports whether any live LLM provider is configured.
// Without one the engine still runs, on deterministic fallbacks.
func (c *LLMConfig) HasProviders() bool {
	return c.HasGemini() || c.HasOpenRouter()
}

// TelegramEnabled reports whether alert push is configured.
func (c *TelegramConfig) TelegramEnabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}
