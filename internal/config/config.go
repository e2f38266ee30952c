package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/sla-consultant/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`

	// Consultation behaviour
	App AppConfig `envPrefix:"APP_"`

	// Database configuration, the summary archive is disabled when empty
	DB DBConfig `envPrefix:"DB_"`

	// External service configurations
	ConsultationAPICfg ConsultationAPIConfig   `envPrefix:"CONSULTATION_API_"`
	TemplateAPICfg     TemplateAPIConfig       `envPrefix:"TEMPLATE_API_"`
	CallbackCfg        CallbackConnectorConfig `envPrefix:"CALLBACK_"`

	NATSCfg    NATSConfig    `envPrefix:"NATS_"`
	TracingCfg TracingConfig `envPrefix:"TRACING_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (optional)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

type AppConfig struct {
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	TemplatesDir   string        `env:"TEMPLATES_DIR" envDefault:"templates"`
}

type DBConfig struct {
	URL               string        `env:"URL"`
	MaxConns          int           `env:"MAX_CONNS" envDefault:"25"`
	MinConns          int           `env:"MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime   time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"30m"`
	HealthCheckPeriod time.Duration `env:"HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string `env:"BOT_TOKEN"`
	UpdateTimeout      int    `env:"UPDATE_TIMEOUT" envDefault:"60"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    int    `env:"SHUTDOWN_TIMEOUT" envDefault:"30"` // seconds
	DefaultTemplateID  string `env:"DEFAULT_TEMPLATE_ID"`
}

type ConsultationAPIConfig struct {
	HTTPClientConfig
	Retry   pkgRetry.RetryConfig `envPrefix:"RETRY_"`
	Breaker BreakerConfig        `envPrefix:"BREAKER_"`
}

type TemplateAPIConfig struct {
	HTTPClientConfig
	Retry pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type CallbackConnectorConfig struct {
	HTTPClientConfig
	// Events are not delivered when empty
	CallbackEndpoint string               `env:"ENDPOINT"`
	Retry            pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL" envDefault:"http://localhost:8000"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `env:"MAX_REQUESTS" envDefault:"3"`
	Interval            time.Duration `env:"INTERVAL" envDefault:"60s"`
	Timeout             time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConsecutiveFailures uint32        `env:"CONSECUTIVE_FAILURES" envDefault:"5"`
}

type NATSConfig struct {
	// Event publishing is disabled when empty
	URL           string `env:"URL"`
	SubjectPrefix string `env:"SUBJECT_PREFIX" envDefault:"consultation"`
}

type TracingConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"sla-consultant"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	return Load(*envFlag)
}

// Load reads .env.<environment> if present and parses the environment
func Load(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.App.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("APP_REQUEST_TIMEOUT must be positive, got %s", cfg.App.RequestTimeout))
	}

	if cfg.App.PollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("APP_POLL_INTERVAL must be at least 1s, got %s", cfg.App.PollInterval))
	}

	if cfg.TelegramCfg.RateLimitPerMinute < 1 || cfg.TelegramCfg.RateLimitPerMinute > 60 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_PER_MINUTE must be between 1 and 60, got %d", cfg.TelegramCfg.RateLimitPerMinute))
	}

	if cfg.TelegramCfg.RateLimitBurst < 1 || cfg.TelegramCfg.RateLimitBurst > 20 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_BURST must be between 1 and 20, got %d", cfg.TelegramCfg.RateLimitBurst))
	}

	if cfg.TelegramCfg.ShutdownTimeout < 1 || cfg.TelegramCfg.ShutdownTimeout > 300 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_SHUTDOWN_TIMEOUT must be between 1 and 300 seconds, got %d", cfg.TelegramCfg.ShutdownTimeout))
	}

	if cfg.DB.URL != "" {
		if cfg.DB.MaxConns < 1 || cfg.DB.MaxConns > 200 {
			errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DB.MaxConns))
		}

		if cfg.DB.MinConns < 0 || cfg.DB.MinConns > cfg.DB.MaxConns {
			errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DB.MaxConns, cfg.DB.MinConns))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
