package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Session store backends.
const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Search   SearchConfig   `yaml:"search"`
	Payment  PaymentConfig  `yaml:"payment"`
	Parser   ParserConfig   `yaml:"parser"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the session store backend
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// SearchConfig holds job search provider configuration
type SearchConfig struct {
	SerperAPIKey     string `yaml:"serper_api_key"`
	AdzunaAppID      string `yaml:"adzuna_app_id"`
	AdzunaAppKey     string `yaml:"adzuna_app_key"`
	MaxResults       int    `yaml:"max_results"`
	MaxProviderCalls int    `yaml:"max_provider_calls"`
}

// PaymentConfig holds checkout provider configuration
type PaymentConfig struct {
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	PriceCents          int64  `yaml:"price_cents"`
	ProductName         string `yaml:"product_name"`
	AppURL              string `yaml:"app_url"`
}

// ParserConfig holds resume parser configuration
type ParserConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`
}

// EmailConfig holds notification email configuration
type EmailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`

	// Async routes notifications through RabbitMQ to worker-service
	// instead of sending inline from the API process.
	Async bool `yaml:"async"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PurgeSchedule is a cron spec for the expired-session sweep; only
	// meaningful with the postgres store backend.
	PurgeSchedule string `yaml:"purge_schedule"`
}

// Load reads and parses the configuration file. Secrets can be supplied or
// overridden through environment variables so they stay out of the YAML.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()

	return &config, nil
}

// applyEnvOverrides pulls secrets from the environment when set.
func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"SERPER_API_KEY":        &c.Search.SerperAPIKey,
		"ADZUNA_APP_ID":         &c.Search.AdzunaAppID,
		"ADZUNA_APP_KEY":        &c.Search.AdzunaAppKey,
		"STRIPE_SECRET_KEY":     &c.Payment.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.Payment.StripeWebhookSecret,
		"OPENAI_API_KEY":        &c.Parser.OpenAIAPIKey,
		"RESEND_API_KEY":        &c.Email.ResendAPIKey,
		"REDIS_PASSWORD":        &c.Store.Redis.Password,
		"DB_PASSWORD":           &c.Database.Password,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

// ValidateAPIConfig checks the configuration the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis store backend")
		}
	case StoreBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres store backend")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Search.SerperAPIKey == "" && c.Search.AdzunaAppKey == "" {
		return fmt.Errorf("at least one search provider must be configured")
	}

	if c.Payment.StripeSecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}

	if c.Payment.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required")
	}

	if c.Payment.PriceCents <= 0 {
		return fmt.Errorf("payment price_cents must be greater than 0")
	}

	if c.Parser.OpenAIAPIKey == "" {
		return fmt.Errorf("openai api key is required")
	}

	if c.Email.From == "" {
		return fmt.Errorf("email from address is required")
	}

	if c.Email.Async {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required for async email")
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required for async email")
		}
		if c.RabbitMQ.Queue.Name == "" {
			return fmt.Errorf("rabbitmq queue name is required for async email")
		}
	}

	return nil
}

// ValidateWorkerConfig checks the configuration the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Email.ResendAPIKey == "" {
		return fmt.Errorf("resend api key is required")
	}

	if c.Email.From == "" {
		return fmt.Errorf("email from address is required")
	}

	return nil
}
