package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	// Type selects the repository backend: "postgres" or "memory".
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString builds a pgx-compatible connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	// URL empty means rate limiting falls back to the in-process limiter.
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type IngestionConfig struct {
	MaxBatchSize          int           `mapstructure:"max_batch_size"`
	BatchTimeout          time.Duration `mapstructure:"batch_timeout"`
	RateLimitEnabled      bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests     int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow       time.Duration `mapstructure:"rate_limit_window"`
	StuckPendingThreshold time.Duration `mapstructure:"stuck_pending_threshold"`
	StatsInterval         time.Duration `mapstructure:"stats_interval"`
}

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NATSURL string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tenderflow")
	v.SetDefault("database.password", "tenderflow")
	v.SetDefault("database.name", "tenderflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("redis.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "tenderflow-ingest")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("ingestion.max_batch_size", 100)
	v.SetDefault("ingestion.batch_timeout", "30s")
	v.SetDefault("ingestion.rate_limit_enabled", true)
	v.SetDefault("ingestion.rate_limit_requests", 60)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("ingestion.stuck_pending_threshold", "15m")
	v.SetDefault("ingestion.stats_interval", "30s")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tenderflow/ingest")
	}

	// Environment variables override
	v.SetEnvPrefix("INGEST")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot possibly serve traffic.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Type {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid database type: %q", c.Database.Type)
	}
	if c.Ingestion.MaxBatchSize <= 0 {
		return fmt.Errorf("ingestion.max_batch_size must be positive")
	}
	if c.Ingestion.BatchTimeout <= 0 {
		return fmt.Errorf("ingestion.batch_timeout must be positive")
	}
	if c.Ingestion.RateLimitEnabled && c.Ingestion.RateLimitRequests <= 0 {
		return fmt.Errorf("ingestion.rate_limit_requests must be positive when rate limiting is enabled")
	}
	if c.Ingestion.RateLimitEnabled && c.Ingestion.RateLimitWindow <= 0 {
		return fmt.Errorf("ingestion.rate_limit_window must be positive when rate limiting is enabled")
	}
	if c.Ingestion.StuckPendingThreshold <= 0 {
		return fmt.Errorf("ingestion.stuck_pending_threshold must be positive")
	}
	// The stats collector's ticker panics on a non-positive interval.
	if c.Ingestion.StatsInterval <= 0 {
		return fmt.Errorf("ingestion.stats_interval must be positive")
	}
	return nil
}
