package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	Server        ServerConfig
	Database      DatabaseConfig
	History       HistoryConfig
	Retention     RetentionConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TLS             TLSConfig
}

// TLSConfig holds optional TLS termination settings
type TLSConfig struct {
	Enabled  bool   `env:"TLS_ENABLED" envDefault:"false"`
	CertFile string `env:"TLS_CERT_FILE" envDefault:"certs/cert.pem"`
	KeyFile  string `env:"TLS_KEY_FILE" envDefault:"certs/key.pem"`
}

// DatabaseConfig selects and configures the storage engine.
// For postgres, ConnectionString (from DATABASE_URL) takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string        `env:"DB_DRIVER" envDefault:"postgres"`
	ConnectionString string        `env:"DATABASE_URL"`
	Host             string        `env:"DB_HOST" envDefault:"localhost"`
	Port             int           `env:"DB_PORT" envDefault:"5432"`
	User             string        `env:"DB_USER" envDefault:"dev"`
	Password         string        `env:"DB_PASSWORD"`
	Database         string        `env:"DB_NAME" envDefault:"fact_history"`
	SSLMode          string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	SQLitePath       string        `env:"SQLITE_PATH" envDefault:"fact_history.db"`
}

// HistoryConfig tunes the fact history service
type HistoryConfig struct {
	EraseBatchSize    int `env:"ERASE_BATCH_SIZE" envDefault:"500"`
	DefaultPurgeLimit int `env:"PURGE_DEFAULT_LIMIT" envDefault:"1000"`
}

// RetentionConfig configures the background retention job
type RetentionConfig struct {
	Enabled          bool          `env:"RETENTION_ENABLED" envDefault:"false"`
	Interval         time.Duration `env:"RETENTION_INTERVAL" envDefault:"1h"`
	MaxAge           time.Duration `env:"RETENTION_MAX_AGE" envDefault:"2160h"`
	BatchSize        int           `env:"RETENTION_BATCH_SIZE" envDefault:"1000"`
	BatchesPerSecond float64       `env:"RETENTION_BATCHES_PER_SECOND" envDefault:"2"`
	StopTimeout      time.Duration `env:"RETENTION_STOP_TIMEOUT" envDefault:"30s"`
}

// AuthConfig configures bearer-token protection of the maintenance endpoints
type AuthConfig struct {
	JWTSecret      string `env:"AUTH_JWT_SECRET"`
	Issuer         string `env:"AUTH_JWT_ISSUER"`
	MaintainerRole string `env:"AUTH_MAINTAINER_ROLE" envDefault:"maintainer"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"json"` // json or text
	TracingEndpoint string `env:"TRACING_ENDPOINT"`
	ServiceName     string `env:"SERVICE_NAME" envDefault:"fact-history"`
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// PORT (set by most platforms) wins over SERVER_PORT
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			cfg.Server.Port = p
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.History.EraseBatchSize <= 0 {
		return fmt.Errorf("erase batch size must be positive")
	}
	if c.History.DefaultPurgeLimit <= 0 {
		return fmt.Errorf("default purge limit must be positive")
	}

	if c.Retention.Enabled {
		if c.Retention.Interval <= 0 {
			return fmt.Errorf("retention interval must be positive")
		}
		if c.Retention.MaxAge <= 0 {
			return fmt.Errorf("retention max age must be positive")
		}
		if c.Retention.BatchSize <= 0 {
			return fmt.Errorf("retention batch size must be positive")
		}
		if c.Retention.BatchesPerSecond <= 0 {
			return fmt.Errorf("retention batches per second must be positive")
		}
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("driver=sqlite path=%s", c.SQLitePath)
	}
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
