package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	HttpServer      ServerConfig
	GrpcServer      GrpcServerConfig
	Catalog         CatalogConfig
	Storage         StorageConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// CatalogConfig points at the remote product catalog.
// HTTPTimeout of 0 leaves the fetch without a deadline.
type CatalogConfig struct {
	URL         string        `envconfig:"CATALOG_URL" default:"https://fakestoreapi.com/products"`
	HTTPTimeout time.Duration `envconfig:"CATALOG_HTTP_TIMEOUT" default:"0s"`
}

// StorageConfig selects where the cart is persisted.
type StorageConfig struct {
	Driver  string `envconfig:"STORAGE_DRIVER" default:"file"`
	FileDir string `envconfig:"STORAGE_FILE_DIR" default:".storefront"`
	CartKey string `envconfig:"CART_STORAGE_KEY" default:"rb_cart_v1"`
}

// PostgresConfig holds PostgreSQL connection details, used when STORAGE_DRIVER=postgres.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig holds Redis connection details, used when STORAGE_DRIVER=redis.
type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"storefront:"`
}

// Load reads the configuration from environment variables and checks the
// settings the selected storage driver depends on.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.CartKey == "" {
		return fmt.Errorf("invalid configuration: CART_STORAGE_KEY must not be empty")
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.FileDir == "" {
			return fmt.Errorf("invalid configuration: STORAGE_FILE_DIR is required for the file driver")
		}
	case DriverMemory:
	case DriverPostgres:
		var missing []string
		if c.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if c.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if c.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DBNAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("invalid configuration: postgres driver requires %s", strings.Join(missing, ", "))
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid configuration: REDIS_ADDR is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid configuration: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Catalog.HTTPTimeout < 0 {
		return fmt.Errorf("invalid configuration: CATALOG_HTTP_TIMEOUT must not be negative")
	}
	return nil
}
