// Package config provides configuration loading for taskd.
//
// Configuration is loaded from environment variables with sensible defaults
// (Load), or from a YAML file overridden by TASKD_-prefixed environment
// variables (LoadWithFile). Both paths end in Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory    = "memory"
	DriverMongo     = "mongodb"
	DriverPostgres  = "postgres"
	DriverRedis     = "redis"
	DriverFirestore = "firestore"
)

// EnvProduction is the environment name that hides error details and
// requires an explicit signing secret.
const EnvProduction = "production"

// devJWTSecret is only accepted outside production.
const devJWTSecret = "taskd-dev-secret-change-me"

// Config holds the complete taskd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Auth          AuthConfig          `koanf:"auth"`
	Store         StoreConfig         `koanf:"store"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	BasePath        string        `koanf:"base_path"`
	Environment     string        `koanf:"environment"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	BodyLimit       string        `koanf:"body_limit"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	JWTSecret Secret        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	Issuer    string        `koanf:"issuer"`
}

// StoreConfig selects and configures the document store driver.
type StoreConfig struct {
	Driver  string        `koanf:"driver"`
	Timeout time.Duration `koanf:"timeout"`

	MongoURI      Secret `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	PostgresDSN Secret `koanf:"postgres_dsn"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword Secret `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	FirestoreProjectID       string `koanf:"firestore_project_id"`
	FirestoreCredentials     Secret `koanf:"firestore_credentials"`
	FirestoreCredentialsFile string `koanf:"firestore_credentials_file"`
}

// LoggingConfig holds the logging knobs exposed through configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - SERVER_HOST: listen host (default: 0.0.0.0)
//   - SERVER_PORT or PORT: listen port (default: 5000)
//   - SERVER_BASE_PATH: route prefix, e.g. /api (default: none)
//   - APP_ENV: development or production (default: development)
//   - CORS_ORIGIN: comma separated allowed origins (default: http://localhost:4200)
//   - SERVER_BODY_LIMIT: request body limit (default: 1M)
//   - SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - JWT_SECRET: token signing secret (required in production)
//   - JWT_EXPIRES_IN: token lifetime, Go duration or "<n>d" (default: 1d)
//   - JWT_ISSUER: token issuer (default: taskd)
//   - STORE_DRIVER: memory, mongodb, postgres, redis, firestore (default: memory)
//   - STORE_TIMEOUT: connect/ping timeout (default: 5s)
//   - MONGO_URI, MONGO_DATABASE
//   - POSTGRES_DSN
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_PREFIX
//   - FIRESTORE_PROJECT_ID, FIREBASE_SERVICE_ACCOUNT, FIRESTORE_CREDENTIALS_FILE
//   - LOG_LEVEL, LOG_FORMAT (default: info, json)
//   - OTEL_ENABLE, OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT,
//     OTEL_EXPORTER_OTLP_PROTOCOL, OTEL_INSECURE, OTEL_SAMPLING_RATE
func Load() *Config {
	port := getEnvInt("PORT", 5000)
	port = getEnvInt("SERVER_PORT", port)

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            port,
			BasePath:        getEnvString("SERVER_BASE_PATH", ""),
			Environment:     getEnvString("APP_ENV", "development"),
			CORSOrigins:     getEnvList("CORS_ORIGIN", []string{"http://localhost:4200"}),
			BodyLimit:       getEnvString("SERVER_BODY_LIMIT", "1M"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: Secret(getEnvString("JWT_SECRET", "")),
			TokenTTL:  getEnvTTL("JWT_EXPIRES_IN", 24*time.Hour),
			Issuer:    getEnvString("JWT_ISSUER", "taskd"),
		},
		Store: StoreConfig{
			Driver:                   getEnvString("STORE_DRIVER", DriverMemory),
			Timeout:                  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
			MongoURI:                 Secret(getEnvString("MONGO_URI", "mongodb://localhost:27017")),
			MongoDatabase:            getEnvString("MONGO_DATABASE", "taskd"),
			PostgresDSN:              Secret(getEnvString("POSTGRES_DSN", "")),
			RedisAddr:                getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisPassword:            Secret(getEnvString("REDIS_PASSWORD", "")),
			RedisDB:                  getEnvInt("REDIS_DB", 0),
			RedisPrefix:              getEnvString("REDIS_PREFIX", "taskd"),
			FirestoreProjectID:       getEnvString("FIRESTORE_PROJECT_ID", ""),
			FirestoreCredentials:     Secret(getEnvString("FIREBASE_SERVICE_ACCOUNT", "")),
			FirestoreCredentialsFile: getEnvString("FIRESTORE_CREDENTIALS_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "taskd"),
			Endpoint:        getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Protocol:        getEnvString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Insecure:        getEnvBool("OTEL_INSECURE", true),
			SamplingRate:    getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
		},
	}

	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout or token TTL is not positive
//   - The signing secret is missing or the development default in production
//   - The store driver is unknown or lacks its connection settings
//   - Service name is empty (when telemetry is enabled)
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("base path must start with '/': %q", c.Server.BasePath)
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if !c.Auth.JWTSecret.IsSet() {
		return errors.New("jwt secret is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret.Value() == devJWTSecret {
		return errors.New("jwt secret must be set explicitly in production")
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

func (s *StoreConfig) validate() error {
	if s.Timeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	switch s.Driver {
	case DriverMemory:
	case DriverMongo:
		if !s.MongoURI.IsSet() || s.MongoDatabase == "" {
			return errors.New("mongodb driver requires mongo_uri and mongo_database")
		}
	case DriverPostgres:
		if !s.PostgresDSN.IsSet() {
			return errors.New("postgres driver requires postgres_dsn")
		}
	case DriverRedis:
		if s.RedisAddr == "" {
			return errors.New("redis driver requires redis_addr")
		}
	case DriverFirestore:
		if s.FirestoreProjectID == "" {
			return errors.New("firestore driver requires firestore_project_id")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", s.Driver)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvTTL accepts Go durations plus the "<n>d" day form and bare seconds.
func getEnvTTL(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := ParseTTL(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// ParseTTL parses a token lifetime. Besides time.ParseDuration syntax it
// accepts "7d" (days) and a bare number of seconds.
func ParseTTL(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day duration: %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", value)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", value)
	}
	return d, nil
}
