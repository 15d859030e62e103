package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	Storage     StorageConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	HTTP        HTTPConfig
}

// StorageConfig selects the reading store
type StorageConfig struct {
	Driver           string
	MemoryAccountIDs []int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL          string
	EnsureSchema bool
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	Enabled          bool
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	DLQQueue         string
	EventsExchange   string
	EventsRoutingKey string
	PrefetchCount    int
}

// HTTPConfig holds API limits
type HTTPConfig struct {
	UploadMaxBytes int64
	PageSizeMax    int
	RequestTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	accountIDs, err := parseIDs(getEnv("MEMORY_ACCOUNT_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("MEMORY_ACCOUNT_IDS is invalid: %w", err)
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-readings"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8081),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Driver:           strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
			MemoryAccountIDs: accountIDs,
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			EnsureSchema: getEnvAsBool("DATABASE_ENSURE_SCHEMA", false),
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:          getEnvAsBool("RABBITMQ_ENABLED", false),
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "meter-readings.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "meter-readings.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "meter.reading.submitted"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "meter-readings.ingest.dlq"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-readings.events.exchange"),
			EventsRoutingKey: getEnv("RABBITMQ_EVENTS_ROUTING_KEY", "meter.reading.accepted"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		HTTP: HTTPConfig{
			UploadMaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 1<<20)),
			PageSizeMax:    getEnvAsInt("PAGE_SIZE_MAX", 1000),
			RequestTimeout: time.Duration(getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required but not set in environment variables")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Storage.Driver)
	}

	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required when RABBITMQ_ENABLED is set")
	}
	if c.RabbitMQ.PrefetchCount < 1 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be >= 1, got %d", c.RabbitMQ.PrefetchCount)
	}
	if c.HTTP.UploadMaxBytes < 1 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be >= 1, got %d", c.HTTP.UploadMaxBytes)
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be >= 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// parseIDs parses a comma separated list of account ids
func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("account id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
