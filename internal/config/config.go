// Package config provides configuration management for the engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Server      ServerConfig
	Scheduler   SchedulerConfig
	EventStore  EventStoreConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP/WebSocket server configuration.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	CORSAllowedOrigins []string
}

// SchedulerConfig holds the C7 scheduler's tunables.
type SchedulerConfig struct {
	MaxParallelNodes int
	PollInterval     time.Duration
	MaxPollRetries   int
	NodeTimeout      time.Duration
	ExecutionTimeout time.Duration
	ContinueOnError  bool
}

// EventStoreConfig holds the C9 event store's backend configuration.
type EventStoreConfig struct {
	// Driver selects the Store implementation: "memory" or "postgres".
	Driver string
	// DatabaseURL is required when Driver is "postgres".
	DatabaseURL     string
	MaxConnections  int
	MinConnections  int
	MaxIdleTime     time.Duration
	MaxConnLifetime time.Duration
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads the configuration from environment variables, falling back to
// a .env file in the working directory if present.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvAsInt("DIPEOFLOW_PORT", 8080),
			Host:               getEnv("DIPEOFLOW_HOST", "0.0.0.0"),
			ReadTimeout:        getEnvAsDuration("DIPEOFLOW_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("DIPEOFLOW_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvAsDuration("DIPEOFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORS:               getEnvAsBool("DIPEOFLOW_CORS_ENABLED", true),
			CORSAllowedOrigins: getEnvAsSlice("DIPEOFLOW_CORS_ALLOWED_ORIGINS", []string{}),
		},
		Scheduler: SchedulerConfig{
			MaxParallelNodes: getEnvAsInt("DIPEOFLOW_SCHEDULER_MAX_PARALLEL", 10),
			PollInterval:     getEnvAsDuration("DIPEOFLOW_SCHEDULER_POLL_INTERVAL", 50*time.Millisecond),
			MaxPollRetries:   getEnvAsInt("DIPEOFLOW_SCHEDULER_MAX_POLL_RETRIES", 20),
			NodeTimeout:      getEnvAsDuration("DIPEOFLOW_SCHEDULER_NODE_TIMEOUT", 5*time.Minute),
			ExecutionTimeout: getEnvAsDuration("DIPEOFLOW_SCHEDULER_EXECUTION_TIMEOUT", 30*time.Minute),
			ContinueOnError:  getEnvAsBool("DIPEOFLOW_SCHEDULER_CONTINUE_ON_ERROR", false),
		},
		EventStore: EventStoreConfig{
			Driver:          getEnv("DIPEOFLOW_EVENTSTORE_DRIVER", "memory"),
			DatabaseURL:     getEnv("DIPEOFLOW_DATABASE_URL", ""),
			MaxConnections:  getEnvAsInt("DIPEOFLOW_DB_MAX_CONNECTIONS", 20),
			MinConnections:  getEnvAsInt("DIPEOFLOW_DB_MIN_CONNECTIONS", 5),
			MaxIdleTime:     getEnvAsDuration("DIPEOFLOW_DB_MAX_IDLE_TIME", 30*time.Minute),
			MaxConnLifetime: getEnvAsDuration("DIPEOFLOW_DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("DIPEOFLOW_LOG_LEVEL", "info"),
			Format: getEnv("DIPEOFLOW_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.EventStore.Driver != "memory" && c.EventStore.Driver != "postgres" {
		return fmt.Errorf("invalid event store driver: %s (must be memory or postgres)", c.EventStore.Driver)
	}
	if c.EventStore.Driver == "postgres" && c.EventStore.DatabaseURL == "" {
		return fmt.Errorf("DIPEOFLOW_DATABASE_URL is required when DIPEOFLOW_EVENTSTORE_DRIVER=postgres")
	}

	if c.Scheduler.MaxParallelNodes < 1 {
		return fmt.Errorf("scheduler max parallel nodes must be at least 1")
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	var result []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
