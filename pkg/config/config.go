package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Alerting AlertingConfig `json:"alerting"`
	Tracker  TrackerConfig  `json:"tracker"`
	Health   HealthConfig   `json:"health"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// AlertingConfig contains notification and throttling configuration
type AlertingConfig struct {
	WebhookURL string        `json:"webhook_url"`
	Cooldown   time.Duration `json:"cooldown"`
	MaxRecords int           `json:"max_records"`
}

// TrackerConfig contains error tracker configuration
type TrackerConfig struct {
	Capacity     int           `json:"capacity"`
	RecentWindow time.Duration `json:"recent_window"`
}

// HealthConfig contains health check scheduling configuration
type HealthConfig struct {
	Interval           time.Duration `json:"interval"`
	StoreLatencyWarn   time.Duration `json:"store_latency_warn"`
	ErrorRateThreshold int           `json:"error_rate_threshold"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "opswatch"),
			User:            getEnvString("DB_USER", "opswatch"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Alerting: AlertingConfig{
			WebhookURL: getEnvString("ALERT_WEBHOOK_URL", ""),
			Cooldown:   getEnvDuration("ALERT_COOLDOWN", 5*time.Minute),
			MaxRecords: getEnvInt("ALERT_MAX_RECORDS", 1000),
		},
		Tracker: TrackerConfig{
			Capacity:     getEnvInt("TRACKER_CAPACITY", 100),
			RecentWindow: getEnvDuration("TRACKER_RECENT_WINDOW", 5*time.Minute),
		},
		Health: HealthConfig{
			Interval:           getEnvDuration("HEALTH_INTERVAL", 60*time.Second),
			StoreLatencyWarn:   getEnvDuration("HEALTH_STORE_LATENCY_WARN", 500*time.Millisecond),
			ErrorRateThreshold: getEnvInt("HEALTH_ERROR_RATE_THRESHOLD", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Alerting.Cooldown <= 0 {
		return fmt.Errorf("alert cooldown must be positive")
	}

	if c.Alerting.MaxRecords <= 0 {
		return fmt.Errorf("alert record bound must be positive")
	}

	if c.Tracker.Capacity <= 0 {
		return fmt.Errorf("tracker capacity must be positive")
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	if c.Health.ErrorRateThreshold <= 0 {
		return fmt.Errorf("error rate threshold must be positive")
	}

	return nil
}

// DatabaseURL returns the database connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
