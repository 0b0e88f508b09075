// Package config provides configuration management for the courier standalone
// server. Settings come from an optional YAML file plus environment variables;
// environment always wins, following 12-factor principles.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the courier server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Courier  CourierConfig  `yaml:"courier"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres, sqlite3
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Prefix   string `yaml:"prefix"` // Table prefix (default: "courier_")
}

// CourierConfig holds delivery subsystem configuration.
type CourierConfig struct {
	AgentID             string `yaml:"agentID"`
	MaxQueueSize        int    `yaml:"maxQueueSize"`
	MaxRetries          int    `yaml:"maxRetries"`
	RetryDelayMs        int    `yaml:"retryDelayMs"`
	AckTimeoutSec       int    `yaml:"ackTimeoutSec"`
	ProcessIntervalMs   int    `yaml:"processIntervalMs"`
	EnableNotifications bool   `yaml:"enableNotifications"`
}

// Load loads configuration from the YAML file named by COURIER_CONFIG (if
// set) and then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "courier",
			Database: "courier",
			Prefix:   "courier_",
		},
		Courier: CourierConfig{
			MaxQueueSize:        100,
			MaxRetries:          3,
			RetryDelayMs:        1000,
			AckTimeoutSec:       300,
			ProcessIntervalMs:   100,
			EnableNotifications: true,
		},
	}

	if path := os.Getenv("COURIER_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Courier.AgentID == "" {
		return nil, fmt.Errorf("COURIER_AGENT_ID (or courier.agentID) is required")
	}
	if cfg.Database.Driver != "sqlite3" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.Prefix = getEnv("DB_PREFIX", cfg.Database.Prefix)

	cfg.Courier.AgentID = getEnv("COURIER_AGENT_ID", cfg.Courier.AgentID)
	cfg.Courier.MaxQueueSize = getEnvInt("COURIER_MAX_QUEUE_SIZE", cfg.Courier.MaxQueueSize)
	cfg.Courier.MaxRetries = getEnvInt("COURIER_MAX_RETRIES", cfg.Courier.MaxRetries)
	cfg.Courier.RetryDelayMs = getEnvInt("COURIER_RETRY_DELAY_MS", cfg.Courier.RetryDelayMs)
	cfg.Courier.AckTimeoutSec = getEnvInt("COURIER_ACK_TIMEOUT_SEC", cfg.Courier.AckTimeoutSec)
	cfg.Courier.ProcessIntervalMs = getEnvInt("COURIER_PROCESS_INTERVAL_MS", cfg.Courier.ProcessIntervalMs)
	cfg.Courier.EnableNotifications = getEnvBool("COURIER_ENABLE_NOTIFICATIONS", cfg.Courier.EnableNotifications)
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves environment variable as boolean or returns default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
