// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	APIKey        string
	JulesBaseURL  string
	SourceName    string
	BranchName    string
	PollInterval  time.Duration
	MaxPollEmpty  int
	PollPageSize  int
	DBPath        string
	HistoryMaxAge time.Duration
	AllowedOrigin string
	LogLevel      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	retentionDays := getEnvInt("HISTORY_RETENTION_DAYS", 7)
	if retentionDays <= 0 {
		retentionDays = 7
	}

	cfg := &Config{
		Port:          getEnv("PORT", "7700"),
		APIKey:        getEnv("API_KEY", ""),
		JulesBaseURL:  getEnv("JULES_API_BASE_URL", ""),
		SourceName:    getEnv("SOURCE_NAME", ""),
		BranchName:    getEnv("BRANCH_NAME", ""),
		PollInterval:  time.Duration(getEnvInt("POLL_INTERVAL", 5000)) * time.Millisecond,
		MaxPollEmpty:  getEnvInt("MAX_POLL_RETRIES", 120),
		PollPageSize:  getEnvInt("POLL_PAGE_SIZE", 50),
		DBPath:        getEnv("DB_PATH", "./data/bridge.db"),
		HistoryMaxAge: time.Duration(retentionDays) * 24 * time.Hour,
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.MaxPollEmpty <= 0 {
		return fmt.Errorf("MAX_POLL_RETRIES must be > 0")
	}
	if c.PollPageSize <= 0 {
		return fmt.Errorf("POLL_PAGE_SIZE must be > 0")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AllowedOrigin == "" ||
		strings.Contains(c.AllowedOrigin, "localhost") ||
		strings.Contains(c.AllowedOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
