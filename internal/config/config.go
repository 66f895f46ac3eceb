// Package config holds the two configuration layers: process-level
// environment config read once at startup, and runtime settings
// persisted in the database and editable through the API.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/subautotrans/subautotrans/pkg/log"
)

// Config is the process-level configuration. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Host         string
	Port         int
	DatabasePath string
	LogLevel     string

	// API keys from the environment act as fallbacks for keys not yet
	// stored through the settings API.
	OpenAIAPIKey   string
	ClaudeAPIKey   string
	DeepSeekAPIKey string
	GLMAPIKey      string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to load .env file: %v", err)
	}

	cfg := &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		DatabasePath:   getEnv("DATABASE_PATH", "data/subautotrans.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		ClaudeAPIKey:   os.Getenv("CLAUDE_API_KEY"),
		DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
		GLMAPIKey:      os.Getenv("GLM_API_KEY"),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
