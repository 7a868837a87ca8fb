// Package config keeps the runtime configuration for the game engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort           = 8080
	defaultCacheTTL       = 30 * time.Second
	defaultOracleTimeout  = 10 * time.Second
	defaultAdvisorTimeout = 30 * time.Second
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	Port int

	// DatabaseURL selects the PostgreSQL store; empty falls back to the
	// in-memory store. RedisURL optionally adds the read-through cache.
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	Oracle  OracleConfig
	Advisor AdvisorConfig
}

// OracleConfig holds price oracle settings.
type OracleConfig struct {
	BaseURL string // empty selects the CryptoCompare default
	Timeout time.Duration
}

// AdvisorConfig holds advice generator settings. An empty provider
// disables the advisor.
type AdvisorConfig struct {
	Provider  string
	APIKey    string
	Model     string
	OllamaURL string
	Timeout   time.Duration
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	port, err := getInt("PORT", defaultPort)
	if err != nil {
		return nil, fmt.Errorf("parse PORT: %w", err)
	}

	cacheTTL, err := getDuration("CACHE_TTL", defaultCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL: %w", err)
	}

	oracleTimeout, err := getDuration("PRICE_API_TIMEOUT", defaultOracleTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse PRICE_API_TIMEOUT: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if k := os.Getenv("GROQ_API_KEY"); k != "" {
		apiKey = k
	}

	return &Config{
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CacheTTL:    cacheTTL,
		Oracle: OracleConfig{
			BaseURL: os.Getenv("PRICE_API_URL"),
			Timeout: oracleTimeout,
		},
		Advisor: AdvisorConfig{
			Provider:  os.Getenv("LLM_PROVIDER"),
			APIKey:    apiKey,
			Model:     os.Getenv("LLM_MODEL"),
			OllamaURL: os.Getenv("OLLAMA_URL"),
			Timeout:   defaultAdvisorTimeout,
		},
	}, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
