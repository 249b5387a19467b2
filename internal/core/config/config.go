// Package config provides configuration management for tagrules services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig
	Rules  RulesConfig
	Eval   EvalConfig
	Log    LogConfig
	// DBURL enables persistence when set (sqlite://path or postgres://...).
	DBURL string
}

// ServerConfig holds configuration for the gRPC rule service.
type ServerConfig struct {
	Host           string
	Port           int
	MetricsAddr    string // empty disables the metrics listener
	RequestTimeout time.Duration
	MaxBatchSize   int
}

// Addr returns host:port for the gRPC listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RulesConfig locates tag and rule files and sets compile policy.
type RulesConfig struct {
	Dir         string
	TagsGlob    string
	RulesGlob   string
	SkipInvalid bool // compile leniently, rejecting bad rules instead of failing
	Watch       bool
}

// EvalConfig tunes batch evaluation.
type EvalConfig struct {
	Workers int
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MetricsAddr:    ":9090",
			RequestTimeout: 30 * time.Second,
			MaxBatchSize:   1000,
		},
		Rules: RulesConfig{
			Dir:       "./config",
			TagsGlob:  "*.tags",
			RulesGlob: "*.rules",
		},
		Eval: EvalConfig{Workers: 4},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

// minAPIKeyLength rejects trivially guessable keys.
const minAPIKeyLength = 16

// APIKeys extracts API keys from environment variables.
// Supports TR_API_KEY (single) and TR_API_KEY_N (rotation).
// An empty result means authentication is disabled.
func APIKeys() ([]string, error) {
	var keys []string
	seen := make(map[string]string)

	add := func(env, val string) error {
		key, err := ParseAPIKey(val)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("duplicate API key in %s and %s", prev, env)
		}
		seen[key] = env
		keys = append(keys, key)
		return nil
	}

	if val := os.Getenv("TR_API_KEY"); val != "" {
		if err := add("TR_API_KEY", val); err != nil {
			return nil, err
		}
	}

	// Numbered keys let old and new keys overlap during rotation
	for i := 1; ; i++ {
		env := fmt.Sprintf("TR_API_KEY_%d", i)
		val := os.Getenv(env)
		if val == "" {
			break
		}
		if err := add(env, val); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// ParseAPIKey trims and validates one API key value.
func ParseAPIKey(envValue string) (string, error) {
	key := strings.TrimSpace(envValue)
	if len(key) < minAPIKeyLength {
		return "", fmt.Errorf("API key must be at least %d characters, got %d", minAPIKeyLength, len(key))
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return "", fmt.Errorf("API key must not contain whitespace")
	}
	return key, nil
}
