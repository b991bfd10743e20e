// Package config loads service configuration from an optional YAML file and
// QP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-query-gateway/internal/auth"
)

// EnvPrefix prefixes every environment override. Levels are separated by a
// double underscore: QP_SERVER__PORT sets server.port.
const EnvPrefix = "QP_"

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Storage      StorageConfig      `koanf:"storage"`
	Generation   GenerationConfig   `koanf:"generation"`
	Cache        CacheConfig        `koanf:"cache"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
	Context      ContextConfig      `koanf:"context"`
	Conversation ConversationConfig `koanf:"conversation"`
	Auth         AuthConfig         `koanf:"auth"`
	Logging      LoggingConfig      `koanf:"logging"`
	Tracing      TracingConfig      `koanf:"tracing"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	TrustProxy     bool          `koanf:"trust_proxy"`
}

type StorageConfig struct {
	Driver     string `koanf:"driver"` // sqlite, postgres
	DSN        string `koanf:"dsn"`
	FetchLimit int    `koanf:"fetch_limit"`
}

type GenerationConfig struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	Model        string        `koanf:"model"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxTokens    int           `koanf:"max_tokens"`
	SystemPrompt string        `koanf:"system_prompt"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type RateLimitConfig struct {
	MinuteLimit  int           `koanf:"minute_limit"`
	HourLimit    int           `koanf:"hour_limit"`
	MinuteWindow time.Duration `koanf:"minute_window"`
	HourWindow   time.Duration `koanf:"hour_window"`
}

type ContextConfig struct {
	MaxTotalItems     int `koanf:"max_total_items"`
	MaxItemsPerDomain int `koanf:"max_items_per_domain"`
	MaxContextTokens  int `koanf:"max_context_tokens"`
	HistoryTurns      int `koanf:"history_turns"`
}

type ConversationConfig struct {
	AnonymousCap   int           `koanf:"anonymous_cap"`
	MaxKeys        int           `koanf:"max_keys"`
	PersistTimeout time.Duration `koanf:"persist_timeout"`
}

type AuthConfig struct {
	APIKeys    []auth.APIKey `koanf:"api_keys"`
	AdminUsers []string      `koanf:"admin_users"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":                  8080,
	"server.request_timeout":       "30s",
	"server.trust_proxy":           false,
	"storage.driver":               "sqlite",
	"storage.dsn":                  "./data/query.db",
	"storage.fetch_limit":          500,
	"generation.base_url":          "https://api.openai.com/v1",
	"generation.model":             "gpt-4o-mini",
	"generation.timeout":           "30s",
	"generation.max_tokens":        800,
	"cache.ttl":                    "5m",
	"ratelimit.minute_limit":       30,
	"ratelimit.hour_limit":         500,
	"ratelimit.minute_window":      "1m",
	"ratelimit.hour_window":        "1h",
	"context.max_total_items":      30,
	"context.max_items_per_domain": 15,
	"context.max_context_tokens":   3000,
	"context.history_turns":        6,
	"conversation.anonymous_cap":   100,
	"conversation.max_keys":        1000,
	"conversation.persist_timeout": "5s",
	"logging.level":                "info",
	"tracing.enabled":              false,
	"tracing.service_name":         "polyglot-query-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (when it exists), then environment overrides, then fills
// defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Generation.APIKey = substituteEnvVars(cfg.Generation.APIKey)
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	for i := range cfg.Auth.APIKeys {
		cfg.Auth.APIKeys[i].KeyHash = substituteEnvVars(cfg.Auth.APIKeys[i].KeyHash)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.RateLimit.MinuteLimit <= 0 || c.RateLimit.HourLimit <= 0 {
		errs = append(errs, errors.New("ratelimit limits must be positive"))
	}
	if c.RateLimit.MinuteWindow <= 0 || c.RateLimit.HourWindow <= 0 {
		errs = append(errs, errors.New("ratelimit windows must be positive"))
	}
	if c.Context.MaxItemsPerDomain > c.Context.MaxTotalItems {
		errs = append(errs, fmt.Errorf("context.max_items_per_domain %d exceeds max_total_items %d",
			c.Context.MaxItemsPerDomain, c.Context.MaxTotalItems))
	}
	for i, k := range c.Auth.APIKeys {
		if k.KeyHash == "" || k.UserID == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d] needs key_hash and user_id", i))
		}
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
