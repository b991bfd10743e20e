package runtime

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/tjfontaine/polyglot-query-gateway/internal/config"
	"github.com/tjfontaine/polyglot-query-gateway/internal/conversation"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-query-gateway/internal/generation/openai"
	"github.com/tjfontaine/polyglot-query-gateway/internal/intent"
	"github.com/tjfontaine/polyglot-query-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-query-gateway/internal/optimizer"
	"github.com/tjfontaine/polyglot-query-gateway/internal/ratelimit"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/memory"
	"github.com/tjfontaine/polyglot-query-gateway/internal/tokens"
)

func newGenerator(cfg config.GenerationConfig) *openai.Generator {
	return openai.NewGenerator(openai.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: cfg.SystemPrompt,
	})
}

func newClassifier() *intent.Classifier {
	return intent.NewClassifier()
}

func newOptimizer(cfg config.ContextConfig) *optimizer.Optimizer {
	return optimizer.New(optimizer.Limits{
		MaxTotal:     cfg.MaxTotalItems,
		MaxPerDomain: cfg.MaxItemsPerDomain,
	})
}

func newConversationStore(cfg config.ConversationConfig, durable ports.TurnPersistence, logger *slog.Logger) *conversation.Store {
	return conversation.New(durable,
		memory.New(cfg.AnonymousCap, cfg.MaxKeys),
		conversation.WithLogger(logger),
		conversation.WithPersistTimeout(cfg.PersistTimeout),
	)
}

func newMetrics() *metrics.Recorder {
	return metrics.New()
}

func newTokenCounter() *tokens.Registry {
	return tokens.NewRegistry()
}

func limiterLimits(cfg config.RateLimitConfig) ratelimit.Limits {
	return ratelimit.Limits{
		MinuteLimit:  cfg.MinuteLimit,
		HourLimit:    cfg.HourLimit,
		MinuteWindow: cfg.MinuteWindow,
		HourWindow:   cfg.HourWindow,
	}
}

// restartRequired reports whether next changes settings that are only read
// at startup.
func restartRequired(prev, next *config.Config) bool {
	return prev.Server != next.Server ||
		prev.Storage != next.Storage ||
		prev.Generation != next.Generation ||
		prev.Context != next.Context ||
		prev.Conversation != next.Conversation ||
		!slices.Equal(prev.Auth.AdminUsers, next.Auth.AdminUsers) ||
		!slices.Equal(prev.Auth.APIKeys, next.Auth.APIKeys)
}

// ParseLevel maps a logging.level value to a slog level. Unknown values mean
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
