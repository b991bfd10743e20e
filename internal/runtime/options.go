package runtime

import (
	"errors"
	"log/slog"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithConfigWatch reloads rate limits and cache TTL when path changes.
func WithConfigWatch(path string) Option {
	return func(g *Gateway) error {
		if path == "" {
			return errors.New("config path cannot be empty")
		}
		g.configPath = path
		return nil
	}
}

// WithGenerator replaces the chat completion generator.
func WithGenerator(gen ports.Generator) Option {
	return func(g *Gateway) error {
		g.generator = gen
		return nil
	}
}

// WithFetcher replaces the SQL store as the domain data source.
func WithFetcher(f ports.Fetcher) Option {
	return func(g *Gateway) error {
		g.fetcher = f
		return nil
	}
}
