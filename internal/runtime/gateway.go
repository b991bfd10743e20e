// Package runtime assembles the query pipeline from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/polyglot-query-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-query-gateway/internal/cache"
	"github.com/tjfontaine/polyglot-query-gateway/internal/config"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-query-gateway/internal/pipeline"
	"github.com/tjfontaine/polyglot-query-gateway/internal/ratelimit"
	"github.com/tjfontaine/polyglot-query-gateway/internal/server"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/sqldb"
)

// Gateway owns every long-lived component of a running query service.
type Gateway struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	// Overrides (injected via options)
	generator ports.Generator
	fetcher   ports.Fetcher

	store        *sqldb.Store
	cache        *cache.DomainCache
	limiter      *ratelimit.Limiter
	orchestrator *pipeline.Orchestrator
	server       *server.Server
	watcher      *config.Watcher

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New builds a gateway from cfg. Nothing is started until Start.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}

	gw := &Gateway{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	store, err := sqldb.New(sqldb.Config{
		Driver:     cfg.Storage.Driver,
		DSN:        cfg.Storage.DSN,
		FetchLimit: cfg.Storage.FetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	gw.store = store

	if err := gw.build(); err != nil {
		store.Close()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) build() error {
	cfg := g.cfg

	if g.fetcher == nil {
		g.fetcher = g.store
	}
	if g.generator == nil {
		if cfg.Generation.APIKey == "" {
			g.logger.Warn("generation.api_key is empty, every query will return the fallback answer")
		}
		g.generator = newGenerator(cfg.Generation)
	}

	g.cache = cache.New(cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(g.logger))
	g.limiter = ratelimit.New(limiterLimits(cfg.RateLimit), ratelimit.WithLogger(g.logger))

	orch, err := pipeline.New(pipeline.Deps{
		Classifier: newClassifier(),
		Cache:      g.cache,
		Fetcher:    g.fetcher,
		Optimizer:  newOptimizer(cfg.Context),
		Generator:  g.generator,
		History:    newConversationStore(cfg.Conversation, g.store, g.logger),
		Metrics:    newMetrics(),
		Tokens:     newTokenCounter(),
	},
		pipeline.WithModel(cfg.Generation.Model),
		pipeline.WithMaxContextTokens(cfg.Context.MaxContextTokens),
		pipeline.WithGenerationTimeout(cfg.Generation.Timeout),
		pipeline.WithHistoryTurns(cfg.Context.HistoryTurns),
		pipeline.WithLogger(g.logger),
	)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	g.orchestrator = orch

	if len(cfg.Auth.AdminUsers) == 0 {
		g.logger.Warn("auth.admin_users is empty, /admin routes are open to every caller")
	}

	g.server = server.New(server.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminUsers:     cfg.Auth.AdminUsers,
		TrustProxy:     cfg.Server.TrustProxy,
	}, g.logger, orch, g.limiter, auth.NewAuthenticator(cfg.Auth.APIKeys))
	return nil
}

// Handler returns the HTTP handler without starting a listener.
func (g *Gateway) Handler() http.Handler {
	return g.server.Router
}

// Store returns the durable store, for seeding and administration.
func (g *Gateway) Store() *sqldb.Store {
	return g.store
}

// Start launches the limiter sweeper, the config watcher (when a config path
// was given) and the HTTP listener.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping storage: %w", err)
	}

	g.ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.limiter.Run(g.ctx)
	}()

	if g.configPath != "" {
		w, err := config.NewWatcher(g.configPath, g.cfg, g.logger)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := w.Watch(g.ctx, g.reload); err != nil {
			g.logger.Warn("config hot-reload unavailable", slog.String("error", err.Error()))
		} else {
			g.watcher = w
		}
	}

	go func() {
		if err := g.server.Start(); err != nil {
			g.logger.Error("server failed", slog.String("error", err.Error()))
		}
	}()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("storage", g.store.Dialect().Name()),
		slog.String("model", g.cfg.Generation.Model))

	return nil
}

// Shutdown drains HTTP traffic, then stops background work and closes
// storage.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	if g.watcher != nil {
		if err := g.watcher.Close(); err != nil {
			g.logger.Error("failed to close config watcher", slog.String("error", err.Error()))
		}
	}

	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

// reload applies the settings that can change without a restart. Everything
// else is logged and left for the next restart.
func (g *Gateway) reload(next *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.cfg
	g.limiter.SetLimits(limiterLimits(next.RateLimit))
	g.cache.SetTTL(next.Cache.TTL)

	if restartRequired(prev, next) {
		g.logger.Warn("config change requires restart to take full effect")
	}

	g.cfg = next
	g.logger.Info("config reloaded",
		slog.Int("minute_limit", next.RateLimit.MinuteLimit),
		slog.Int("hour_limit", next.RateLimit.HourLimit),
		slog.Duration("cache_ttl", next.Cache.TTL))
}
