// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-query-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-query-gateway/internal/ratelimit"
)

// QueryService is the pipeline surface the handlers drive.
type QueryService interface {
	Process(ctx context.Context, req domain.QueryRequest) *domain.QueryResponse
	History(ctx context.Context, userID, conversationID string, limit int) []*domain.ConversationTurn
	ClearHistory(ctx context.Context, userID, conversationID string) error
	ClearCache(tag domain.DomainTag)
	Metrics() metrics.Snapshot
}

// Config configures the HTTP surface.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	// AdminUsers may call /admin routes. Empty leaves them open.
	AdminUsers []string
	// TrustProxy takes the client address from X-Forwarded-For and related
	// headers. Only enable behind a proxy that overwrites them; otherwise
	// clients pick their own rate-limit identity.
	TrustProxy bool
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	svc     QueryService
	limiter *ratelimit.Limiter

	httpServer *http.Server
}

func New(cfg Config, logger *slog.Logger, svc QueryService, limiter *ratelimit.Limiter, authenticator *auth.Authenticator) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultLimits())
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(AuthMiddleware(authenticator))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "query-gateway")
	})

	s := &Server{
		Router:  r,
		Port:    cfg.Port,
		logger:  logger,
		svc:     svc,
		limiter: limiter,
	}
	s.routes(cfg)
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg Config) {
	s.Router.Get("/health", s.handleHealth)

	s.Router.Route("/v1", func(r chi.Router) {
		r.With(RateLimitMiddleware(s.limiter)).Post("/query", s.handleQuery)
		r.Get("/history", s.handleGetHistory)
		r.Delete("/history", s.handleDeleteHistory)
	})

	s.Router.Route("/admin", func(r chi.Router) {
		r.Use(AdminMiddleware(cfg.AdminUsers))
		r.Get("/metrics", s.handleMetrics)
		r.Get("/ratelimit", s.handleRateLimitStats)
		r.Delete("/ratelimit/{clientID}", s.handleRateLimitReset)
		r.Delete("/cache", s.handleClearCache)
		r.Delete("/cache/{domain}", s.handleClearCache)
	})

	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, domain.NewQueryError(domain.ErrorKindNotFound, "route not found", nil))
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
