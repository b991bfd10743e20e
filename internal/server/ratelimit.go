package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/ratelimit"
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

type clientIDContextKey struct{}

// RateLimitInfo is the limiter state reported in response headers.
type RateLimitInfo struct {
	RequestsLimit     int
	RequestsRemaining int
	RequestsReset     string
	RetryAfter        int
}

// SetRateLimits stores rate limit info in context for the header writer.
func SetRateLimits(ctx context.Context, rl *RateLimitInfo) context.Context {
	return context.WithValue(ctx, rateLimitContextKey{}, rl)
}

// GetRateLimits retrieves rate limit info from context.
// Returns nil if no rate limits are set.
func GetRateLimits(ctx context.Context) *RateLimitInfo {
	if rl, ok := ctx.Value(rateLimitContextKey{}).(*RateLimitInfo); ok {
		return rl
	}
	return nil
}

// GetClientID returns the rate-limit identity resolved for the request.
func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDContextKey{}).(string); ok {
		return id
	}
	return ""
}

// RateLimitMiddleware checks every request against limiter before it reaches
// the pipeline. The client identity is the authenticated user id, else the
// normalized remote address. Denied requests get 429 with Retry-After.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ratelimit.ClientID(GetUserID(r.Context()), r.RemoteAddr)
			AddLogField(r.Context(), "client_id", clientID)

			d := limiter.Check(clientID)
			info := &RateLimitInfo{
				RequestsLimit:     d.Limit,
				RequestsRemaining: d.Remaining,
				RequestsReset:     d.ResetAt.UTC().Format(http.TimeFormat),
				RetryAfter:        d.RetryAfter,
			}
			ctx := context.WithValue(SetRateLimits(r.Context(), info), clientIDContextKey{}, clientID)
			r = r.WithContext(ctx)
			writeRateLimitHeaders(w.Header(), info)

			if !d.Allowed {
				AddLogField(ctx, "ratelimit_window", string(d.Window))
				writeError(w, r, domain.ErrRateLimited(d.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitHeaders writes the x-ratelimit-{limit|remaining|reset}-requests
// headers, plus Retry-After on denial.
func writeRateLimitHeaders(h http.Header, rl *RateLimitInfo) {
	if rl == nil {
		return
	}
	if rl.RequestsLimit > 0 {
		h.Set("x-ratelimit-limit-requests", strconv.Itoa(rl.RequestsLimit))
		// 0 is a valid remaining value once a limit is known
		h.Set("x-ratelimit-remaining-requests", strconv.Itoa(rl.RequestsRemaining))
	}
	if rl.RequestsReset != "" {
		h.Set("x-ratelimit-reset-requests", rl.RequestsReset)
	}
	if rl.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(rl.RetryAfter))
	}
}
