package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/tjfontaine/polyglot-query-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

type identityContextKey struct{}

// AuthMiddleware resolves the caller identity from a bearer API key.
// Requests without an Authorization header continue anonymously; a header
// that does not map to a user is rejected with 401. A nil authenticator
// treats every request as anonymous.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticator == nil {
				next.ServeHTTP(w, r)
				return
			}

			apiKey, err := auth.ExtractAPIKey(r)
			if errors.Is(err, auth.ErrMissingKey) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				writeError(w, r, domain.NewQueryError(domain.ErrorKindUnauthorized, err.Error(), nil))
				return
			}

			id, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				writeError(w, r, domain.NewQueryError(domain.ErrorKindUnauthorized, "invalid API key", nil))
				return
			}

			AddLogField(r.Context(), "user_id", id.UserID)
			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the caller identity from context.
// Returns nil for anonymous requests.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*auth.Identity); ok {
		return id
	}
	return nil
}

// GetUserID returns the authenticated user id, or "" when anonymous.
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// AdminMiddleware restricts a route group to the listed user ids. An empty
// list leaves the group open.
func AdminMiddleware(admins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(admins))
	for _, a := range admins {
		if a != "" {
			allowed[a] = true
		}
	}
	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[GetUserID(r.Context())] {
				writeError(w, r, domain.NewQueryError(domain.ErrorKindForbidden, "admin access required", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
