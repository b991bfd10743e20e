package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

type errorBody struct {
	Error *domain.QueryError `json:"error"`
}

// writeError renders err as {"error":{"type","message"}}. Errors that are not
// QueryErrors are reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var qe *domain.QueryError
	if !errors.As(err, &qe) {
		qe = domain.NewQueryError("internal_error", "internal error", err)
	}
	AddError(r.Context(), err)
	writeJSON(w, qe.HTTPStatusCode(), errorBody{Error: qe})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", slog.String("error", err.Error()))
	}
}
