package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

const (
	// MaxQueryRunes bounds the question text.
	MaxQueryRunes = 2000
	// DefaultHistoryLimit applies when ?limit is absent.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps ?limit.
	MaxHistoryLimit = 100

	maxBodyBytes = 64 << 10
)

type queryBody struct {
	Text             string   `json:"text"`
	ConversationID   string   `json:"conversation_id"`
	RequestedDomains []string `json:"requested_domains"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = GetUserID(r.Context())
	req.ClientID = GetClientID(r.Context())

	resp := s.svc.Process(r.Context(), req)

	AddLogField(r.Context(), "intent", string(resp.Intent))
	AddLogField(r.Context(), "conversation_id", resp.ConversationID)
	writeJSON(w, http.StatusOK, resp)
}

func decodeQuery(r *http.Request) (domain.QueryRequest, error) {
	var body queryBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return domain.QueryRequest{}, domain.ErrInvalidRequest("request body must be a JSON object")
	}

	text := strings.TrimSpace(body.Text)
	if text == "" {
		return domain.QueryRequest{}, domain.ErrInvalidRequest("text is required")
	}
	if utf8.RuneCountInString(text) > MaxQueryRunes {
		return domain.QueryRequest{}, domain.ErrInvalidRequest("text exceeds " + strconv.Itoa(MaxQueryRunes) + " characters")
	}

	req := domain.QueryRequest{Text: text, ConversationID: strings.TrimSpace(body.ConversationID)}
	for _, d := range body.RequestedDomains {
		tag, ok := domain.ParseDomainTag(strings.TrimSpace(d))
		if !ok {
			return domain.QueryRequest{}, domain.ErrInvalidRequest("unknown domain " + strconv.Quote(d))
		}
		req.RequestedDomains = append(req.RequestedDomains, tag)
	}
	return req, nil
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, domain.ErrInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	userID, conversationID, err := historyScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	turns := s.svc.History(r.Context(), userID, conversationID, limit)
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, conversationID, err := historyScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.ClearHistory(r.Context(), userID, conversationID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// historyScope returns the user and conversation a history call may touch.
// Anonymous callers share one history tier, so they must name their own
// conversation.
func historyScope(r *http.Request) (string, string, error) {
	userID := GetUserID(r.Context())
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if userID == "" && conversationID == "" {
		return "", "", domain.ErrInvalidRequest("conversation_id is required without an API key")
	}
	return userID, conversationID, nil
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics())
}

func (s *Server) handleRateLimitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Stats())
}

func (s *Server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	existed := s.limiter.Reset(clientID)
	AddLogField(r.Context(), "reset_client_id", clientID)
	writeJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "reset": existed})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	tag := domain.DomainAll
	if v := chi.URLParam(r, "domain"); v != "" {
		parsed, ok := domain.ParseDomainTag(v)
		if !ok {
			writeError(w, r, domain.ErrInvalidRequest("unknown domain "+strconv.Quote(v)))
			return
		}
		tag = parsed
	}
	s.svc.ClearCache(tag)
	writeJSON(w, http.StatusOK, map[string]string{"cleared": string(tag)})
}
