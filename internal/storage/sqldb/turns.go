package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

const turnColumns = `id, conversation_id, user_id, role, message, answer, intent,
	domains_used, sources, confidence, tokens_used, response_time_ms, created_at`

// turnRow carries the JSON-encoded slice columns alongside the turn.
type turnRow struct {
	domain.ConversationTurn
	DomainsJSON string `db:"domains_used"`
	SourcesJSON string `db:"sources"`
}

// SaveTurn inserts one turn.
func (s *Store) SaveTurn(ctx context.Context, turn *domain.ConversationTurn) error {
	domains, err := json.Marshal(nonNil(turn.DomainsUsed))
	if err != nil {
		return fmt.Errorf("failed to marshal domains: %w", err)
	}
	sources, err := json.Marshal(nonNil(turn.Sources))
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := s.dialect.Rebind(`INSERT INTO conversation_turns (` + turnColumns + `)
		VALUES (` + placeholders(13) + `)`)

	_, err = s.db.ExecContext(ctx, query,
		turn.ID, turn.ConversationID, turn.UserID, string(turn.Role), turn.Message, turn.Answer,
		string(turn.Intent), string(domains), string(sources), turn.Confidence, turn.TokensUsed,
		turn.ResponseTimeMs, turn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// LoadRecent returns up to limit of the user's newest turns, oldest first.
func (s *Store) LoadRecent(ctx context.Context, userID string, limit int) ([]*domain.ConversationTurn, error) {
	if limit <= 0 {
		return []*domain.ConversationTurn{}, nil
	}

	query := s.dialect.Rebind(`SELECT ` + turnColumns + `
		FROM conversation_turns WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	var rows []turnRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}

	turns := make([]*domain.ConversationTurn, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		t := r.ConversationTurn
		if err := json.Unmarshal([]byte(r.DomainsJSON), &t.DomainsUsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal domains for turn %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(r.SourcesJSON), &t.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources for turn %s: %w", t.ID, err)
		}
		turns = append(turns, &t)
	}
	slices.Reverse(turns)
	return turns, nil
}

// DeleteByUser removes the user's turns, or one conversation when
// conversationID is set.
func (s *Store) DeleteByUser(ctx context.Context, userID, conversationID string) error {
	query := `DELETE FROM conversation_turns WHERE user_id = ?`
	args := []any{userID}
	if conversationID != "" {
		query += ` AND conversation_id = ?`
		args = append(args, conversationID)
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
