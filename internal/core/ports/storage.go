package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// TurnPersistence is the durable history backend.
type TurnPersistence interface {
	// SaveTurn stores one turn.
	SaveTurn(ctx context.Context, turn *domain.ConversationTurn) error

	// LoadRecent returns up to limit of the user's newest turns in
	// chronological order.
	LoadRecent(ctx context.Context, userID string, limit int) ([]*domain.ConversationTurn, error)

	// DeleteByUser removes the user's turns, optionally only one conversation.
	DeleteByUser(ctx context.Context, userID, conversationID string) error
}

// ConversationStore is the unified history interface used by the pipeline.
type ConversationStore interface {
	// Append stores a turn. Failures are logged, never returned.
	Append(ctx context.Context, turn *domain.ConversationTurn)

	// Recent returns up to limit turns for userID in chronological order.
	// An empty userID addresses the anonymous tier.
	Recent(ctx context.Context, userID string, limit int) []*domain.ConversationTurn

	// Clear drops the user's history, optionally one conversation only.
	Clear(ctx context.Context, userID, conversationID string) error
}
