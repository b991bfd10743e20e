// Package conversation provides the dual-tier history store: durable SQL
// persistence for authenticated users and a bounded in-memory tier for
// anonymous traffic.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/memory"
)

// DefaultPersistTimeout bounds each durable write.
const DefaultPersistTimeout = 5 * time.Second

// tier is one history backend.
type tier interface {
	name() string
	save(ctx context.Context, turn *domain.ConversationTurn) error
	load(ctx context.Context, userID string, limit int) ([]*domain.ConversationTurn, error)
	remove(ctx context.Context, userID, conversationID string) error
}

type durableTier struct {
	p ports.TurnPersistence
}

func (d durableTier) name() string { return "durable" }

func (d durableTier) save(ctx context.Context, turn *domain.ConversationTurn) error {
	return d.p.SaveTurn(ctx, turn)
}

func (d durableTier) load(ctx context.Context, userID string, limit int) ([]*domain.ConversationTurn, error) {
	return d.p.LoadRecent(ctx, userID, limit)
}

func (d durableTier) remove(ctx context.Context, userID, conversationID string) error {
	return d.p.DeleteByUser(ctx, userID, conversationID)
}

type memoryTier struct {
	m *memory.Store
}

func (t memoryTier) name() string { return "memory" }

func (t memoryTier) save(_ context.Context, turn *domain.ConversationTurn) error {
	t.m.Append(memory.Key(turn.UserID), turn)
	return nil
}

func (t memoryTier) load(_ context.Context, userID string, limit int) ([]*domain.ConversationTurn, error) {
	return t.m.Recent(memory.Key(userID), limit), nil
}

func (t memoryTier) remove(_ context.Context, userID, conversationID string) error {
	t.m.Delete(memory.Key(userID), conversationID)
	return nil
}

// Store routes history to the durable tier when a user id is present and a
// persistence backend is configured, and to the memory tier otherwise.
type Store struct {
	durable tier
	memory  tier
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.ConversationStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPersistTimeout overrides DefaultPersistTimeout.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New creates a store. durable may be nil, in which case every turn lives
// in mem.
func New(durable ports.TurnPersistence, mem *memory.Store, opts ...Option) *Store {
	if mem == nil {
		mem = memory.New(memory.DefaultCapacity, memory.DefaultMaxKeys)
	}
	s := &Store{
		memory:  memoryTier{m: mem},
		timeout: DefaultPersistTimeout,
		logger:  slog.Default(),
	}
	if durable != nil {
		s.durable = durableTier{p: durable}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tierFor(userID string) tier {
	if userID != "" && s.durable != nil {
		return s.durable
	}
	return s.memory
}

// Append stores turn. A durable failure is logged and the turn is kept in
// the memory tier instead; nothing is returned to the caller.
func (s *Store) Append(ctx context.Context, turn *domain.ConversationTurn) {
	if turn == nil {
		return
	}
	t := s.tierFor(turn.UserID)
	if t == s.memory {
		_ = t.save(ctx, turn)
		return
	}

	// Decouple persistence from the request lifecycle so a client
	// disconnect does not drop history; still enforce a short timeout.
	persistCtx, cancel := buildPersistenceContext(ctx, s.timeout)
	defer cancel()

	if err := t.save(persistCtx, turn); err != nil {
		s.logger.Error("failed to persist conversation turn",
			slog.String("tier", t.name()),
			slog.String("turn_id", turn.ID),
			slog.String("conversation_id", turn.ConversationID),
			slog.String("user_id", turn.UserID),
			slog.String("error", domain.ErrPersistence("save turn", err).Error()),
		)
		_ = s.memory.save(ctx, turn)
	}
}

// Recent returns up to limit turns, oldest first. The durable tier is
// preferred; when it errors or has nothing the memory tier is consulted.
func (s *Store) Recent(ctx context.Context, userID string, limit int) []*domain.ConversationTurn {
	if t := s.tierFor(userID); t != s.memory {
		turns, err := t.load(ctx, userID, limit)
		if err != nil {
			s.logger.Error("failed to load conversation history",
				slog.String("tier", t.name()),
				slog.String("user_id", userID),
				slog.String("error", domain.ErrPersistence("load history", err).Error()),
			)
		}
		if len(turns) > 0 {
			return turns
		}
	}

	turns, _ := s.memory.load(ctx, userID, limit)
	if turns == nil {
		turns = []*domain.ConversationTurn{}
	}
	return turns
}

// Clear drops history in both tiers. Only durable failures are returned.
func (s *Store) Clear(ctx context.Context, userID, conversationID string) error {
	_ = s.memory.remove(ctx, userID, conversationID)

	if t := s.tierFor(userID); t != s.memory {
		if err := t.remove(ctx, userID, conversationID); err != nil {
			return domain.ErrPersistence("clear history", err)
		}
	}
	return nil
}

func buildPersistenceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}
