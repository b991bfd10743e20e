package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/memory"
	"github.com/tjfontaine/polyglot-query-gateway/internal/storage/sqldb"
)

type fakePersistence struct {
	mu       sync.Mutex
	turns    []*domain.ConversationTurn
	saveErr  error
	loadErr  error
	sawCtxOK bool
}

func (f *fakePersistence) SaveTurn(ctx context.Context, turn *domain.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sawCtxOK = ctx.Err() == nil
	if f.saveErr != nil {
		return f.saveErr
	}
	f.turns = append(f.turns, turn)
	return nil
}

func (f *fakePersistence) LoadRecent(ctx context.Context, userID string, limit int) ([]*domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []*domain.ConversationTurn
	for _, t := range f.turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakePersistence) DeleteByUser(ctx context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.turns[:0]
	for _, t := range f.turns {
		if t.UserID == userID && (conversationID == "" || t.ConversationID == conversationID) {
			continue
		}
		kept = append(kept, t)
	}
	f.turns = kept
	return nil
}

func newTurn(i int, user string) *domain.ConversationTurn {
	return &domain.ConversationTurn{
		ID:             fmt.Sprintf("t%03d", i),
		ConversationID: "c1",
		UserID:         user,
		Role:           domain.RoleUser,
		Message:        fmt.Sprintf("q%d", i),
		Intent:         domain.IntentGeneral,
		CreatedAt:      time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second),
	}
}

func TestStore_AnonymousCappedAtHundred(t *testing.T) {
	s := New(&fakePersistence{}, nil)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		s.Append(ctx, newTurn(i, ""))
	}

	got := s.Recent(ctx, "", 1000)
	if len(got) != 100 {
		t.Fatalf("Recent() returned %d turns, want 100", len(got))
	}
	if got[0].ID != "t050" || got[99].ID != "t149" {
		t.Errorf("Recent() spans %s..%s, want t050..t149", got[0].ID, got[99].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("Recent() not chronological at %d", i)
		}
	}
}

func TestStore_AuthenticatedUsesDurableTier(t *testing.T) {
	p := &fakePersistence{}
	mem := memory.New(0, 0)
	s := New(p, mem)
	ctx := context.Background()

	s.Append(ctx, newTurn(1, "u1"))

	if len(p.turns) != 1 {
		t.Fatalf("durable turns = %d, want 1", len(p.turns))
	}
	if mem.Len("u1") != 0 {
		t.Error("authenticated turn also written to memory tier")
	}
	if got := s.Recent(ctx, "u1", 10); len(got) != 1 || got[0].ID != "t001" {
		t.Errorf("Recent() = %v", got)
	}
}

func TestStore_PersistsWithCancelledContext(t *testing.T) {
	p := &fakePersistence{}
	s := New(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // simulate client disconnect

	s.Append(ctx, newTurn(1, "u1"))

	if len(p.turns) != 1 || !p.sawCtxOK {
		t.Fatalf("turn not persisted with a live context: turns=%d ctxOK=%v", len(p.turns), p.sawCtxOK)
	}
}

func TestStore_DurableFailureFallsBackToMemory(t *testing.T) {
	p := &fakePersistence{saveErr: errors.New("disk full")}
	mem := memory.New(0, 0)
	s := New(p, mem)
	ctx := context.Background()

	s.Append(ctx, newTurn(1, "u1"))

	if mem.Len("u1") != 1 {
		t.Fatalf("memory tier turns = %d, want 1", mem.Len("u1"))
	}
	if got := s.Recent(ctx, "u1", 10); len(got) != 1 {
		t.Errorf("Recent() = %d turns, want 1 from memory", len(got))
	}
}

func TestStore_RecentFallsBackWhenDurableFails(t *testing.T) {
	p := &fakePersistence{}
	mem := memory.New(0, 0)
	s := New(p, mem)
	ctx := context.Background()

	mem.Append("u1", newTurn(7, "u1"))
	p.loadErr = errors.New("connection refused")

	got := s.Recent(ctx, "u1", 10)
	if len(got) != 1 || got[0].ID != "t007" {
		t.Errorf("Recent() = %v, want memory turn", got)
	}
}

func TestStore_RecentEmptyIsNonNil(t *testing.T) {
	s := New(nil, nil)
	if got := s.Recent(context.Background(), "nobody", 10); got == nil || len(got) != 0 {
		t.Errorf("Recent() = %#v, want empty slice", got)
	}
}

func TestStore_WithoutDurableKeepsUsersInMemory(t *testing.T) {
	mem := memory.New(0, 0)
	s := New(nil, mem)
	ctx := context.Background()

	s.Append(ctx, newTurn(1, "u1"))
	s.Append(ctx, newTurn(2, ""))

	if mem.Len("u1") != 1 || mem.Len(memory.AnonymousKey) != 1 {
		t.Errorf("memory lens = %d/%d, want 1/1", mem.Len("u1"), mem.Len(memory.AnonymousKey))
	}
}

func TestStore_Clear(t *testing.T) {
	p := &fakePersistence{}
	mem := memory.New(0, 0)
	s := New(p, mem)
	ctx := context.Background()

	s.Append(ctx, newTurn(1, "u1"))
	mem.Append("u1", newTurn(2, "u1"))
	s.Append(ctx, newTurn(3, ""))

	if err := s.Clear(ctx, "u1", ""); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(p.turns) != 0 || mem.Len("u1") != 0 {
		t.Errorf("after Clear durable=%d memory=%d", len(p.turns), mem.Len("u1"))
	}

	if err := s.Clear(ctx, "", "c1"); err != nil {
		t.Fatalf("Clear(anonymous) error = %v", err)
	}
	if mem.Len(memory.AnonymousKey) != 0 {
		t.Error("anonymous conversation not cleared")
	}
}

func TestStore_WithSQLPersistence(t *testing.T) {
	db, err := sqldb.NewSQLite("file:conversation_store?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer db.Close()

	s := New(db, nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		s.Append(ctx, newTurn(i, "u1"))
	}

	got := s.Recent(ctx, "u1", 2)
	if len(got) != 2 || got[0].ID != "t002" || got[1].ID != "t003" {
		t.Errorf("Recent() = %v, want t002, t003", got)
	}
}
