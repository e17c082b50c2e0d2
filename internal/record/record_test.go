package record

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGame(id string, created time.Time) *Game {
	return &Game{
		ID:        id,
		StartFEN:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		FEN:       "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Status:    StatusWaiting,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	g := newGame("g-1", time.Now())
	g.White = &Player{ID: "alice", Name: "Alice"}
	if err := store.Create(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "g-1" || got.White == nil || got.White.ID != "alice" {
		t.Fatalf("unexpected game: %+v", got)
	}

	// Mutating the returned copy must not touch the stored one.
	got.White.Name = "Mallory"
	again, err := store.Get(ctx, "g-1")
	if err != nil {
		t.Fatalf("get#2: %v", err)
	}
	if again.White.Name != "Alice" {
		t.Fatalf("store leaked a shared pointer")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSaveMissing(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Save(context.Background(), newGame("ghost", time.Now())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"g-old", "g-new"} {
		g := newGame(id, base.Add(time.Duration(i)*time.Minute))
		g.White = &Player{ID: "alice", Name: "Alice"}
		if err := store.Create(ctx, g); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	other := newGame("g-other", base)
	other.Black = &Player{ID: "bob", Name: "Bob"}
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	games, err := store.ListByUser(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected two games for alice, got %d", len(games))
	}
	// Newest first.
	if games[0].ID != "g-new" || games[1].ID != "g-old" {
		t.Fatalf("unexpected order: %s, %s", games[0].ID, games[1].ID)
	}

	games, err = store.ListByUser(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(games) != 1 || games[0].ID != "g-new" {
		t.Fatalf("limit not applied, got %+v", games)
	}
}

func TestGameSeat(t *testing.T) {
	g := newGame("g-1", time.Now())
	g.White = &Player{ID: "alice", Name: "Alice"}
	g.Black = &Player{ID: "bob", Name: "Bob"}

	if seat := g.Seat("alice"); seat != "white" {
		t.Fatalf("expected white, got %q", seat)
	}
	if seat := g.Seat("bob"); seat != "black" {
		t.Fatalf("expected black, got %q", seat)
	}
	if seat := g.Seat("carol"); seat != "" {
		t.Fatalf("expected empty seat, got %q", seat)
	}
}

func TestGameClone(t *testing.T) {
	g := newGame("g-1", time.Now())
	g.White = &Player{ID: "alice", Name: "Alice"}
	g.Moves = []Move{{Number: 1, Side: "white", UCI: "e2e4", SAN: "e4"}}

	cp := g.Clone()
	cp.White.Name = "Changed"
	cp.Moves[0].SAN = "??"
	cp.Moves = append(cp.Moves, Move{Number: 2})

	if g.White.Name != "Alice" || g.Moves[0].SAN != "e4" || len(g.Moves) != 1 {
		t.Fatalf("clone shares state with the original: %+v", g)
	}
}

func TestGamePGN(t *testing.T) {
	g := newGame("g-1", time.Now())
	g.Moves = []Move{
		{Number: 1, Side: "white", SAN: "e4"},
		{Number: 2, Side: "black", SAN: "e5"},
		{Number: 3, Side: "white", SAN: "Nf3"},
	}
	if got := g.PGN(); got != "1. e4 e5 2. Nf3" {
		t.Fatalf("unexpected PGN: %q", got)
	}
}
