package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-live/internal/arbiter"
	"github.com/park285/chess-live/internal/bus"
	"github.com/park285/chess-live/internal/gateway"
	"github.com/park285/chess-live/internal/identity"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/record"
	"github.com/park285/chess-live/internal/session"
)

func newTestAPI(t *testing.T) (*httptest.Server, record.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	b, err := bus.New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	store := record.NewMemoryStore()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	gw := gateway.New(session.NewHub(store, b), b, identity.NewResolver(nil, true), cat, nil)

	srv := httptest.NewServer(NewServer(store, b, gw).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func decodeGame(t *testing.T, resp *http.Response) record.Game {
	t.Helper()
	defer resp.Body.Close()
	var g record.Game
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return g
}

func TestCreateGameDefaults(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, err := http.Post(srv.URL+"/api/games", "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	g := decodeGame(t, resp)
	if g.ID == "" || g.FEN != arbiter.StartFEN || g.Status != record.StatusWaiting {
		t.Fatalf("unexpected game: %+v", g)
	}
}

func TestCreateGameCustomFEN(t *testing.T) {
	srv, _ := newTestAPI(t)
	const fen = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

	body := strings.NewReader(`{"fen":"` + fen + `"}`)
	resp, err := http.Post(srv.URL+"/api/games", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if g := decodeGame(t, resp); g.StartFEN != fen || g.FEN != fen {
		t.Fatalf("unexpected game: %+v", g)
	}
}

func TestCreateGameRejectsBadFEN(t *testing.T) {
	srv, _ := newTestAPI(t)
	resp, err := http.Post(srv.URL+"/api/games", "application/json", strings.NewReader(`{"fen":"not a position"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetGame(t *testing.T) {
	srv, store := newTestAPI(t)
	now := time.Now()
	seed := &record.Game{
		ID: "g-lookup", StartFEN: arbiter.StartFEN, FEN: arbiter.StartFEN,
		Status: record.StatusWaiting, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Create(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/games/g-lookup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if g := decodeGame(t, resp); g.ID != "g-lookup" {
		t.Fatalf("unexpected game: %+v", g)
	}

	resp, err = http.Get(srv.URL + "/api/games/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListGamesByUser(t *testing.T) {
	srv, store := newTestAPI(t)
	now := time.Now()
	for i, id := range []string{"g-a", "g-b"} {
		g := &record.Game{
			ID: id, StartFEN: arbiter.StartFEN, FEN: arbiter.StartFEN,
			White:  &record.Player{ID: "alice", Name: "Alice"},
			Status: record.StatusInProgress,
			CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
		}
		if err := store.Create(context.Background(), g); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/games?user=alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Games []record.Game `json:"games"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Games) != 2 {
		t.Fatalf("expected two games, got %d", len(out.Games))
	}

	resp, err = http.Get(srv.URL + "/api/games")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without user param, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestAPI(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
