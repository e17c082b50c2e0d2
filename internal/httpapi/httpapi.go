// Package httpapi exposes the REST surface: game creation and lookup, the
// websocket route, and health. The live protocol itself lives in gateway.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/arbiter"
	"github.com/park285/chess-live/internal/gateway"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/record"
)

// Pinger is the liveness probe half of the bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	store record.Store
	bus   Pinger
	gw    *gateway.Gateway
}

func NewServer(store record.Store, bus Pinger, gw *gateway.Gateway) *Server {
	return &Server{store: store, bus: bus, gw: gw}
}

// Router builds the full route table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/api/games", s.handleCreateGame)
	r.Get("/api/games", s.handleListGames)
	r.Get("/api/games/{id}", s.handleGetGame)
	r.Get("/ws/games/{id}", s.gw.HandleWS)
	r.Get("/healthz", s.handleHealth)
	return r
}

type createGameRequest struct {
	FEN string `json:"fen,omitempty"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	// An empty body means a standard game from the initial position.
	var req createGameRequest
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	fen := strings.TrimSpace(req.FEN)
	if fen == "" {
		fen = arbiter.StartFEN
	}
	if err := arbiter.ValidateFEN(fen); err != nil {
		writeError(w, http.StatusBadRequest, "invalid FEN")
		return
	}

	now := time.Now()
	g := &record.Game{
		ID:        uuid.NewString(),
		StartFEN:  fen,
		FEN:       fen,
		Status:    record.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(r.Context(), g); err != nil {
		obslog.L().Error("api_create_game_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create game")
		return
	}
	obslog.L().Info("api_game_created", zap.String("game_id", g.ID))
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	g, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		obslog.L().Error("api_get_game_error", zap.String("game_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load game")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	games, err := s.store.ListByUser(r.Context(), user, limit)
	if err != nil {
		obslog.L().Error("api_list_games_error", zap.String("user_id", user), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list games")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if s.bus != nil {
		if err := s.bus.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "bus unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("api_write_error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
