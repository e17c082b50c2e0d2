package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/record"
)

// Hub maps game ids to live sessions. A session is created lazily on the
// first connection for its game id and reclaimed when the last connection
// releases it; the Game Record itself persists independently. Sessions for
// different games share nothing, so the hub's own lock covers only the map.
type Hub struct {
	store record.Store
	bus   Publisher

	mu       sync.Mutex
	sessions map[string]*hubEntry
}

type hubEntry struct {
	sess *Session
	refs int
}

func NewHub(store record.Store, bus Publisher) *Hub {
	return &Hub{store: store, bus: bus, sessions: make(map[string]*hubEntry)}
}

// Acquire returns the session for a game id, loading the Game Record and
// creating the session on first use. Every Acquire must be paired with a
// Release.
func (h *Hub) Acquire(ctx context.Context, gameID string) (*Session, error) {
	h.mu.Lock()
	if e, ok := h.sessions[gameID]; ok {
		e.refs++
		h.mu.Unlock()
		return e.sess, nil
	}
	h.mu.Unlock()

	// Load outside the map lock; the store call may block on I/O.
	sess, err := newSession(ctx, gameID, h.store, h.bus)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.sessions[gameID]; ok {
		// Lost the race to another connection; use the established session.
		e.refs++
		return e.sess, nil
	}
	h.sessions[gameID] = &hubEntry{sess: sess, refs: 1}
	obslog.L().Info("session_open", zap.String("game_id", gameID))
	return sess, nil
}

// Release drops one reference. When the last holder releases, the session is
// removed; transitions are synchronous, so no work can still be pending.
func (h *Hub) Release(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.sessions[gameID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(h.sessions, gameID)
		obslog.L().Info("session_close", zap.String("game_id", gameID))
	}
}

// Len reports the number of live sessions, for health/introspection.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
