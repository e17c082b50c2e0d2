package record

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memstore is an in-memory Store used for development and tests when no
// database is configured.
type memstore struct {
	mu    sync.RWMutex
	games map[string]*Game
}

func NewMemoryStore() Store {
	return &memstore{games: make(map[string]*Game)}
}

func (m *memstore) Create(ctx context.Context, g *Game) error {
	if g == nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *memstore) Save(ctx context.Context, g *Game) error {
	if g == nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return ErrNotFound
	}
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *memstore) Get(ctx context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *memstore) ListByUser(ctx context.Context, userID string, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Game
	for _, g := range m.games {
		if g.Seat(userID) != "" {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memstore) Ping(ctx context.Context) error { return nil }

func (m *memstore) Close() error { return nil }
