package record

import "context"

// Store is the durable Game Record store. Writes are last-writer-wins; the
// per-game session coordinator is the single writer for a given id, so the
// store does not lock.
type Store interface {
	Create(ctx context.Context, g *Game) error
	Get(ctx context.Context, id string) (*Game, error)
	// Save persists the full record (seats, position, move list, status).
	Save(ctx context.Context, g *Game) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Game, error)
	Ping(ctx context.Context) error
	Close() error
}
