package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and verifies connectivity.
func NewPostgresStore(databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Create(ctx context.Context, g *Game) error {
	if g == nil {
		return fmt.Errorf("nil game record")
	}
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const q = `INSERT INTO games (
			id, start_fen, current_fen,
			white_id, white_name, black_id, black_name,
			status, winner, reason, moves, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13)`
	_, err = s.db.ExecContext(ctx, q,
		g.ID, g.StartFEN, g.FEN,
		playerID(g.White), playerName(g.White), playerID(g.Black), playerName(g.Black),
		string(g.Status), nullable(g.Winner), nullable(string(g.Reason)), string(moves),
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *postgresStore) Save(ctx context.Context, g *Game) error {
	if g == nil {
		return fmt.Errorf("nil game record")
	}
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const q = `UPDATE games SET
			current_fen=$2,
			white_id=$3, white_name=$4, black_id=$5, black_name=$6,
			status=$7, winner=$8, reason=$9, moves=$10::jsonb, updated_at=$11
		WHERE id=$1`
	res, err := s.db.ExecContext(ctx, q,
		g.ID, g.FEN,
		playerID(g.White), playerName(g.White), playerID(g.Black), playerName(g.Black),
		string(g.Status), nullable(g.Winner), nullable(string(g.Reason)), string(moves),
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*Game, error) {
	const q = `SELECT id, start_fen, current_fen,
			white_id, white_name, black_id, black_name,
			status, winner, reason, moves, created_at, updated_at
		FROM games WHERE id=$1`
	return scanGame(s.db.QueryRowContext(ctx, q, strings.TrimSpace(id)))
}

func (s *postgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT id, start_fen, current_fen,
			white_id, white_name, black_id, black_name,
			status, winner, reason, moves, created_at, updated_at
		FROM games
		WHERE white_id=$1 OR black_id=$1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()
	var out []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *postgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g                  Game
		whiteID, whiteName sql.NullString
		blackID, blackName sql.NullString
		winner, reason     sql.NullString
		moves              []byte
		status             string
	)
	err := row.Scan(
		&g.ID, &g.StartFEN, &g.FEN,
		&whiteID, &whiteName, &blackID, &blackName,
		&status, &winner, &reason, &moves, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}
	g.Status = Status(status)
	g.Winner = winner.String
	g.Reason = Reason(reason.String)
	if whiteID.Valid && whiteID.String != "" {
		g.White = &Player{ID: whiteID.String, Name: whiteName.String}
	}
	if blackID.Valid && blackID.String != "" {
		g.Black = &Player{ID: blackID.String, Name: blackName.String}
	}
	if len(moves) > 0 {
		if err := json.Unmarshal(moves, &g.Moves); err != nil {
			return nil, fmt.Errorf("unmarshal moves: %w", err)
		}
	}
	return &g, nil
}

func playerID(p *Player) any {
	if p == nil {
		return nil
	}
	return p.ID
}

func playerName(p *Player) any {
	if p == nil {
		return nil
	}
	return p.Name
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
