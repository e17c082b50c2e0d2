// Package record holds the durable Game Record and its stores. A record is
// mutated only through the session coordinator that owns the game id; the
// stores themselves do no locking.
package record

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("game not found")

// Status is the game lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting_for_players"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Reason explains how a completed game ended.
type Reason string

const (
	ReasonCheckmate   Reason = "checkmate"
	ReasonResignation Reason = "resignation"
	ReasonDrawAgreed  Reason = "draw_agreed"
	ReasonStalemate   Reason = "stalemate"
	ReasonDraw        Reason = "draw"
)

// Player is a seated participant.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Move is one half-move. Side is recorded so takeback preconditions check the
// actual mover instead of deriving it from move-number parity. FENBefore is
// kept so an accepted takeback restores the pre-move position directly.
type Move struct {
	Number    int       `json:"number"`
	Side      string    `json:"side"`
	UCI       string    `json:"uci"`
	SAN       string    `json:"san"`
	FENBefore string    `json:"fen_before"`
	FENAfter  string    `json:"fen_after"`
	At        time.Time `json:"at"`
}

// Game is the persisted state of one game.
type Game struct {
	ID        string    `json:"id"`
	StartFEN  string    `json:"start_fen"`
	FEN       string    `json:"fen"`
	White     *Player   `json:"white,omitempty"`
	Black     *Player   `json:"black,omitempty"`
	Moves     []Move    `json:"moves"`
	Status    Status    `json:"status"`
	Winner    string    `json:"winner,omitempty"` // "white", "black" or "draw"
	Reason    Reason    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. The coordinator mutates a clone and swaps it in
// only after the store write succeeds.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	if g.White != nil {
		w := *g.White
		cp.White = &w
	}
	if g.Black != nil {
		b := *g.Black
		cp.Black = &b
	}
	cp.Moves = append([]Move(nil), g.Moves...)
	return &cp
}

// Seat returns "white" or "black" for a seated identity, "" otherwise.
func (g *Game) Seat(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ""
	}
	if g.White != nil && g.White.ID == userID {
		return "white"
	}
	if g.Black != nil && g.Black.ID == userID {
		return "black"
	}
	return ""
}

// PlayerName returns the display name seated on a side, "" when open.
func (g *Game) PlayerName(side string) string {
	switch side {
	case "white":
		if g.White != nil {
			return g.White.Name
		}
	case "black":
		if g.Black != nil {
			return g.Black.Name
		}
	}
	return ""
}

// PGN renders the SAN move list with move numbering, original platform style
// ("1. e4 e5 2. Nf3").
func (g *Game) PGN() string {
	var b strings.Builder
	for i, mv := range g.Moves {
		if i%2 == 0 {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(strconv.Itoa(i/2+1) + ". " + mv.SAN)
		} else {
			b.WriteString(" " + mv.SAN)
		}
	}
	return b.String()
}
