// Package session owns the live, per-game coordination state. One Session
// exists per active game id; it serializes every mutating operation, guards
// the negotiation sub-protocol, and is the only writer of the Game Record.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/arbiter"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/record"
	"github.com/park285/chess-live/pkg/gamedto"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameNotWaiting     = errors.New("game already started")
	ErrGameNotInProgress  = errors.New("game is not in progress")
	ErrGameFull           = errors.New("game is full")
	ErrAlreadySeated      = errors.New("already seated in this game")
	ErrNotSeated          = errors.New("not a player in this game")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrIllegalMove        = errors.New("illegal move")
	ErrNoDrawOffer        = errors.New("no draw offer outstanding")
	ErrOwnDrawOffer       = errors.New("cannot accept your own draw offer")
	ErrNoMovesToUndo      = errors.New("no moves to undo")
	ErrTakebackNotAllowed = errors.New("takeback only undoes your own last move")
	ErrNoTakebackRequest  = errors.New("no takeback request outstanding")
	ErrOwnTakeback        = errors.New("cannot respond to your own takeback request")
	ErrStoreUnavailable   = errors.New("could not persist game state")
)

// Publisher is the broadcast half of the bus the coordinator fans events
// out on. Publishing failures never roll back a committed transition.
type Publisher interface {
	Publish(ctx context.Context, gameID string, frame []byte) error
}

// takebackRequest pins the exact move the requester wants undone. Any
// intervening move supersedes the snapshot and clears the request.
type takebackRequest struct {
	Seat       string
	MoveNumber int
	UCI        string
}

// Session is the coordinator for one game id. All transitions run under mu,
// one at a time; locks are scoped to the game, never shared across games.
type Session struct {
	id    string
	store record.Store
	bus   Publisher

	mu   sync.Mutex
	game *record.Game

	// negotiation state, cleared per the rules in the transition methods
	drawOfferFrom string
	takeback      *takebackRequest
}

func newSession(ctx context.Context, id string, store record.Store, bus Publisher) (*Session, error) {
	g, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	return &Session{id: id, store: store, bus: bus, game: g}, nil
}

// ID returns the game id this session coordinates.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current client-visible state.
func (s *Session) Snapshot() *gamedto.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.game)
}

// Join seats an identity. White is assigned first; when both seats fill the
// game moves to in_progress.
func (s *Session) Join(ctx context.Context, userID, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusWaiting {
		return ErrGameNotWaiting
	}
	if g.Seat(userID) != "" {
		return ErrAlreadySeated
	}

	next := g.Clone()
	player := &record.Player{ID: strings.TrimSpace(userID), Name: strings.TrimSpace(userName)}
	switch {
	case next.White == nil:
		next.White = player
	case next.Black == nil:
		next.Black = player
	default:
		return ErrGameFull
	}
	if next.White != nil && next.Black != nil {
		next.Status = record.StatusInProgress
	}
	next.UpdatedAt = time.Now()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	obslog.L().Info("session_join",
		zap.String("game_id", s.id),
		zap.String("user_id", userID),
		zap.String("status", string(next.Status)),
	)
	s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindPlayerJoined, Data: snapshotOf(next)})
	return nil
}

// MakeMove validates and applies a move for the sender. The store write
// happens before the broadcast so observers only ever see durable state.
func (s *Session) MakeMove(ctx context.Context, userID, moveStr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}
	// Side to move is always derived from the position string, never
	// tracked separately.
	turn, err := arbiter.Turn(g.FEN)
	if err != nil {
		return fmt.Errorf("derive turn: %w", err)
	}
	if seat != turn {
		return ErrNotYourTurn
	}

	res, err := arbiter.Apply(g.FEN, moveStr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, strings.TrimSpace(moveStr))
	}

	now := time.Now()
	next := g.Clone()
	next.Moves = append(next.Moves, record.Move{
		Number:    len(next.Moves) + 1,
		Side:      seat,
		UCI:       res.UCI,
		SAN:       res.SAN,
		FENBefore: g.FEN,
		FENAfter:  res.FEN,
		At:        now,
	})
	next.FEN = res.FEN
	next.UpdatedAt = now

	switch {
	case res.IsCheckmate:
		next.Status = record.StatusCompleted
		next.Reason = record.ReasonCheckmate
		next.Winner = seat
	case res.IsStalemate:
		next.Status = record.StatusCompleted
		next.Reason = record.ReasonStalemate
		next.Winner = "draw"
	case res.DrawMethod != "":
		next.Status = record.StatusCompleted
		next.Reason = record.ReasonDraw
		next.Winner = "draw"
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	// A committed move clears the mover's own draw offer and any pending
	// takeback request, whose pinned move is no longer the last one.
	if s.drawOfferFrom == seat {
		s.drawOfferFrom = ""
	}
	s.takeback = nil

	obslog.L().Info("session_move",
		zap.String("game_id", s.id),
		zap.String("user_id", userID),
		zap.String("san", res.SAN),
		zap.String("turn", res.Turn),
		zap.String("status", string(next.Status)),
	)
	snap := snapshotOf(next)
	s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindMoveMade, Move: res.SAN, Data: snap})
	if next.Status == record.StatusCompleted {
		s.publish(ctx, &gamedto.ServerMessage{
			Type:   gamedto.KindGameEnded,
			Winner: next.Winner,
			Reason: string(next.Reason),
			Data:   snap,
		})
	}
	return nil
}

// Resign ends the game in favor of the opponent.
func (s *Session) Resign(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}

	next := g.Clone()
	next.Status = record.StatusCompleted
	next.Reason = record.ReasonResignation
	next.Winner = otherSeat(seat)
	next.UpdatedAt = time.Now()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.drawOfferFrom = ""
	s.takeback = nil

	obslog.L().Info("session_resign",
		zap.String("game_id", s.id),
		zap.String("user_id", userID),
		zap.String("winner", next.Winner),
	)
	s.publish(ctx, &gamedto.ServerMessage{
		Type:   gamedto.KindGameEnded,
		Winner: next.Winner,
		Reason: string(next.Reason),
		Data:   snapshotOf(next),
	})
	return nil
}

// OfferDraw records a draw offer from the sender, replacing any prior offer
// by the same side. The offer lives only in session memory.
func (s *Session) OfferDraw(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}

	s.drawOfferFrom = seat
	obslog.L().Info("session_draw_offer", zap.String("game_id", s.id), zap.String("user_id", userID))
	// Username is attached so the offering client can tell its own echo apart.
	s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindDrawOffered, Username: g.PlayerName(seat)})
	return nil
}

// AcceptDraw completes the game when the outstanding offer came from the
// other seated player. A self-offer cannot be self-accepted.
func (s *Session) AcceptDraw(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}
	if s.drawOfferFrom == "" {
		return ErrNoDrawOffer
	}
	if s.drawOfferFrom == seat {
		return ErrOwnDrawOffer
	}

	next := g.Clone()
	next.Status = record.StatusCompleted
	next.Reason = record.ReasonDrawAgreed
	next.Winner = "draw"
	next.UpdatedAt = time.Now()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.drawOfferFrom = ""
	s.takeback = nil

	obslog.L().Info("session_draw_accept", zap.String("game_id", s.id), zap.String("user_id", userID))
	s.publish(ctx, &gamedto.ServerMessage{
		Type:   gamedto.KindGameEnded,
		Winner: "draw",
		Reason: string(record.ReasonDrawAgreed),
		Data:   snapshotOf(next),
	})
	return nil
}

// DeclineDraw clears an outstanding offer from the other player. The decline
// is silent towards the offerer, matching the platform's UI behavior.
func (s *Session) DeclineDraw(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game.Seat(userID) == "" {
		return ErrNotSeated
	}
	if s.drawOfferFrom == "" {
		return ErrNoDrawOffer
	}
	s.drawOfferFrom = ""
	obslog.L().Info("session_draw_decline", zap.String("game_id", s.id), zap.String("user_id", userID))
	return nil
}

// RequestTakeback records a request to undo the sender's own last move. The
// last move on record must belong to the requester; move-number parity is
// never consulted.
func (s *Session) RequestTakeback(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}
	if len(g.Moves) == 0 {
		return ErrNoMovesToUndo
	}
	last := g.Moves[len(g.Moves)-1]
	if last.Side != seat {
		return ErrTakebackNotAllowed
	}

	s.takeback = &takebackRequest{Seat: seat, MoveNumber: last.Number, UCI: last.UCI}
	obslog.L().Info("session_takeback_request",
		zap.String("game_id", s.id),
		zap.String("user_id", userID),
		zap.Int("move_number", last.Number),
	)
	s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindTakebackRequested, Username: g.PlayerName(seat)})
	return nil
}

// RespondTakeback accepts or declines the outstanding request. Acceptance
// removes exactly the pinned move and restores the position that existed
// before it was played.
func (s *Session) RespondTakeback(ctx context.Context, userID string, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	seat := g.Seat(userID)
	if seat == "" {
		return ErrNotSeated
	}
	tb := s.takeback
	if tb == nil {
		return ErrNoTakebackRequest
	}
	if tb.Seat == seat {
		return ErrOwnTakeback
	}

	if !accepted {
		s.takeback = nil
		obslog.L().Info("session_takeback_decline", zap.String("game_id", s.id), zap.String("user_id", userID))
		s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindTakebackDeclined})
		return nil
	}

	if g.Status != record.StatusInProgress {
		return ErrGameNotInProgress
	}
	last := g.Moves[len(g.Moves)-1]
	if last.Number != tb.MoveNumber || last.UCI != tb.UCI {
		// Pinned move superseded; the request is stale.
		s.takeback = nil
		return ErrNoTakebackRequest
	}

	next := g.Clone()
	next.Moves = next.Moves[:len(next.Moves)-1]
	next.FEN = last.FENBefore
	next.UpdatedAt = time.Now()

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.takeback = nil

	obslog.L().Info("session_takeback_accept",
		zap.String("game_id", s.id),
		zap.String("user_id", userID),
		zap.Int("move_number", last.Number),
	)
	s.publish(ctx, &gamedto.ServerMessage{Type: gamedto.KindTakebackAccepted, Data: snapshotOf(next)})
	return nil
}

// persist writes the candidate record; only on success does it become the
// session's state. On failure the in-memory record still matches the last
// durable snapshot and the caller reports the error to the sender alone.
func (s *Session) persist(ctx context.Context, next *record.Game) error {
	if err := s.store.Save(ctx, next); err != nil {
		obslog.L().Error("session_persist_error", zap.String("game_id", s.id), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.game = next
	return nil
}

// publish fans an event out on the shared bus. Fire-and-forget: a publish
// failure is logged but does not fail the transition, which is already
// durable.
func (s *Session) publish(ctx context.Context, msg *gamedto.ServerMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		obslog.L().Error("session_marshal_error", zap.String("game_id", s.id), zap.Error(err))
		return
	}
	_ = s.bus.Publish(ctx, s.id, frame)
}

func otherSeat(seat string) string {
	if seat == "white" {
		return "black"
	}
	return "white"
}

// snapshotOf builds the wire snapshot from a record. Turn is derived from the
// FEN; check and mate flags come from the last move's SAN marker and the
// completion reason.
func snapshotOf(g *record.Game) *gamedto.Snapshot {
	snap := &gamedto.Snapshot{
		FEN:         g.FEN,
		Status:      string(g.Status),
		WhitePlayer: g.PlayerName("white"),
		BlackPlayer: g.PlayerName("black"),
		MoveHistory: make([]gamedto.HistoryEntry, 0, len(g.Moves)),
		MovesPGN:    g.PGN(),
		Winner:      g.Winner,
		IsCheckmate: g.Reason == record.ReasonCheckmate,
		IsStalemate: g.Reason == record.ReasonStalemate,
	}
	if turn, err := arbiter.Turn(g.FEN); err == nil {
		snap.CurrentTurn = turn
	}
	for _, mv := range g.Moves {
		snap.MoveHistory = append(snap.MoveHistory, gamedto.HistoryEntry{MoveNumber: mv.Number, MoveSAN: mv.SAN})
	}
	if n := len(g.Moves); n > 0 {
		san := g.Moves[n-1].SAN
		snap.IsCheck = strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#")
	}
	return snap
}
