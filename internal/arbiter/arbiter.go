// Package arbiter wraps the chess rules engine. It is the only package that
// talks to the move-generation library; everything above it deals in FEN
// strings and SAN/UCI move text.
package arbiter

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidFEN  = errors.New("invalid fen")
)

// Result is the outcome of applying one move to a position.
type Result struct {
	FEN  string // position after the move
	UCI  string // applied move in coordinate notation
	SAN  string // applied move in algebraic notation
	Turn string // side to move after the move, "white" or "black"

	IsCheck     bool
	IsCheckmate bool
	IsStalemate bool

	// DrawMethod is set when the move ends the game by a rules-level draw
	// other than stalemate (insufficient material, seventy-five moves,
	// fivefold repetition), lowercase library method name.
	DrawMethod string
}

// GameOver reports whether the move ended the game by rule.
func (r Result) GameOver() bool {
	return r.IsCheckmate || r.IsStalemate || r.DrawMethod != ""
}

// Apply validates a candidate move against the position and returns the
// resulting position. The move is tried as UCI first, then as SAN, matching
// what the two client input paths produce. A promotion move without an
// explicit piece promotes to a queen. Apply is pure; it never mutates shared
// state and is safe to call without holding any lock.
func Apply(fen, moveStr string) (Result, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return Result{}, err
	}

	raw := strings.TrimSpace(moveStr)
	if raw == "" {
		return Result{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	pos := game.Position()

	var (
		applied *nchess.Move
		san     string
	)
	if mv, derr := decodeUCI(pos, raw); derr == nil {
		san = nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		applied = mv
	} else {
		if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		applied = lastMove(game)
		if applied == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		san = nchess.AlgebraicNotation{}.Encode(pos, applied)
	}

	res := Result{
		FEN:  game.FEN(),
		UCI:  applied.String(),
		SAN:  san,
		Turn: colorName(game.Position().Turn()),
		// SAN carries the check/mate marker for the applied move.
		IsCheck: strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#"),
	}
	if game.Outcome() != nchess.NoOutcome {
		switch game.Method() {
		case nchess.Checkmate:
			res.IsCheckmate = true
		case nchess.Stalemate:
			res.IsStalemate = true
		default:
			res.DrawMethod = strings.ToLower(game.Method().String())
		}
	}
	return res, nil
}

// decodeUCI decodes coordinate notation, defaulting a bare promotion move
// (e.g. "e7e8") to queen promotion.
func decodeUCI(pos *nchess.Position, raw string) (*nchess.Move, error) {
	uci := strings.ToLower(raw)
	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, uci)
	if err == nil {
		return mv, nil
	}
	if len(uci) == 4 {
		if mv, qerr := notation.Decode(pos, uci+"q"); qerr == nil {
			return mv, nil
		}
	}
	return nil, err
}

// Turn returns the side to move encoded in the FEN string.
func Turn(fen string) (string, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}
	return colorName(game.Position().Turn()), nil
}

// ValidateFEN reports whether the string parses as a legal position encoding.
func ValidateFEN(fen string) error {
	_, err := gameFromFEN(fen)
	return err
}

// Replay applies a UCI move list to a starting position and returns the final
// FEN. Used to verify that a stored move list reproduces the stored position.
func Replay(startFEN string, ucis []string) (string, error) {
	game, err := gameFromFEN(startFEN)
	if err != nil {
		return "", err
	}
	for _, mv := range ucis {
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return "", fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return game.FEN(), nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" || fen == StartFEN {
		return nchess.NewGame(), nil
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(option), nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorName(c nchess.Color) string {
	if c == nchess.White {
		return "white"
	}
	return "black"
}
