// Package gamedto defines the JSON wire protocol between gameplay clients and
// the server. Every frame carries a "type" discriminator.
package gamedto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client → server message kinds.
const (
	KindJoinGame         = "join_game"
	KindMakeMove         = "make_move"
	KindResign           = "resign"
	KindOfferDraw        = "offer_draw"
	KindAcceptDraw       = "accept_draw"
	KindDeclineDraw      = "decline_draw"
	KindRequestTakeback  = "request_takeback"
	KindTakebackResponse = "takeback_response"
	KindRequestState     = "request_state"
)

// Server → client message kinds.
const (
	KindGameState         = "game_state"
	KindMoveMade          = "move_made"
	KindPlayerJoined      = "player_joined"
	KindGameEnded         = "game_ended"
	KindDrawOffered       = "draw_offered"
	KindTakebackRequested = "takeback_requested"
	KindTakebackAccepted  = "takeback_accepted"
	KindTakebackDeclined  = "takeback_declined"
	KindError             = "error"
)

var ErrUnknownKind = errors.New("unknown message type")

// ClientMessage is a parsed inbound frame.
type ClientMessage struct {
	Type     string `json:"type"`
	Move     string `json:"move,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`
}

// ParseClientMessage decodes and validates one inbound frame. A malformed or
// unrecognized frame is a protocol error; the connection stays open.
func ParseClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}
	msg.Type = strings.TrimSpace(msg.Type)
	switch msg.Type {
	case KindJoinGame, KindResign, KindOfferDraw, KindAcceptDraw,
		KindDeclineDraw, KindRequestTakeback, KindTakebackResponse, KindRequestState:
		return &msg, nil
	case KindMakeMove:
		if strings.TrimSpace(msg.Move) == "" {
			return nil, errors.New("no move provided")
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
}

// ServerMessage is an outbound frame. Fields are populated per kind; data is
// the state snapshot where the protocol attaches one.
type ServerMessage struct {
	Type     string    `json:"type"`
	Move     string    `json:"move,omitempty"`
	Data     *Snapshot `json:"data,omitempty"`
	Winner   string    `json:"winner,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Username string    `json:"username,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// ErrorMessage builds the error reply sent to the originating connection only.
func ErrorMessage(text string) *ServerMessage {
	return &ServerMessage{Type: KindError, Message: text}
}
