package gamedto

// HistoryEntry is one move in the snapshot's move history.
type HistoryEntry struct {
	MoveNumber int    `json:"move_number"`
	MoveSAN    string `json:"move_san"`
}

// Snapshot is the full client-visible game state. Any freshly attached
// connection can resynchronize from it; there is no separate resume handshake.
type Snapshot struct {
	FEN         string         `json:"fen"`
	Status      string         `json:"status"`
	CurrentTurn string         `json:"current_turn"`
	WhitePlayer string         `json:"white_player,omitempty"`
	BlackPlayer string         `json:"black_player,omitempty"`
	MoveHistory []HistoryEntry `json:"move_history"`
	MovesPGN    string         `json:"moves_pgn,omitempty"`
	Winner      string         `json:"winner,omitempty"`
	IsCheck     bool           `json:"is_check"`
	IsCheckmate bool           `json:"is_checkmate"`
	IsStalemate bool           `json:"is_stalemate"`
}
