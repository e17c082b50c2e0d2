package gamedto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		kind    string
	}{
		{name: "move", raw: `{"type":"make_move","move":"e2e4"}`, kind: KindMakeMove},
		{name: "move missing payload", raw: `{"type":"make_move"}`, wantErr: true},
		{name: "join", raw: `{"type":"join_game"}`, kind: KindJoinGame},
		{name: "takeback response", raw: `{"type":"takeback_response","accepted":true}`, kind: KindTakebackResponse},
		{name: "decline draw", raw: `{"type":"decline_draw"}`, kind: KindDeclineDraw},
		{name: "unknown kind", raw: `{"type":"launch_missiles"}`, wantErr: true},
		{name: "not json", raw: `{{`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if msg.Type != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, msg.Type)
			}
		})
	}
}

func TestParseClientMessageUnknownKindSentinel(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"poke"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestServerMessageOmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(ErrorMessage("bad frame"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"error","message":"bad frame"}`
	if string(raw) != want {
		t.Fatalf("unexpected encoding:\n want %s\n got  %s", want, raw)
	}
}
