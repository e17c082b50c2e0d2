package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := cat.Render("game.not_your_turn", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "It is not your turn." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestRenderWithData(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := cat.Render("game.illegal_move", map[string]string{"Move": "e2e5"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Illegal move: e2e5" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestRenderMissingDataFails(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := cat.Render("game.illegal_move", map[string]string{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "game:\n  not_your_turn: \"Wait for your opponent.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cat, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, _ := cat.Render("game.not_your_turn", nil); got != "Wait for your opponent." {
		t.Fatalf("override not applied, got %q", got)
	}
	// Untouched keys keep their embedded defaults.
	if got, _ := cat.Render("draw.own_offer", nil); got != "You cannot accept your own draw offer." {
		t.Fatalf("default lost after override, got %q", got)
	}
}

func TestTextFallback(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := cat.Text("no.such.key", "fallback", nil); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
