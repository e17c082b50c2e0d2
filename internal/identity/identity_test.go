package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAccounts(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithTimeout(2*time.Second), WithRetry(1))
}

func TestIntrospectActiveSession(t *testing.T) {
	client := newTestAccounts(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"user_id":"u-42","username":"Magnus"}`))
	})

	ident, err := client.Introspect(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if ident.ID != "u-42" || ident.Name != "Magnus" || ident.Guest {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestIntrospectRejectedToken(t *testing.T) {
	client := newTestAccounts(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := client.Introspect(context.Background(), "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIntrospectInactiveSession(t *testing.T) {
	client := newTestAccounts(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"active":false}`))
	})
	if _, err := client.Introspect(context.Background(), "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolverHeaderFallback(t *testing.T) {
	r := NewResolver(nil, false)
	ident, ok := r.Resolve(context.Background(), "", "u-7", "Hikaru")
	if !ok || ident.ID != "u-7" || ident.Name != "Hikaru" {
		t.Fatalf("unexpected resolution: %+v ok=%v", ident, ok)
	}
}

func TestResolverGuest(t *testing.T) {
	r := NewResolver(nil, true)
	ident, ok := r.Resolve(context.Background(), "", "", "")
	if !ok || !ident.Guest {
		t.Fatalf("expected guest identity, got %+v ok=%v", ident, ok)
	}
	if !strings.HasPrefix(ident.ID, "guest:") || ident.Name == "" {
		t.Fatalf("malformed guest identity: %+v", ident)
	}

	other, _ := r.Resolve(context.Background(), "", "", "")
	if other.ID == ident.ID {
		t.Fatalf("guest ids must be unique")
	}
}

func TestResolverGuestsDisabled(t *testing.T) {
	r := NewResolver(nil, false)
	if _, ok := r.Resolve(context.Background(), "", "", ""); ok {
		t.Fatalf("expected resolution failure with guests disabled")
	}
}
