// Package identity resolves who is on the other end of a connection. A
// session token is introspected against the accounts service; absent a
// usable token the caller may fall back to trusted headers or a guest.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/obslog"
)

// Identity is a resolved user. Guests get a random id per connection and
// never collide with account ids.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Guest bool   `json:"guest,omitempty"`
}

// NewGuest mints a throwaway identity.
func NewGuest() Identity {
	id := uuid.NewString()
	return Identity{ID: "guest:" + id, Name: "guest-" + id[:8], Guest: true}
}

// Resolver turns connection credentials into an Identity.
type Resolver struct {
	client      *Client
	allowGuests bool
}

// NewResolver builds a resolver. client may be nil when no accounts service
// is configured; resolution then relies on headers and guests only.
func NewResolver(client *Client, allowGuests bool) *Resolver {
	return &Resolver{client: client, allowGuests: allowGuests}
}

// Resolve tries, in order: token introspection, the trusted header pair, a
// guest identity. ok is false when none applies.
func (r *Resolver) Resolve(ctx context.Context, token, headerID, headerName string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token != "" && r.client != nil {
		ident, err := r.client.Introspect(ctx, token)
		if err == nil {
			return ident, true
		}
		obslog.L().Warn("identity_introspect_failed", zap.Error(err))
	}
	if headerID = strings.TrimSpace(headerID); headerID != "" {
		name := strings.TrimSpace(headerName)
		if name == "" {
			name = headerID
		}
		return Identity{ID: headerID, Name: name}, true
	}
	if r.allowGuests {
		return NewGuest(), true
	}
	return Identity{}, false
}
