// Package gateway owns the websocket edge: it upgrades connections, resolves
// who is connecting, relays inbound frames to the game session, and fans
// session events back out. Broadcast frames always come off the shared bus,
// so every process serving the same game delivers the same stream.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-live/internal/bus"
	"github.com/park285/chess-live/internal/identity"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/session"
	"github.com/park285/chess-live/pkg/gamedto"
)

// Subscriber is the receive half of the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, gameID string) (*bus.Subscription, error)
}

type Gateway struct {
	hub      *session.Hub
	sub      Subscriber
	resolver *identity.Resolver
	cat      *msgcat.Catalog
	origins  []string
}

func New(hub *session.Hub, sub Subscriber, resolver *identity.Resolver, cat *msgcat.Catalog, originPatterns []string) *Gateway {
	return &Gateway{hub: hub, sub: sub, resolver: resolver, cat: cat, origins: originPatterns}
}

// HandleWS serves one gameplay connection. The route must carry the game id
// as the {id} path value.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSpace(r.PathValue("id"))
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	ident, ok := g.resolver.Resolve(r.Context(), bearerToken(r),
		r.Header.Get("X-User-Id"), r.Header.Get("X-User-Name"))
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  g.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := g.hub.Acquire(ctx, gameID)
	if err != nil {
		g.sendError(ctx, conn, err, "")
		conn.Close(websocket.StatusPolicyViolation, "unknown game")
		return
	}
	defer g.hub.Release(gameID)

	sub, err := g.sub.Subscribe(ctx, gameID)
	if err != nil {
		obslog.L().Error("ws_subscribe_failed", zap.String("game_id", gameID), zap.Error(err))
		g.sendError(ctx, conn, err, "")
		return
	}
	defer sub.Close()

	obslog.L().Info("ws_connected",
		zap.String("game_id", gameID),
		zap.String("user_id", ident.ID),
		zap.Bool("guest", ident.Guest),
	)

	// New connections see the full current state before any deltas.
	g.send(ctx, conn, &gamedto.ServerMessage{Type: gamedto.KindGameState, Data: sess.Snapshot()})

	go g.pump(ctx, cancel, conn, sub)
	g.readLoop(ctx, conn, sess, ident)

	obslog.L().Info("ws_disconnected", zap.String("game_id", gameID), zap.String("user_id", ident.ID))
}

// pump forwards bus frames to this connection. A write failure means the
// peer is gone; it tears the connection down.
func (g *Gateway) pump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *bus.Subscription) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, ident identity.Identity) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msg, err := gamedto.ParseClientMessage(raw)
		if err != nil {
			g.send(ctx, conn, gamedto.ErrorMessage(
				g.cat.Text("protocol.invalid_frame", err.Error(), map[string]string{"Detail": err.Error()})))
			continue
		}
		g.dispatch(ctx, conn, sess, ident, msg)
	}
}

// dispatch routes one parsed frame. Successful transitions broadcast through
// the session; only failures are answered here, to the sender alone.
func (g *Gateway) dispatch(ctx context.Context, conn *websocket.Conn, sess *session.Session, ident identity.Identity, msg *gamedto.ClientMessage) {
	var err error
	switch msg.Type {
	case gamedto.KindJoinGame:
		err = sess.Join(ctx, ident.ID, ident.Name)
	case gamedto.KindMakeMove:
		err = sess.MakeMove(ctx, ident.ID, msg.Move)
	case gamedto.KindResign:
		err = sess.Resign(ctx, ident.ID)
	case gamedto.KindOfferDraw:
		err = sess.OfferDraw(ctx, ident.ID)
	case gamedto.KindAcceptDraw:
		err = sess.AcceptDraw(ctx, ident.ID)
	case gamedto.KindDeclineDraw:
		err = sess.DeclineDraw(ctx, ident.ID)
	case gamedto.KindRequestTakeback:
		err = sess.RequestTakeback(ctx, ident.ID)
	case gamedto.KindTakebackResponse:
		err = sess.RespondTakeback(ctx, ident.ID, msg.Accepted)
	case gamedto.KindRequestState:
		g.send(ctx, conn, &gamedto.ServerMessage{Type: gamedto.KindGameState, Data: sess.Snapshot()})
		return
	}
	if err != nil {
		g.sendError(ctx, conn, err, msg.Move)
	}
}

func (g *Gateway) send(ctx context.Context, conn *websocket.Conn, msg *gamedto.ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		obslog.L().Debug("ws_write_failed", zap.Error(err))
	}
}

func (g *Gateway) sendError(ctx context.Context, conn *websocket.Conn, err error, move string) {
	g.send(ctx, conn, gamedto.ErrorMessage(g.errorText(err, move)))
}

// errorText maps coordinator errors to catalog messages. Unknown errors get
// the generic text so internals never leak to clients.
func (g *Gateway) errorText(err error, move string) string {
	key := "server.internal"
	var data map[string]string
	switch {
	case errors.Is(err, session.ErrGameNotFound):
		key = "game.not_found"
	case errors.Is(err, session.ErrGameNotWaiting):
		key = "game.already_started"
	case errors.Is(err, session.ErrGameNotInProgress):
		key = "game.not_in_progress"
	case errors.Is(err, session.ErrGameFull):
		key = "game.full"
	case errors.Is(err, session.ErrAlreadySeated):
		key = "game.already_seated"
	case errors.Is(err, session.ErrNotSeated):
		key = "game.not_seated"
	case errors.Is(err, session.ErrNotYourTurn):
		key = "game.not_your_turn"
	case errors.Is(err, session.ErrIllegalMove):
		key = "game.illegal_move"
		data = map[string]string{"Move": strings.TrimSpace(move)}
	case errors.Is(err, session.ErrNoDrawOffer):
		key = "draw.none_outstanding"
	case errors.Is(err, session.ErrOwnDrawOffer):
		key = "draw.own_offer"
	case errors.Is(err, session.ErrNoMovesToUndo):
		key = "takeback.no_moves"
	case errors.Is(err, session.ErrTakebackNotAllowed):
		key = "takeback.not_allowed"
	case errors.Is(err, session.ErrNoTakebackRequest):
		key = "takeback.none_outstanding"
	case errors.Is(err, session.ErrOwnTakeback):
		key = "takeback.own_request"
	case errors.Is(err, session.ErrStoreUnavailable):
		key = "server.store_unavailable"
	}
	return g.cat.Text(key, err.Error(), data)
}

func bearerToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie("session_token"); err == nil {
		return c.Value
	}
	return ""
}
