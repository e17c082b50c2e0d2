// Package bus is the shared broadcast bus for game events. Fan-out is a Redis
// PUBLISH keyed by game id so that two players served by different gateway
// processes still see each other's events; delivery to local sockets is the
// gateway's job.
package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/obslog"
)

// Bus publishes and subscribes game event frames.
type Bus struct {
	rdb *redis.Client
}

// New connects to Redis and verifies it with a ping.
func New(redisURL string) (*Bus, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for broadcast bus")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb}, nil
}

func (b *Bus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func (b *Bus) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

// Publish sends one event frame to every subscriber of the game's channel.
// Publishing is fire-and-forget from the coordinator's point of view; a
// failure is logged and reported but must not roll back a committed state.
func (b *Bus) Publish(ctx context.Context, gameID string, frame []byte) error {
	if err := b.rdb.Publish(ctx, channelFor(gameID), frame).Err(); err != nil {
		obslog.L().Error("bus_publish_error", zap.String("game_id", gameID), zap.Error(err))
		return err
	}
	return nil
}

// Subscription delivers the frames published for one game id.
type Subscription struct {
	ps     *redis.PubSub
	frames chan []byte
	cancel context.CancelFunc
}

// Subscribe opens a subscription for a game id. The returned subscription's
// Frames channel closes when the subscription is closed or the context ends.
func (b *Bus) Subscribe(ctx context.Context, gameID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channelFor(gameID))
	// Force the SUBSCRIBE round-trip so a broken connection surfaces here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", gameID, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ps:     ps,
		frames: make(chan []byte, 16),
		cancel: cancel,
	}
	go sub.pump(subCtx)
	return sub, nil
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.frames)
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.frames <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Frames returns the subscription's delivery channel.
func (s *Subscription) Frames() <-chan []byte { return s.frames }

func (s *Subscription) Close() error {
	s.cancel()
	return s.ps.Close()
}

func channelFor(gameID string) string { return "live:game:" + strings.TrimSpace(gameID) }
