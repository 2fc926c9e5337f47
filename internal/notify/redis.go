package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tahcohcat/ascended-progress/internal/logger"
)

const DefaultRedisChannel = "ascended.badges"

var errNoRedis = errors.New("redis publisher not initialized")

// envelope is the wire format on the channel. Origin identifies the
// publishing instance so it can skip its own notifications when forwarding.
type envelope struct {
	Origin       string       `json:"origin"`
	Notification Notification `json:"notification"`
}

// RedisPublisher shares notifications between server instances over a Redis
// pub/sub channel. Each instance delivers its own notifications locally and
// forwards only those published by its peers.
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
	origin  string
	log     *logger.Log
}

// NewRedisPublisher connects to addr and checks the server answers.
func NewRedisPublisher(addr, channel string) (*RedisPublisher, error) {
	if addr = strings.TrimSpace(addr); addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return newRedisPublisher(rdb, channel), nil
}

func newRedisPublisher(rdb *goredis.Client, channel string) *RedisPublisher {
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = DefaultRedisChannel
	}
	origin := uuid.NewString()
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		origin:  origin,
		log:     logger.New().With("service", "RedisPublisher", "origin", origin),
	}
}

// Origin is the identifier this instance stamps on published notifications.
func (p *RedisPublisher) Origin() string { return p.origin }

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if p == nil || p.rdb == nil {
		return errNoRedis
	}
	raw, err := json.Marshal(envelope{Origin: p.origin, Notification: n})
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Forward subscribes to the channel and passes notifications from other
// instances to deliver until ctx is done. It returns once the subscription
// is confirmed.
func (p *RedisPublisher) Forward(ctx context.Context, deliver func(Notification)) error {
	if p == nil || p.rdb == nil {
		return errNoRedis
	}
	if deliver == nil {
		return fmt.Errorf("deliver callback required")
	}

	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", p.channel, err)
	}

	go p.forward(ctx, sub, deliver)
	return nil
}

func (p *RedisPublisher) forward(ctx context.Context, sub *goredis.PubSub, deliver func(Notification)) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			n, fromPeer, err := p.decode(m.Payload)
			if err != nil {
				p.log.WithError(err).Warn("dropping malformed notification")
				continue
			}
			if fromPeer {
				deliver(n)
			}
		}
	}
}

// decode parses a channel payload and reports whether a peer sent it.
func (p *RedisPublisher) decode(payload string) (Notification, bool, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Notification{}, false, err
	}
	if env.Origin == "" {
		return Notification{}, false, fmt.Errorf("notification without origin")
	}
	return env.Notification, env.Origin != p.origin, nil
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
