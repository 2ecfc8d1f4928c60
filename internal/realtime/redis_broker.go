package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gochat/internal/chat/models"
	"gochat/internal/common"
	"gochat/internal/metrics"
)

const (
	channelPrefix  = "chat:conversation:"
	channelPattern = channelPrefix + "*"
)

// RedisBroker spreads messages across service instances. Publish goes to
// Redis only; every instance, this one included, receives it back through
// its pattern subscription and hands it to the local hub.
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

var _ Notifier = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, hub *Hub, m *metrics.Metrics, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		hub:     hub,
		metrics: m,
		log:     log.With().Str("component", "redis_broker").Logger(),
	}
}

func channelFor(conversationID string) string {
	return channelPrefix + conversationID
}

// Start subscribes to every conversation channel and feeds the local hub
// until Close is called.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("redis broker already started")
	}

	ps := b.client.PSubscribe(ctx, channelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis: psubscribe %s: %w", channelPattern, err)
	}

	b.pubsub = ps
	b.done = make(chan struct{})
	go b.receiveLoop(ps.Channel(), b.done)

	b.log.Info().Str("pattern", channelPattern).Msg("redis fan-out started")
	return nil
}

func (b *RedisBroker) receiveLoop(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for m := range ch {
		var event common.MessageEvent
		if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
			b.log.Warn().Err(err).Str("channel", m.Channel).Msg("dropping malformed realtime payload")
			continue
		}
		if event.ConversationID == "" {
			event.ConversationID = strings.TrimPrefix(m.Channel, channelPrefix)
		}
		b.hub.NotifyAsync(event)
	}
}

// Publish sends msg to Redis. If Redis is unreachable the message is still
// delivered to this instance's subscribers and the error is returned.
func (b *RedisBroker) Publish(ctx context.Context, msg *models.Message) error {
	event := common.NewInsertEvent(msg)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}

	if err := b.client.Publish(ctx, channelFor(msg.ConversationID), payload).Err(); err != nil {
		b.hub.NotifyAsync(event)
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(conversationID string, onInsert func(*models.Message)) *Subscription {
	return b.hub.Subscribe(conversationID, onInsert)
}

// Close stops the subscription loop. The Redis client itself is owned by
// the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// NewRedisClient connects and pings the configured Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}
