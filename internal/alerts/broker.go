// Package alerts fans drowsy-alert events out to connected SSE dashboards.
// Events travel through redis pub/sub so every server instance sees alerts
// raised on any other instance.
package alerts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/driveguard/drowsy-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// stream is the per-user fan-out state. Its cancel tears down the redis
// subscription when the last client leaves, so a later resubscribe starts
// exactly one fresh consumer instead of stacking a second goroutine on the
// same channel.
type stream struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

type Broker struct {
	redis   *redisclient.Client
	streams map[string]*stream // userID -> fan-out state
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	listen  func(ctx context.Context, userID string)
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		redis:   redisClient,
		streams: make(map[string]*stream),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.listen = b.subscribeToRedis
	return b
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	st, ok := b.streams[userID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		st = &stream{clients: make(map[*Client]bool), cancel: cancel}
		b.streams[userID] = st
		go b.listen(ctx, userID)
	}
	st.clients[client] = true
	clientCount := len(st.clients)
	b.mu.Unlock()

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("alert stream client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[client.UserID]
	if !ok {
		return
	}

	delete(st.clients, client)
	close(client.Done)

	if len(st.clients) == 0 {
		st.cancel()
		delete(b.streams, client.UserID)
	}

	log.Info().
		Str("userId", client.UserID).
		Int("clientCount", len(st.clients)).
		Msg("alert stream client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.AlertChannel(userID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID string) {
	channel := redisclient.AlertChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal alert event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	st := b.streams[userID]
	var clients []*Client
	if st != nil {
		clients = make([]*Client, 0, len(st.clients))
		for client := range st.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping alert")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, st := range b.streams {
		for client := range st.clients {
			close(client.Done)
		}
	}
	b.streams = make(map[string]*stream)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if st, ok := b.streams[userID]; ok {
		return len(st.clients)
	}
	return 0
}
