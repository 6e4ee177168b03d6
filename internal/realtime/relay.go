package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayQueueSize = 1024

// relayMessage is the envelope exchanged between instances
type relayMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	Users   []string        `json:"users,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay mirrors hub events to the other instances sharing a Redis channel
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	queue   chan []byte
	logger  *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Compile-time check to ensure RedisRelay implements Publisher
var _ Publisher = (*RedisRelay)(nil)

// NewRedisRelay creates a relay for hub on channel
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		queue:   make(chan []byte, relayQueueSize),
		logger:  logger.With(zap.String("channel", channel)),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the channel and starts the publisher loop
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so early events are not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	r.wg.Add(2)
	go r.publishLoop()
	go r.receiveLoop(pubsub)
	return nil
}

// Publish queues a locally delivered event for the other instances
func (r *RedisRelay) Publish(room string, users []string, payload []byte) {
	msg, err := json.Marshal(relayMessage{Origin: r.origin, Room: room, Users: users, Payload: payload})
	if err != nil {
		r.logger.Error("failed to encode relay message", zap.Error(err))
		return
	}
	select {
	case <-r.done:
	case r.queue <- msg:
	default:
		r.logger.Warn("relay queue full, dropping event", zap.String("room", room))
	}
}

// Close stops both loops
func (r *RedisRelay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// publishLoop keeps relay order equal to local delivery order
func (r *RedisRelay) publishLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.queue:
			if err := r.client.Publish(context.Background(), r.channel, msg).Err(); err != nil {
				r.logger.Warn("failed to publish relay message", zap.Error(err))
			}
		}
	}
}

func (r *RedisRelay) receiveLoop(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle([]byte(msg.Payload))
		}
	}
}

// handle delivers a message received from another instance to local clients
func (r *RedisRelay) handle(raw []byte) {
	var msg relayMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.Warn("dropping malformed relay message", zap.Error(err))
		return
	}
	if msg.Origin == r.origin || len(msg.Payload) == 0 {
		return
	}
	if msg.Room != "" {
		r.hub.DeliverToRoom(msg.Room, msg.Payload, nil)
	}
	if len(msg.Users) > 0 {
		r.hub.DeliverToUsers(msg.Users, msg.Payload)
	}
}
