package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type busMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Bus fans state payloads out across relay instances over Redis pub/sub.
// Each instance tags its messages with a random origin so it can skip its own.
type Bus struct {
	rdb    *redis.Client
	origin string
}

// NewBus connects to Redis and verifies connectivity.
func NewBus(ctx context.Context, addr string, db int) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, origin: uuid.New().String()}, nil
}

// Publish sends a state payload to the channel for a room code.
func (b *Bus) Publish(ctx context.Context, room string, payload []byte) error {
	raw, _ := json.Marshal(busMessage{Origin: b.origin, Room: room, Payload: payload})
	return b.rdb.Publish(ctx, channel(room), raw).Err()
}

// Subscribe listens on all room channels and invokes fn for every payload
// published by another instance.
func (b *Bus) Subscribe(ctx context.Context, fn func(room string, payload []byte)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm busMessage
			_ = json.Unmarshal([]byte(msg.Payload), &bm)
			if bm.Room != "" && bm.Origin != b.origin {
				fn(bm.Room, bm.Payload)
			}
		}
	}
}

// Close shuts down the Redis connection.
func (b *Bus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(room string) string { return "room:" + room }
