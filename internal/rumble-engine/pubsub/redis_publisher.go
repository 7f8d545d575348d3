package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/topics"
)

// RedisBroadcaster repassa os eventos ao canal lido pelo spectator-service.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisBroadcaster usa topics.SpectatorBroadcast quando channel é vazio.
func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = topics.SpectatorBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel, timeout: 500 * time.Millisecond}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Send publica o envelope inteiro; o hub filtra por slot do lado do cliente.
func (b *RedisBroadcaster) Send(ctx context.Context, env events.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Publish(ctx, b.channel, payload)
}
