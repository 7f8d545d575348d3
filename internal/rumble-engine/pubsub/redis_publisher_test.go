package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/topics"
)

func TestSend_PublishesEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, topics.SpectatorBroadcast)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewRedisBroadcaster(client, "")
	l := orchestrator.SinkListener{Sink: b}
	require.NoError(t, l.OnIchorShower(ctx, events.IchorShower{
		SlotIndex: 1, RoundID: "r7", WinnerID: "bob", Amount: 900, Burned: 100, Ts: time.Now(),
	}))

	select {
	case msg := <-sub.Channel():
		var env events.Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, events.TypeIchorShower, env.Type)
		assert.Equal(t, "r7", env.RoundID)
		var ev events.IchorShower
		require.NoError(t, env.Decode(&ev))
		assert.Equal(t, int64(900), ev.Amount)
		assert.Equal(t, int64(100), ev.Burned)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on spectator channel")
	}
}
