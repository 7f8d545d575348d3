package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, 3, func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMsg) ServerMsg {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var reply ServerMsg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	var env events.Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func envelope(t *testing.T, slot int, typ string) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(typ, slot, "r1", time.Now().UTC(), map[string]int{"slotIndex": slot})
	require.NoError(t, err)
	return env
}

func TestBroadcast_RoutesBySlot(t *testing.T) {
	hub, url := startHub(t)

	slot1 := dial(t, url)
	assert.Equal(t, ServerMsg{Type: "subscribed", Slot: "1"}, send(t, slot1, ClientMsg{Type: "subscribe", Slot: "1"}))

	all := dial(t, url)
	assert.Equal(t, "subscribed", send(t, all, ClientMsg{Type: "subscribe", Slot: AllSlots}).Type)
	// assinar o slot e "all" não duplica a entrega
	assert.Equal(t, "subscribed", send(t, all, ClientMsg{Type: "subscribe", Slot: "1"}).Type)

	var delivered []int
	hub.OnBroadcast = func(_ string, n int) { delivered = append(delivered, n) }

	hub.Broadcast(envelope(t, 0, events.TypeTurnResolved))
	hub.Broadcast(envelope(t, 1, events.TypeBettingOpen))

	env := readEnvelope(t, all)
	assert.Equal(t, 0, env.SlotIndex)
	env = readEnvelope(t, all)
	assert.Equal(t, 1, env.SlotIndex)

	env = readEnvelope(t, slot1)
	assert.Equal(t, events.TypeBettingOpen, env.Type)

	assert.Equal(t, []int{1, 2}, delivered)
}

func TestHandleWS_Messages(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	assert.Equal(t, "pong", send(t, conn, ClientMsg{Type: "ping"}).Type)
	assert.Equal(t, "error", send(t, conn, ClientMsg{Type: "subscribe", Slot: "7"}).Type)
	assert.Equal(t, "error", send(t, conn, ClientMsg{Type: "subscribe", Slot: "x"}).Type)
	assert.Equal(t, "error", send(t, conn, ClientMsg{Type: "dance"}).Type)

	send(t, conn, ClientMsg{Type: "subscribe", Slot: "2"})
	assert.Equal(t, 1, hub.Subscribers("2"))
	send(t, conn, ClientMsg{Type: "unsubscribe", Slot: "2"})
	assert.Equal(t, 0, hub.Subscribers("2"))

	send(t, conn, ClientMsg{Type: "subscribe", Slot: "2"})
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("2") == 0 }, time.Second, 5*time.Millisecond)
}

func TestRedisSubscriber_ForwardsEnvelopes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub, url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, StartRedisSubscriber(ctx, rdb, "spectators", hub, nil))

	conn := dial(t, url)
	send(t, conn, ClientMsg{Type: "subscribe", Slot: "2"})

	// payload inválido é descartado sem derrubar o subscriber
	require.NoError(t, rdb.Publish(ctx, "spectators", "not json").Err())

	b, err := json.Marshal(envelope(t, 2, events.TypeRumbleComplete))
	require.NoError(t, err)
	require.NoError(t, rdb.Publish(ctx, "spectators", b).Err())

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TypeRumbleComplete, env.Type)
	assert.Equal(t, "r1", env.RoundID)
}
