package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/dto"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
)

type slotView struct {
	Index int    `json:"slotIndex"`
	State string `json:"state"`
}

type snapshot struct {
	Slots       []slotView `json:"slots"`
	JackpotPool int64      `json:"jackpotPool"`
}

func newCache(t *testing.T) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSlotCache(client, 30*time.Second), mr
}

func TestSnapshotRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	snap := snapshot{
		Slots:       []slotView{{Index: 0, State: "betting"}, {Index: 1, State: "idle"}},
		JackpotPool: 1_200,
	}
	require.NoError(t, c.SetSnapshot(ctx, snap, map[int]any{0: snap.Slots[0], 1: snap.Slots[1]}))

	var got snapshot
	ok, err := c.GetSnapshot(ctx, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	var s slotView
	ok, err = c.GetSlot(ctx, 0, &s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "betting", s.State)
}

func TestSnapshotExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetSnapshot(ctx, snapshot{}, nil))

	mr.FastForward(31 * time.Second)

	var got snapshot
	ok, err := c.GetSnapshot(ctx, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.GetSlot(ctx, 5, &slotView{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSnapshot_WritesAPIShape(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	snap := orchestrator.Snapshot{
		Slots: []orchestrator.SlotView{
			{Slot: queue.Slot{ID: "r1", Index: 0, State: queue.StateBetting, Fighters: []string{"a", "b", "c"}},
				Pool: &orchestrator.PoolView{NetPool: 1_500_000_000}},
			{Slot: queue.Slot{Index: 1, State: queue.StateIdle}},
		},
		Queue:       []queue.Entry{{FighterID: "d"}},
		JackpotPool: 250_000_000,
	}
	require.NoError(t, c.StoreSnapshot(ctx, snap))

	var all dto.SlotsResponse
	ok, err := c.GetSnapshot(ctx, &all)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, all.QueueLength)
	assert.Equal(t, "0.25", all.JackpotIchor)
	require.Len(t, all.Slots, 2)

	var s dto.SlotResponse
	ok, err = c.GetSlot(ctx, 0, &s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", s.ID)
	assert.Equal(t, "1.5", s.NetPoolSOL)
}
