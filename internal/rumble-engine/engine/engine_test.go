package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/recovery"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

type countingTicker struct {
	mu sync.Mutex
	n  int
}

func (c *countingTicker) Tick(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingTicker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newOrchestrator(t *testing.T, st store.Store, clock *fakeClock, hooks orchestrator.Hooks) *orchestrator.Orchestrator {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.Queue.Slots = 2
	cfg.Queue.MinFighters = 3
	cfg.Queue.MaxFighters = 4
	cfg.WriteRetry = time.Millisecond
	o, err := orchestrator.New(cfg, orchestrator.Deps{Store: st, Clock: clock.Now, Hooks: hooks})
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func TestTick_RecoversBeforeFirstOrchestratorTick(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	st := store.NewMemory(clock.Now)

	require.NoError(t, st.SaveQueueEntry(ctx, queue.Entry{FighterID: "waiting", JoinedAt: clock.t.Add(-time.Minute)}))
	require.NoError(t, st.SaveJackpotPool(ctx, 777))
	require.NoError(t, st.CreateRound(ctx, store.RoundRecord{
		ID: "round-1", SlotIndex: 1, Status: store.RoundBetting,
		Fighters: []string{"a", "b", "c"}, CreatedAt: clock.t.Add(-20 * time.Second),
	}))
	for _, f := range []string{"a", "b"} {
		require.NoError(t, st.SaveBet(ctx, betting.Bet{ID: "bet-" + f, RoundID: "round-1", BettorID: "alice", FighterID: f, GrossAmount: 1_000}))
	}

	o := newOrchestrator(t, st, clock, orchestrator.Hooks{})
	rec := recovery.New(recovery.DefaultConfig(), nil, st, o, clock.Now)
	e := New(nil, o, rec)
	runs := 0
	e.OnRecovery = func(recovery.Result) { runs++ }

	e.Tick(ctx)
	e.Tick(ctx)

	assert.Equal(t, 1, runs)
	assert.True(t, rec.Done())

	snap := o.Snapshot()
	assert.Equal(t, int64(777), snap.JackpotPool)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "waiting", snap.Queue[0].FighterID)

	slot := snap.Slots[1]
	assert.Equal(t, queue.StateBetting, slot.State)
	assert.Equal(t, "round-1", slot.ID)
	require.NotNil(t, slot.Pool)
	assert.Equal(t, 2, slot.Pool.Bets)
	assert.Equal(t, int64(2_000), slot.Pool.TotalGross)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ticker := &countingTicker{}
	e := &Engine{Log: zap.NewNop(), Orch: ticker}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return ticker.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine loop did not stop")
	}
}

func TestTick_CallsAfterTick(t *testing.T) {
	ticker := &countingTicker{}
	seen := 0
	e := &Engine{Log: zap.NewNop(), Orch: ticker, AfterTick: func(context.Context) {
		seen = ticker.count()
	}}

	e.Tick(context.Background())
	assert.Equal(t, 1, seen)
}

// unsteadyStore falha a leitura da fila nas primeiras chamadas e pode segurar
// a primeira leitura de rodadas até release ser fechado.
type unsteadyStore struct {
	*store.Memory
	queueFailures atomic.Int32
	entered       chan struct{}
	release       chan struct{}
	once          sync.Once
}

func (s *unsteadyStore) LoadQueueState(ctx context.Context) ([]queue.Entry, error) {
	if s.queueFailures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return s.Memory.LoadQueueState(ctx)
}

func (s *unsteadyStore) LoadActiveRounds(ctx context.Context) ([]store.RoundRecord, error) {
	if s.release != nil {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.Memory.LoadActiveRounds(ctx)
}

func seedBettingRound(t *testing.T, st store.Store, clock *fakeClock, id string, slot int, fighters ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateRound(ctx, store.RoundRecord{
		ID: id, SlotIndex: slot, Status: store.RoundBetting, Fighters: fighters, CreatedAt: clock.Now().Add(-20 * time.Second),
	}))
	require.NoError(t, st.SaveBet(ctx, betting.Bet{ID: "bet-" + id, RoundID: id, BettorID: "alice", FighterID: fighters[0], GrossAmount: 500}))
}

func TestTick_QueueRetryKeepsRestoredRoundLive(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	st := &unsteadyStore{Memory: store.NewMemory(clock.Now)}
	st.queueFailures.Store(1)
	require.NoError(t, st.SaveQueueEntry(ctx, queue.Entry{FighterID: "waiting", JoinedAt: clock.t.Add(-time.Minute)}))
	seedBettingRound(t, st, clock, "round-1", 1, "a", "b", "c")

	var ticks atomic.Int32
	o := newOrchestrator(t, st, clock, orchestrator.Hooks{OnTick: func() { ticks.Add(1) }})
	rec := recovery.New(recovery.DefaultConfig(), nil, st, o, clock.Now)
	e := New(nil, o, rec)
	runs := 0
	e.OnRecovery = func(recovery.Result) { runs++ }

	e.Tick(ctx)
	assert.False(t, rec.Ready())
	assert.Zero(t, ticks.Load(), "orchestrator waits for the queue")

	e.Tick(ctx)
	e.Tick(ctx)
	o.Flush()

	assert.Equal(t, 2, runs)
	assert.True(t, rec.Done())
	assert.Equal(t, int32(2), ticks.Load())

	snap := o.Snapshot()
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "waiting", snap.Queue[0].FighterID)
	slot := snap.Slots[1]
	assert.Equal(t, "round-1", slot.ID)
	assert.Equal(t, queue.StateBetting, slot.State)
	require.NotNil(t, slot.Pool)
	assert.Equal(t, 1, slot.Pool.Bets)

	r, ok := st.Round("round-1")
	require.True(t, ok)
	assert.Equal(t, store.RoundBetting, r.Status)
	assert.Nil(t, r.CompletedAt)
}

func TestTick_ConcurrentTickWaitsForRecovery(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	st := &unsteadyStore{Memory: store.NewMemory(clock.Now), entered: make(chan struct{}), release: make(chan struct{})}
	seedBettingRound(t, st, clock, "round-1", 0, "a", "b", "c")

	var ticks atomic.Int32
	o := newOrchestrator(t, st, clock, orchestrator.Hooks{OnTick: func() { ticks.Add(1) }})
	for _, id := range []string{"w1", "w2", "w3", "w4"} {
		_, err := o.JoinQueue(ctx, id, false)
		require.NoError(t, err)
	}
	e := New(nil, o, recovery.New(recovery.DefaultConfig(), nil, st, o, clock.Now))

	first := make(chan struct{})
	go func() { e.Tick(ctx); close(first) }()
	<-st.entered

	second := make(chan struct{})
	go func() { e.Tick(ctx); close(second) }()
	assert.Never(t, func() bool {
		select {
		case <-second:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, ticks.Load())

	close(st.release)
	for _, ch := range []chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("tick did not finish")
		}
	}
	o.Flush()

	assert.Equal(t, int32(2), ticks.Load())
	snap := o.Snapshot()
	assert.Equal(t, "round-1", snap.Slots[0].ID)
	assert.Equal(t, queue.StateBetting, snap.Slots[0].State)
	require.NotNil(t, snap.Slots[0].Pool)
	assert.Equal(t, 1, snap.Slots[0].Pool.Bets)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3", "w4"}, snap.Slots[1].Fighters)

	r, ok := st.Round("round-1")
	require.True(t, ok)
	assert.Equal(t, store.RoundBetting, r.Status)
}
