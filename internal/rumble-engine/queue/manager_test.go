package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)} }

func newTestManager(t *testing.T, cfg Config, hooks Hooks) (*Manager, *fakeClock) {
	t.Helper()
	clk := newClock()
	m, err := NewManager(cfg, hooks, clk.Now)
	require.NoError(t, err)
	return m, clk
}

func enqueue(t *testing.T, m *Manager, clk *fakeClock, n int, prefix string, auto bool) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%02d", prefix, i)
		_, err := m.AddToQueue(id, auto)
		require.NoError(t, err)
		clk.Advance(time.Millisecond)
		ids = append(ids, id)
	}
	return ids
}

func resultFor(fighters []string) combat.Result {
	r := combat.Result{WinnerID: fighters[0]}
	for i, id := range fighters {
		r.Placements = append(r.Placements, combat.Placement{FighterID: id, Place: i + 1})
	}
	return r
}

func TestAddToQueue_RejectsDuplicatesAndActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFighters, cfg.MaxFighters = 3, 3
	m, clk := newTestManager(t, cfg, Hooks{})

	ids := enqueue(t, m, clk, 3, "f", false)
	_, err := m.AddToQueue(ids[0], false)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	m.AdvanceSlots()
	slot, _ := m.Slot(0)
	require.Equal(t, StateBetting, slot.State)

	_, err = m.AddToQueue(ids[1], false)
	assert.ErrorIs(t, err, ErrFighterActive)
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestQueueOrdering_PriorityThenFIFO(t *testing.T) {
	m, clk := newTestManager(t, DefaultConfig(), Hooks{})
	t0 := clk.Now()
	require.NoError(t, m.AddEntry(Entry{FighterID: "late-vip", JoinedAt: t0.Add(time.Minute), Priority: 0}))
	require.NoError(t, m.AddEntry(Entry{FighterID: "normal", JoinedAt: t0, Priority: 1}))
	require.NoError(t, m.AddEntry(Entry{FighterID: "early-vip", JoinedAt: t0, Priority: 0}))

	var got []string
	for _, e := range m.Queue() {
		got = append(got, e.FighterID)
	}
	assert.Equal(t, []string{"early-vip", "late-vip", "normal"}, got)

	assert.True(t, m.RemoveFromQueue("late-vip"))
	assert.False(t, m.RemoveFromQueue("late-vip"))
	assert.Equal(t, 2, m.QueueLength())
}

func TestAdvanceSlots_FullBracketPullsImmediately(t *testing.T) {
	var filled []Slot
	m, clk := newTestManager(t, DefaultConfig(), Hooks{OnSlotFilled: func(s Slot) { filled = append(filled, s) }})
	ids := enqueue(t, m, clk, 20, "f", false)

	tr := m.AdvanceSlots()
	require.Len(t, tr, 1)
	assert.Equal(t, StateBetting, tr[0].To)

	slots := m.Slots()
	assert.Equal(t, ids[:16], slots[0].Fighters)
	require.NotNil(t, slots[0].BettingDeadline)
	assert.Equal(t, clk.Now().Add(60*time.Second), *slots[0].BettingDeadline)
	assert.Equal(t, 4, m.QueueLength())
	require.Len(t, filled, 1)
	assert.Equal(t, slots[0].ID, filled[0].ID)
}

func TestAdvanceSlots_CountdownThenPartialPull(t *testing.T) {
	m, clk := newTestManager(t, DefaultConfig(), Hooks{})
	ids := enqueue(t, m, clk, 9, "f", false)

	m.AdvanceSlots()
	started, ok := m.LockStartedAt()
	require.True(t, ok)
	assert.Equal(t, clk.Now(), started)

	clk.Advance(29 * time.Second)
	assert.Empty(t, m.AdvanceSlots())
	assert.Equal(t, 9, m.QueueLength())

	clk.Advance(time.Second)
	tr := m.AdvanceSlots()
	require.Len(t, tr, 1)
	slot, _ := m.Slot(0)
	assert.Equal(t, StateBetting, slot.State)
	assert.Equal(t, ids, slot.Fighters)
	assert.Zero(t, m.QueueLength())
	_, ok = m.LockStartedAt()
	assert.False(t, ok)
}

func TestAdvanceSlots_CountdownResetsWhenQueueDropsBelowMinimum(t *testing.T) {
	m, clk := newTestManager(t, DefaultConfig(), Hooks{})
	ids := enqueue(t, m, clk, 8, "f", false)
	m.AdvanceSlots()
	_, ok := m.LockStartedAt()
	require.True(t, ok)

	m.RemoveFromQueue(ids[0])
	m.AdvanceSlots()
	_, ok = m.LockStartedAt()
	assert.False(t, ok)

	clk.Advance(time.Minute)
	assert.Empty(t, m.AdvanceSlots())
}

func TestAdvanceSlots_FullLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slots = 1
	cfg.MinFighters, cfg.MaxFighters = 3, 3
	var recycled []Slot
	var requeued []Entry
	m, clk := newTestManager(t, cfg, Hooks{OnSlotRecycled: func(prev Slot, rq []Entry) {
		recycled = append(recycled, prev)
		requeued = append(requeued, rq...)
	}})
	require.NoError(t, m.AddEntry(Entry{FighterID: "a", AutoRequeue: true, Priority: 2}))
	_, err := m.AddToQueue("b", false)
	require.NoError(t, err)
	_, err = m.AddToQueue("c", true)
	require.NoError(t, err)

	m.AdvanceSlots()
	slot, _ := m.Slot(0)
	roundID := slot.ID
	require.Equal(t, StateBetting, slot.State)

	// prazo 60s + carência 2s
	clk.Advance(61 * time.Second)
	assert.Empty(t, m.AdvanceSlots())
	clk.Advance(time.Second)
	tr := m.AdvanceSlots()
	require.Len(t, tr, 1)
	assert.Equal(t, Transition{Slot: 0, RoundID: roundID, From: StateBetting, To: StateCombat}, tr[0])

	// combate não sai sozinho
	clk.Advance(time.Hour)
	assert.Empty(t, m.AdvanceSlots())

	slot, _ = m.Slot(0)
	require.NoError(t, m.ReportResult(0, roundID, resultFor(slot.Fighters)))
	slot, _ = m.Slot(0)
	assert.Equal(t, StatePayout, slot.State)
	require.NotNil(t, slot.Result)

	clk.Advance(14 * time.Second)
	assert.Empty(t, m.AdvanceSlots())
	clk.Advance(time.Second)
	tr = m.AdvanceSlots()
	require.Len(t, tr, 1)
	assert.Equal(t, StateIdle, tr[0].To)
	assert.Equal(t, roundID, tr[0].RoundID)

	slot, _ = m.Slot(0)
	assert.NotEqual(t, roundID, slot.ID)
	assert.Empty(t, slot.Fighters)
	assert.Nil(t, slot.BettingDeadline)
	assert.Nil(t, slot.Result)

	require.Len(t, recycled, 1)
	assert.Equal(t, roundID, recycled[0].ID)
	var ids []string
	for _, e := range requeued {
		ids = append(ids, e.FighterID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
	assert.Equal(t, 2, m.QueueLength())
	_, active := m.ActiveSlot("b")
	assert.False(t, active)
	// prioridade original preservada
	assert.Equal(t, "c", m.Queue()[0].FighterID)
}

func TestAdvanceSlots_ArmedModeWaitsForWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeadlineMode = DeadlineArmed
	cfg.MinFighters, cfg.MaxFighters = 3, 4
	m, clk := newTestManager(t, cfg, Hooks{})
	enqueue(t, m, clk, 4, "f", false)

	m.AdvanceSlots()
	slot, _ := m.Slot(0)
	require.Equal(t, StateBetting, slot.State)
	assert.Nil(t, slot.BettingDeadline)

	clk.Advance(time.Hour)
	assert.Empty(t, m.AdvanceSlots())

	assert.ErrorIs(t, m.ArmBettingWindow(0, "other", clk.Now()), ErrRoundMismatch)
	assert.ErrorIs(t, m.ArmBettingWindow(1, slot.ID, clk.Now()), ErrSlotNotBetting)
	assert.ErrorIs(t, m.ArmBettingWindow(9, slot.ID, clk.Now()), ErrInvalidSlot)
	require.NoError(t, m.ArmBettingWindow(0, slot.ID, clk.Now().Add(10*time.Second)))

	clk.Advance(12 * time.Second)
	tr := m.AdvanceSlots()
	require.Len(t, tr, 1)
	assert.Equal(t, StateCombat, tr[0].To)
}

func TestAbortBettingSlot_RequeuesFighters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFighters, cfg.MaxFighters = 3, 3
	m, clk := newTestManager(t, cfg, Hooks{})
	ids := enqueue(t, m, clk, 3, "f", false)
	m.AdvanceSlots()
	before, _ := m.Slot(0)

	prev, requeued, err := m.AbortBettingSlot(0)
	require.NoError(t, err)
	assert.Equal(t, before.ID, prev.ID)
	assert.Len(t, requeued, 3)

	after, _ := m.Slot(0)
	assert.Equal(t, StateIdle, after.State)
	assert.NotEqual(t, before.ID, after.ID)
	for _, id := range ids {
		_, active := m.ActiveSlot(id)
		assert.False(t, active)
	}
	assert.Equal(t, 3, m.QueueLength())

	_, _, err = m.AbortBettingSlot(0)
	assert.ErrorIs(t, err, ErrSlotNotBetting)
}

func TestReportResult_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFighters, cfg.MaxFighters = 3, 3
	m, clk := newTestManager(t, cfg, Hooks{})
	ids := enqueue(t, m, clk, 3, "f", false)
	m.AdvanceSlots()
	slot, _ := m.Slot(0)

	assert.ErrorIs(t, m.ReportResult(0, slot.ID, resultFor(ids)), ErrSlotNotCombat)

	clk.Advance(2 * time.Minute)
	m.AdvanceSlots()

	assert.ErrorIs(t, m.ReportResult(0, "stale", resultFor(ids)), ErrRoundMismatch)
	assert.ErrorIs(t, m.ReportResult(0, slot.ID, resultFor([]string{ids[0], ids[1], "ghost"})), ErrRosterMismatch)
	assert.ErrorIs(t, m.ReportResult(0, slot.ID, resultFor(ids[:2])), ErrRosterMismatch)

	bad := resultFor(ids)
	bad.WinnerID = ids[2]
	assert.ErrorIs(t, m.ReportResult(0, slot.ID, bad), combat.ErrInvalidPlacements)

	require.NoError(t, m.ReportResult(0, slot.ID, resultFor(ids)))
}

func TestRestoreSlot(t *testing.T) {
	cfg := DefaultConfig()
	m, clk := newTestManager(t, cfg, Hooks{})
	_, err := m.AddToQueue("a", false)
	require.NoError(t, err)

	deadline := clk.Now().Add(20 * time.Second)
	require.NoError(t, m.RestoreSlot(Restore{Index: 1, RoundID: "round-x", Fighters: []string{"a", "b", "c"}, BettingDeadline: &deadline}))

	slot, _ := m.Slot(1)
	assert.Equal(t, "round-x", slot.ID)
	assert.Equal(t, StateBetting, slot.State)
	assert.Equal(t, deadline, *slot.BettingDeadline)
	assert.Zero(t, m.QueueLength(), "restored fighters leave the queue")

	err = m.RestoreSlot(Restore{Index: 1, RoundID: "round-y", Fighters: []string{"d"}})
	assert.ErrorIs(t, err, ErrSlotBusy)
	err = m.RestoreSlot(Restore{Index: 2, RoundID: "round-z", Fighters: []string{"a"}})
	assert.ErrorIs(t, err, ErrFighterActive)

	require.NoError(t, m.RestoreSlot(Restore{Index: 0, RoundID: "round-w", Fighters: []string{"d", "e", "f"}}))
	slot, _ = m.Slot(0)
	require.NotNil(t, slot.BettingDeadline)
	assert.Equal(t, clk.Now().Add(cfg.BettingDuration), *slot.BettingDeadline)
}

func TestRestoreSlot_KeepsQueueFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFighters, cfg.MaxFighters = 3, 3
	var requeued []Entry
	m, clk := newTestManager(t, cfg, Hooks{OnSlotRecycled: func(_ Slot, rq []Entry) { requeued = append(requeued, rq...) }})

	deadline := clk.Now().Add(time.Second)
	require.NoError(t, m.RestoreSlot(Restore{
		Index:           0,
		RoundID:         "round-x",
		Fighters:        []string{"a", "b", "c"},
		Entries:         []Entry{{FighterID: "a", AutoRequeue: true, Priority: 3}, {FighterID: "c"}},
		BettingDeadline: &deadline,
	}))
	entries := m.SlotEntries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{FighterID: "a", AutoRequeue: true, Priority: 3}, entries[0])
	assert.Equal(t, Entry{FighterID: "b"}, entries[1])

	clk.Advance(cfg.BettingGrace + time.Second)
	m.AdvanceSlots()
	require.NoError(t, m.ReportResult(0, "round-x", resultFor([]string{"a", "b", "c"})))
	clk.Advance(cfg.PayoutDuration)
	m.AdvanceSlots()

	require.Len(t, requeued, 1)
	assert.Equal(t, "a", requeued[0].FighterID)
	assert.Equal(t, 3, requeued[0].Priority)
	assert.True(t, requeued[0].AutoRequeue)
	assert.Nil(t, m.SlotEntries(9))
}

func TestAdvanceSlots_FighterNeverInTwoSlots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFighters, cfg.MaxFighters = 3, 5
	m, clk := newTestManager(t, cfg, Hooks{})
	enqueue(t, m, clk, 12, "f", true)

	for tick := 0; tick < 400; tick++ {
		m.AdvanceSlots()
		seen := map[string]int{}
		for _, s := range m.Slots() {
			if s.State == StateIdle {
				continue
			}
			for _, id := range s.Fighters {
				_, dup := seen[id]
				require.False(t, dup, "fighter %s in two slots", id)
				seen[id] = s.Index
			}
			if s.State == StateCombat && clk.Now().Sub(*s.CombatStartedAt) > 5*time.Second {
				require.NoError(t, m.ReportResult(s.Index, s.ID, resultFor(s.Fighters)))
			}
		}
		for _, e := range m.Queue() {
			_, dup := seen[e.FighterID]
			require.False(t, dup, "fighter %s queued while active", e.FighterID)
		}
		clk.Advance(time.Second)
	}
}

func TestNewManager_ValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFighters = 2
	_, err := NewManager(cfg, Hooks{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
