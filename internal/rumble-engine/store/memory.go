package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
)

// Memory implementa Store em memória (testes e modo local sem Postgres).
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	queue   map[string]queue.Entry
	rounds  map[string]RoundRecord
	bets    map[string][]betting.Bet
	payouts map[string]betting.PayoutResult
	jackpot int64
}

func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		now:     clock,
		queue:   map[string]queue.Entry{},
		rounds:  map[string]RoundRecord{},
		bets:    map[string][]betting.Bet{},
		payouts: map[string]betting.PayoutResult{},
	}
}

func (m *Memory) LoadQueueState(_ context.Context) ([]queue.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.Entry, 0, len(m.queue))
	for _, e := range m.queue {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *Memory) SaveQueueEntry(_ context.Context, e queue.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[e.FighterID] = e
	return nil
}

func (m *Memory) RemoveQueueEntry(_ context.Context, fighterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, fighterID)
	return nil
}

func (m *Memory) CreateRound(_ context.Context, r RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[r.ID]; ok {
		return nil
	}
	now := m.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.Fighters = append([]string(nil), r.Fighters...)
	r.Entries = append([]queue.Entry(nil), r.Entries...)
	m.rounds[r.ID] = r
	return nil
}

func (m *Memory) LoadActiveRounds(_ context.Context) ([]RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RoundRecord
	for _, r := range m.rounds {
		if r.Status.Active() {
			r.Fighters = append([]string(nil), r.Fighters...)
			r.Entries = append([]queue.Entry(nil), r.Entries...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) update(roundID string, fn func(r *RoundRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return fmt.Errorf("%s: %w", roundID, ErrRoundNotFound)
	}
	fn(&r)
	r.UpdatedAt = m.now()
	m.rounds[roundID] = r
	return nil
}

func (m *Memory) UpdateRoundStatus(_ context.Context, roundID string, status RoundStatus) error {
	return m.update(roundID, func(r *RoundRecord) {
		if r.Status != RoundComplete {
			r.Status = status
		}
	})
}

func (m *Memory) UpdateBettingDeadline(_ context.Context, roundID string, deadline time.Time) error {
	return m.update(roundID, func(r *RoundRecord) { r.BettingDeadline = &deadline })
}

func (m *Memory) SetRoundWinner(_ context.Context, roundID, winnerID string) error {
	return m.update(roundID, func(r *RoundRecord) { r.WinnerID = winnerID })
}

func (m *Memory) CompleteRoundRecord(_ context.Context, roundID string) error {
	return m.update(roundID, func(r *RoundRecord) {
		if r.Status == RoundComplete {
			return
		}
		t := m.now()
		r.Status = RoundComplete
		r.CompletedAt = &t
	})
}

// Round devolve o registro (auxiliar de inspeção).
func (m *Memory) Round(id string) (RoundRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	return r, ok
}

func (m *Memory) SaveBet(_ context.Context, b betting.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[b.RoundID]; !ok {
		return fmt.Errorf("bet %s: %w", b.ID, ErrRoundNotFound)
	}
	for _, x := range m.bets[b.RoundID] {
		if x.ID == b.ID {
			return nil
		}
	}
	m.bets[b.RoundID] = append(m.bets[b.RoundID], b)
	return nil
}

func (m *Memory) LoadBetsForRound(_ context.Context, roundID string) ([]betting.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]betting.Bet(nil), m.bets[roundID]...), nil
}

func (m *Memory) CountBetsForRound(_ context.Context, roundID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bets[roundID]), nil
}

func (m *Memory) SavePayout(_ context.Context, p betting.PayoutResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payouts[p.RoundID]; !ok {
		m.payouts[p.RoundID] = p
	}
	return nil
}

// Payout devolve o payout gravado (auxiliar de inspeção).
func (m *Memory) Payout(roundID string) (betting.PayoutResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[roundID]
	return p, ok
}

func (m *Memory) LoadJackpotPool(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jackpot, nil
}

func (m *Memory) SaveJackpotPool(_ context.Context, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jackpot = amount
	return nil
}

var _ Store = (*Memory)(nil)
