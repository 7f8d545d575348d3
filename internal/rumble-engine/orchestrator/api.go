package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

// PlaceBet aceita uma aposta se o slot está em apostas, o prazo não passou e
// o lutador está no roster da rodada. A rodada e a aposta são persistidas
// antes da aposta entrar no pool.
func (o *Orchestrator) PlaceBet(ctx context.Context, slotIndex int, bettorID, fighterID string, gross int64) (betting.Bet, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return betting.Bet{}, ErrClosed
	}

	bet, err := o.placeBet(ctx, slotIndex, bettorID, fighterID, gross)
	if o.hooks.OnBet != nil {
		o.hooks.OnBet(err == nil, rejectReason(err))
	}
	if err != nil {
		o.log.Debug("bet rejected",
			zap.Int("slot", slotIndex),
			zap.String("bettor_id", bettorID),
			zap.String("fighter_id", fighterID),
			zap.Error(err),
		)
	}
	return bet, err
}

func (o *Orchestrator) placeBet(ctx context.Context, slotIndex int, bettorID, fighterID string, gross int64) (betting.Bet, error) {
	s, err := o.queue.Slot(slotIndex)
	if err != nil {
		return betting.Bet{}, err
	}
	if s.State != queue.StateBetting {
		return betting.Bet{}, fmt.Errorf("slot %d is %s: %w", slotIndex, s.State, betting.ErrBettingClosed)
	}
	now := o.now()
	if s.BettingDeadline != nil && !now.Before(*s.BettingDeadline) {
		return betting.Bet{}, fmt.Errorf("slot %d deadline passed: %w", slotIndex, betting.ErrBettingClosed)
	}

	rs := o.round(s)
	pool := o.ensurePool(rs, s)
	bet, err := pool.Prepare(bettorID, fighterID, gross, now)
	if err != nil {
		return betting.Bet{}, err
	}

	wctx, cancel := context.WithTimeout(ctx, o.cfg.WriteTimeout)
	defer cancel()
	if err := o.ensureRoundPersisted(wctx, s); err != nil {
		return betting.Bet{}, fmt.Errorf("persist round: %w", err)
	}
	if err := o.store.SaveBet(wctx, bet); err != nil {
		return betting.Bet{}, fmt.Errorf("save bet: %w", err)
	}
	if err := pool.Restore(bet); err != nil {
		return betting.Bet{}, err
	}
	return bet, nil
}

func rejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, betting.ErrBettingClosed):
		return "closed"
	case errors.Is(err, betting.ErrUnknownFighter):
		return "unknown_fighter"
	case errors.Is(err, betting.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, betting.ErrMissingBettor):
		return "missing_bettor"
	case errors.Is(err, queue.ErrInvalidSlot):
		return "invalid_slot"
	default:
		return "store"
	}
}

// JoinQueue enfileira o lutador e persiste a entrada.
func (o *Orchestrator) JoinQueue(_ context.Context, fighterID string, autoRequeue bool) (queue.Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return queue.Entry{}, ErrClosed
	}
	e, err := o.queue.AddToQueue(fighterID, autoRequeue)
	if err != nil {
		return queue.Entry{}, err
	}
	o.writer.submit("save_queue_entry", func(ctx context.Context) error { return o.store.SaveQueueEntry(ctx, e) })
	return e, nil
}

// LeaveQueue devolve false se o lutador não estava na fila.
func (o *Orchestrator) LeaveQueue(_ context.Context, fighterID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || !o.queue.RemoveFromQueue(fighterID) {
		return false
	}
	o.writer.submit("remove_queue_entry", func(ctx context.Context) error {
		return o.store.RemoveQueueEntry(ctx, fighterID)
	})
	return true
}

// ArmBettingWindow aplica o prazo autoritativo vindo da liquidação. O
// betting_open é reemitido com o prazo no próximo tick.
func (o *Orchestrator) ArmBettingWindow(_ context.Context, slotIndex int, roundID string, deadline time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.queue.ArmBettingWindow(slotIndex, roundID, deadline); err != nil {
		return err
	}
	delete(o.armPending, roundID)
	o.writer.submit("update_betting_deadline", func(ctx context.Context) error {
		return o.store.UpdateBettingDeadline(ctx, roundID, deadline)
	})
	o.log.Info("betting window armed",
		zap.Int("slot", slotIndex), zap.String("round_id", roundID), zap.Time("deadline", deadline))
	return nil
}

// AbortBettingSlot derruba um slot travado em apostas e devolve os
// lutadores à fila. Apostas já feitas ficam para a liquidação reembolsar.
func (o *Orchestrator) AbortBettingSlot(_ context.Context, slotIndex int) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	prev, requeued, err := o.queue.AbortBettingSlot(slotIndex)
	if err != nil {
		return nil, err
	}
	if rs, ok := o.rounds[slotIndex]; ok && rs.roundID == prev.ID {
		if rs.pool != nil && rs.pool.HasBets() {
			o.log.Warn("aborted round had bets",
				zap.Int("slot", slotIndex), zap.String("round_id", prev.ID), zap.Int("bets", len(rs.pool.Bets)))
		}
		delete(o.rounds, slotIndex)
	}
	delete(o.armPending, prev.ID)
	o.forgetPersisted(prev.ID)

	id := prev.ID
	o.writer.submit("complete_round", func(ctx context.Context) error { return o.store.CompleteRoundRecord(ctx, id) })
	for _, e := range requeued {
		entry := e
		o.writer.submit("save_queue_entry", func(ctx context.Context) error { return o.store.SaveQueueEntry(ctx, entry) })
	}
	o.log.Warn("betting slot aborted", zap.Int("slot", slotIndex), zap.String("round_id", id), zap.Strings("fighters", prev.Fighters))
	return prev.Fighters, nil
}

// PoolView resume o pool de apostas de um slot.
type PoolView struct {
	Bets          int              `json:"bets"`
	TotalGross    int64            `json:"totalGross"`
	FeesCollected int64            `json:"feesCollected"`
	NetPool       int64            `json:"netPool"`
	NetByFighter  map[string]int64 `json:"netByFighter"`
}

type SlotView struct {
	queue.Slot
	Pool       *PoolView             `json:"pool,omitempty"`
	Combatants []events.FighterState `json:"combatants,omitempty"`
	TurnNumber int                   `json:"turnNumber,omitempty"`
}

type Snapshot struct {
	Slots       []SlotView    `json:"slots"`
	Queue       []queue.Entry `json:"queue"`
	JackpotPool int64         `json:"jackpotPool"`
	At          time.Time     `json:"at"`
}

// Snapshot é o modelo de leitura usado pela API e pelo cache.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		Queue:       o.queue.Queue(),
		JackpotPool: o.calc.Jackpot().Pool(),
		At:          o.now(),
	}
	for _, s := range o.queue.Slots() {
		v := SlotView{Slot: s}
		if rs, ok := o.rounds[s.Index]; ok && rs.roundID == s.ID {
			if rs.pool != nil {
				nb := make(map[string]int64, len(rs.pool.NetByFighter))
				for k, n := range rs.pool.NetByFighter {
					nb[k] = n
				}
				v.Pool = &PoolView{
					Bets:          len(rs.pool.Bets),
					TotalGross:    rs.pool.TotalGross,
					FeesCollected: rs.pool.FeesCollected,
					NetPool:       rs.pool.NetPool,
					NetByFighter:  nb,
				}
			}
			if rs.battle != nil {
				v.Combatants = fighterStates(rs.battle.Fighters)
				v.TurnNumber = len(rs.battle.Turns)
			}
		}
		snap.Slots = append(snap.Slots, v)
	}
	return snap
}

// RestoreQueueEntry recoloca uma entrada carregada do armazenamento.
func (o *Orchestrator) RestoreQueueEntry(e queue.Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.AddEntry(e)
}

// RestoreBettingRound recoloca uma rodada em apostas com as apostas já
// gravadas. Erro só quando o slot não pôde ser restaurado; apostas
// inconsistentes são descartadas com log.
func (o *Orchestrator) RestoreBettingRound(rec store.RoundRecord, bets []betting.Bet) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	err := o.queue.RestoreSlot(queue.Restore{
		Index:           rec.SlotIndex,
		RoundID:         rec.ID,
		Fighters:        rec.Fighters,
		Entries:         rec.Entries,
		BettingDeadline: rec.BettingDeadline,
	})
	if err != nil {
		return 0, err
	}
	o.markPersisted(rec.ID)
	rs := &roundState{roundID: rec.ID, pool: betting.NewPool(rec.ID, rec.Fighters, o.cfg.Calculator.Rates)}
	o.rounds[rec.SlotIndex] = rs
	for _, b := range bets {
		if err := rs.pool.Restore(b); err != nil {
			o.log.Warn("dropping inconsistent bet on restore",
				zap.String("round_id", rec.ID), zap.String("bet_id", b.ID), zap.Error(err))
		}
	}
	return len(rs.pool.Bets), nil
}

// RequeueFighters devolve lutadores à fila com as flags de fila que tinham
// e persiste as entradas. Duplicatas são ignoradas.
func (o *Orchestrator) RequeueFighters(entries []queue.Entry) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	now := o.now()
	for _, e := range entries {
		e.JoinedAt = now
		if err := o.queue.AddEntry(e); err != nil {
			continue
		}
		n++
		if !o.closed {
			o.writer.submit("save_queue_entry", func(ctx context.Context) error { return o.store.SaveQueueEntry(ctx, e) })
		}
	}
	return n
}

// RestoreJackpot recoloca o saldo acumulado do jackpot.
func (o *Orchestrator) RestoreJackpot(amount int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calc.RestoreJackpot(amount)
}

// QueueLength é o tamanho atual da fila.
func (o *Orchestrator) QueueLength() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.QueueLength()
}
