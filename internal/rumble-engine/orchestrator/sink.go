package orchestrator

import (
	"context"
	"time"

	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

// Sink recebe cada evento já embrulhado no Envelope comum (Kafka, Redis).
type Sink interface {
	Send(ctx context.Context, env events.Envelope) error
}

// SinkListener adapta um Sink à interface Listener.
type SinkListener struct {
	Sink Sink
}

func (s SinkListener) send(ctx context.Context, typ string, slot int, roundID string, ev any, ts time.Time) error {
	env, err := events.NewEnvelope(typ, slot, roundID, ts, ev)
	if err != nil {
		return err
	}
	return s.Sink.Send(ctx, env)
}

func (s SinkListener) OnBettingOpen(ctx context.Context, e events.BettingOpen) error {
	return s.send(ctx, events.TypeBettingOpen, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnCombatStarted(ctx context.Context, e events.CombatStarted) error {
	return s.send(ctx, events.TypeCombatStarted, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnTurnResolved(ctx context.Context, e events.TurnResolved) error {
	return s.send(ctx, events.TypeTurnResolved, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnFighterEliminated(ctx context.Context, e events.FighterEliminated) error {
	return s.send(ctx, events.TypeFighterEliminated, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnRumbleComplete(ctx context.Context, e events.RumbleComplete) error {
	return s.send(ctx, events.TypeRumbleComplete, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnPayoutComplete(ctx context.Context, e events.PayoutComplete) error {
	return s.send(ctx, events.TypePayoutComplete, e.SlotIndex, e.RoundID, e, e.Ts)
}

func (s SinkListener) OnIchorShower(ctx context.Context, e events.IchorShower) error {
	return s.send(ctx, events.TypeIchorShower, e.SlotIndex, e.RoundID, e, e.Ts)
}

// slot_recycled é publicado sob o round id novo.
func (s SinkListener) OnSlotRecycled(ctx context.Context, e events.SlotRecycled) error {
	return s.send(ctx, events.TypeSlotRecycled, e.SlotIndex, e.RoundID, e, e.Ts)
}

var _ Listener = SinkListener{}
