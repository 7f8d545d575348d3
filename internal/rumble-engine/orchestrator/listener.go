package orchestrator

import (
	"context"
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

// Listener recebe os eventos do ciclo de vida, um método por tipo.
// Erros e panics são registrados por listener e nunca abortam o tick.
type Listener interface {
	OnBettingOpen(ctx context.Context, e events.BettingOpen) error
	OnCombatStarted(ctx context.Context, e events.CombatStarted) error
	OnTurnResolved(ctx context.Context, e events.TurnResolved) error
	OnFighterEliminated(ctx context.Context, e events.FighterEliminated) error
	OnRumbleComplete(ctx context.Context, e events.RumbleComplete) error
	OnPayoutComplete(ctx context.Context, e events.PayoutComplete) error
	OnIchorShower(ctx context.Context, e events.IchorShower) error
	OnSlotRecycled(ctx context.Context, e events.SlotRecycled) error
}

// NopListener pode ser embutido por quem só quer parte dos eventos.
type NopListener struct{}

func (NopListener) OnBettingOpen(context.Context, events.BettingOpen) error             { return nil }
func (NopListener) OnCombatStarted(context.Context, events.CombatStarted) error         { return nil }
func (NopListener) OnTurnResolved(context.Context, events.TurnResolved) error           { return nil }
func (NopListener) OnFighterEliminated(context.Context, events.FighterEliminated) error { return nil }
func (NopListener) OnRumbleComplete(context.Context, events.RumbleComplete) error       { return nil }
func (NopListener) OnPayoutComplete(context.Context, events.PayoutComplete) error       { return nil }
func (NopListener) OnIchorShower(context.Context, events.IchorShower) error             { return nil }
func (NopListener) OnSlotRecycled(context.Context, events.SlotRecycled) error           { return nil }

// Settlement é a autoridade de liquidação (ex.: programa on-chain). Fornece o
// prazo autoritativo das apostas e é a fonte da verdade da movimentação final.
type Settlement interface {
	OpenRound(ctx context.Context, slotIndex int, roundID string, fighters []string) (time.Time, error)
	SubmitResult(ctx context.Context, slotIndex int, roundID string, result combat.Result) error
	SubmitPayout(ctx context.Context, slotIndex int, p betting.PayoutResult) error
}

// Hooks de métricas; todos opcionais.
type Hooks struct {
	OnTick          func()
	OnTurn          func()
	OnBet           func(accepted bool, reason string)
	OnPayout        func(jackpot bool)
	OnListenerError func(event string)
	OnStoreError    func(op string)
	OnSlotStates    func(byState map[string]int, queueLen int)
}
