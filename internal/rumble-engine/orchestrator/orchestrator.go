package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

var ErrClosed = errors.New("orchestrator closed")

// Motivos de payout pulado.
const (
	skipInsufficientFighters = "insufficient_fighters"
	skipInvalidResult        = "invalid_result"
)

type Config struct {
	Queue          queue.Config
	Combat         combat.Config
	Calculator     betting.CalculatorConfig
	TurnInterval   time.Duration
	WriteTimeout   time.Duration // por tentativa de escrita (store/settlement)
	WriteRetry     time.Duration // primeiro backoff; dobra até WriteRetryMax
	WriteRetryMax  time.Duration
	SettleAttempts int           // tentativas por chamada de liquidação
	ArmRetry       time.Duration // espera antes de pedir a janela de novo
}

func DefaultConfig() Config {
	return Config{
		Queue:          queue.DefaultConfig(),
		Combat:         combat.DefaultConfig(),
		Calculator:     betting.DefaultCalculatorConfig(),
		TurnInterval:   3 * time.Second,
		WriteTimeout:   5 * time.Second,
		WriteRetry:     200 * time.Millisecond,
		WriteRetryMax:  5 * time.Second,
		SettleAttempts: 5,
		ArmRetry:       10 * time.Second,
	}
}

// Deps são os colaboradores injetados pelo main.
type Deps struct {
	Log        *zap.Logger
	Store      store.Store // obrigatório
	Settlement Settlement  // opcional
	Listeners  []Listener
	Hooks      Hooks
	Clock      func() time.Time
	Rand       *rand.Rand      // sorteio de golpes/pareamentos
	Entropy    betting.Entropy // jackpot; nil = crypto/rand
	Strategy   combat.Strategy
}

// roundState guarda o que é da rodada corrente de um slot e é descartado
// no payout.
type roundState struct {
	roundID           string
	pool              *betting.Pool
	bettingAnnounced  bool
	announcedDeadline *time.Time
	battle            *combat.Battle
	lastTurnAt        time.Time
	result            *combat.Result
}

// Orchestrator dirige os slots a cada tick. Todas as mutações passam por mu,
// então Tick e as chamadas da API HTTP podem ser concorrentes.
type Orchestrator struct {
	mu        sync.Mutex
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
	store     store.Store
	settle    Settlement
	listeners []Listener
	hooks     Hooks

	queue *queue.Manager
	calc  *betting.Calculator
	sim   *combat.Simulator

	rounds           map[int]*roundState
	processedPayouts map[string]struct{}
	armPending       map[string]time.Time

	// rodadas cujo create_round já foi confirmado pelo store
	pmu       sync.Mutex
	persisted map[string]struct{}

	writer       *writer // store: refaz até dar certo
	settleWriter *writer // liquidação: SettleAttempts tentativas
	wg           sync.WaitGroup
	closed       bool
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.WriteRetry <= 0 {
		cfg.WriteRetry = 200 * time.Millisecond
	}
	if cfg.WriteRetryMax < cfg.WriteRetry {
		cfg.WriteRetryMax = cfg.WriteRetry
	}
	if cfg.SettleAttempts <= 0 {
		cfg.SettleAttempts = 5
	}
	calc, err := betting.NewCalculator(cfg.Calculator, deps.Entropy)
	if err != nil {
		return nil, fmt.Errorf("payout calculator: %w", err)
	}
	o := &Orchestrator{
		cfg:              cfg,
		log:              deps.Log,
		now:              deps.Clock,
		store:            deps.Store,
		settle:           deps.Settlement,
		listeners:        deps.Listeners,
		hooks:            deps.Hooks,
		calc:             calc,
		sim:              combat.NewSimulator(cfg.Combat, deps.Strategy, deps.Rand),
		rounds:           map[int]*roundState{},
		processedPayouts: map[string]struct{}{},
		armPending:       map[string]time.Time{},
		persisted:        map[string]struct{}{},
	}
	o.queue, err = queue.NewManager(cfg.Queue, queue.Hooks{
		OnSlotFilled:   o.onSlotFilled,
		OnSlotRecycled: o.onSlotRecycled,
	}, deps.Clock)
	if err != nil {
		return nil, err
	}
	o.writer = newWriter(deps.Log, cfg.WriteTimeout, cfg.WriteRetry, cfg.WriteRetryMax, 0, deps.Hooks.OnStoreError)
	o.settleWriter = newWriter(deps.Log, cfg.WriteTimeout, cfg.WriteRetry, cfg.WriteRetryMax, cfg.SettleAttempts, deps.Hooks.OnStoreError)
	return o, nil
}

// Tick avança todos os slots uma vez. Seguro para chamadas repetidas e
// concorrentes: cada ação é protegida por estado/round id.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.hooks.OnTick != nil {
		o.hooks.OnTick()
	}

	for _, t := range o.queue.AdvanceSlots() {
		o.log.Info("slot transition",
			zap.Int("slot", t.Slot),
			zap.String("round_id", t.RoundID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
		)
		if t.To == queue.StateCombat {
			id := t.RoundID
			o.writer.submit("update_round_status", func(ctx context.Context) error {
				return o.store.UpdateRoundStatus(ctx, id, store.RoundCombat)
			})
		}
	}

	for _, s := range o.queue.Slots() {
		switch s.State {
		case queue.StateBetting:
			o.processBetting(ctx, s)
		case queue.StateCombat:
			o.processCombat(ctx, s)
		case queue.StatePayout:
			o.processPayout(ctx, s)
		}
	}
	o.reportStates()
}

func (o *Orchestrator) round(s queue.Slot) *roundState {
	rs, ok := o.rounds[s.Index]
	if !ok || rs.roundID != s.ID {
		rs = &roundState{roundID: s.ID}
		o.rounds[s.Index] = rs
	}
	return rs
}

func (o *Orchestrator) ensurePool(rs *roundState, s queue.Slot) *betting.Pool {
	if rs.pool == nil {
		rs.pool = betting.NewPool(s.ID, s.Fighters, o.cfg.Calculator.Rates)
	}
	return rs.pool
}

func (o *Orchestrator) processBetting(ctx context.Context, s queue.Slot) {
	rs := o.round(s)
	o.ensurePool(rs, s)

	if !rs.bettingAnnounced || !sameTime(rs.announcedDeadline, s.BettingDeadline) {
		rs.bettingAnnounced = true
		rs.announcedDeadline = copyTime(s.BettingDeadline)
		ev := events.BettingOpen{
			SlotIndex: s.Index,
			RoundID:   s.ID,
			Fighters:  append([]string(nil), s.Fighters...),
			Deadline:  copyTime(s.BettingDeadline),
			Ts:        o.now(),
		}
		o.emit(ctx, events.TypeBettingOpen, func(l Listener) error { return l.OnBettingOpen(ctx, ev) })
	}

	if s.BettingDeadline == nil && o.settle != nil && o.cfg.Queue.DeadlineMode == queue.DeadlineArmed {
		o.requestArm(s)
	}
}

// requestArm pede à autoridade de liquidação a janela de apostas, fora do
// tick. Falhas são refeitas depois de ArmRetry.
func (o *Orchestrator) requestArm(s queue.Slot) {
	now := o.now()
	if at, ok := o.armPending[s.ID]; ok && now.Sub(at) < o.cfg.ArmRetry {
		return
	}
	o.armPending[s.ID] = now
	fighters := append([]string(nil), s.Fighters...)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.WriteTimeout)
		defer cancel()
		deadline, err := o.settle.OpenRound(ctx, s.Index, s.ID, fighters)
		if err != nil {
			o.log.Warn("settlement open round failed", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
			if o.hooks.OnStoreError != nil {
				o.hooks.OnStoreError("settlement_open_round")
			}
			return
		}
		if err := o.ArmBettingWindow(ctx, s.Index, s.ID, deadline); err != nil {
			o.log.Warn("arm betting window failed", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) processCombat(ctx context.Context, s queue.Slot) {
	rs := o.round(s)
	now := o.now()

	if rs.battle == nil {
		o.ensurePool(rs, s)
		roster := make([]combat.Entrant, 0, len(s.Fighters))
		for _, id := range s.Fighters {
			roster = append(roster, combat.Entrant{ID: id})
		}
		rs.battle = combat.NewBattle(o.cfg.Combat, roster)
		rs.lastTurnAt = now
		ev := events.CombatStarted{
			SlotIndex: s.Index,
			RoundID:   s.ID,
			Fighters:  fighterStates(rs.battle.Fighters),
			Ts:        now,
		}
		o.emit(ctx, events.TypeCombatStarted, func(l Listener) error { return l.OnCombatStarted(ctx, ev) })
		// o primeiro turno só roda no próximo tick
		return
	}

	if rs.result != nil {
		// resultado já calculado mas a transição falhou; tenta de novo
		o.reportResult(ctx, s, rs)
		return
	}
	if rs.battle.Over() {
		o.finishCombat(ctx, s, rs)
		return
	}
	if now.Sub(rs.lastTurnAt) < o.cfg.TurnInterval {
		return
	}

	turn, err := o.sim.Step(rs.battle)
	if err != nil {
		if errors.Is(err, combat.ErrBattleOver) {
			o.finishCombat(ctx, s, rs)
			return
		}
		o.log.Error("combat step failed", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
		return
	}
	rs.lastTurnAt = now
	if o.hooks.OnTurn != nil {
		o.hooks.OnTurn()
	}

	remaining := rs.battle.AliveCount()
	te := events.TurnResolved{SlotIndex: s.Index, RoundID: s.ID, Turn: turnEvent(turn), RemainingFighters: remaining, Ts: now}
	o.emit(ctx, events.TypeTurnResolved, func(l Listener) error { return l.OnTurnResolved(ctx, te) })
	for _, id := range turn.Eliminations {
		ee := events.FighterEliminated{
			SlotIndex:         s.Index,
			RoundID:           s.ID,
			FighterID:         id,
			TurnNumber:        turn.Number,
			RemainingFighters: remaining,
			Ts:                now,
		}
		o.emit(ctx, events.TypeFighterEliminated, func(l Listener) error { return l.OnFighterEliminated(ctx, ee) })
	}

	if rs.battle.Over() {
		o.finishCombat(ctx, s, rs)
	}
}

func (o *Orchestrator) finishCombat(ctx context.Context, s queue.Slot, rs *roundState) {
	res := rs.battle.Result()
	rs.result = &res

	ev := events.RumbleComplete{SlotIndex: s.Index, RoundID: s.ID, Result: resultEvent(res), Ts: o.now()}
	o.emit(ctx, events.TypeRumbleComplete, func(l Listener) error { return l.OnRumbleComplete(ctx, ev) })

	id, winner := s.ID, res.WinnerID
	o.writer.submit("set_round_winner", func(ctx context.Context) error {
		return o.store.SetRoundWinner(ctx, id, winner)
	})
	if o.settle != nil {
		o.settleWriter.submit("settlement_submit_result", func(ctx context.Context) error {
			return o.settle.SubmitResult(ctx, s.Index, id, res)
		})
	}
	o.reportResult(ctx, s, rs)
}

func (o *Orchestrator) reportResult(_ context.Context, s queue.Slot, rs *roundState) {
	if err := o.queue.ReportResult(s.Index, s.ID, *rs.result); err != nil {
		o.log.Error("report result failed", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
		return
	}
	id := s.ID
	o.writer.submit("update_round_status", func(ctx context.Context) error {
		return o.store.UpdateRoundStatus(ctx, id, store.RoundPayout)
	})
}

// processPayout roda exatamente uma vez por round id.
func (o *Orchestrator) processPayout(ctx context.Context, s queue.Slot) {
	if _, done := o.processedPayouts[s.ID]; done {
		return
	}
	o.processedPayouts[s.ID] = struct{}{}

	rs := o.round(s)
	defer func() {
		if _, ok := o.processedPayouts[s.ID]; ok {
			delete(o.rounds, s.Index)
		}
	}()

	if s.Result == nil || len(s.Result.Placements) < 3 {
		o.log.Warn("payout skipped: not enough ranked fighters",
			zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Int("fighters", len(s.Fighters)))
		o.completePayout(ctx, s, nil, skipInsufficientFighters)
		return
	}

	pool := o.ensurePool(rs, s)
	res, err := o.calc.Calculate(pool, *s.Result)
	if err != nil {
		switch {
		case errors.Is(err, betting.ErrTooFewPlacements):
			o.log.Warn("payout skipped", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
			o.completePayout(ctx, s, nil, skipInsufficientFighters)
			return
		case errors.Is(err, combat.ErrInvalidPlacements), errors.Is(err, betting.ErrUnknownFighter):
			o.log.Error("payout skipped: result does not match pool", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
			o.completePayout(ctx, s, nil, skipInvalidResult)
			return
		}
		// falha transitória (entropia): libera para o próximo tick
		delete(o.processedPayouts, s.ID)
		o.log.Error("payout calculation failed", zap.Int("slot", s.Index), zap.String("round_id", s.ID), zap.Error(err))
		return
	}

	if o.hooks.OnPayout != nil {
		o.hooks.OnPayout(res.JackpotTriggered)
	}
	jackpot := o.calc.Jackpot().Pool()
	o.writer.submit("save_payout", func(ctx context.Context) error { return o.store.SavePayout(ctx, res) })
	o.writer.submit("save_jackpot", func(ctx context.Context) error { return o.store.SaveJackpotPool(ctx, jackpot) })
	if o.settle != nil {
		o.settleWriter.submit("settlement_submit_payout", func(ctx context.Context) error {
			return o.settle.SubmitPayout(ctx, s.Index, res)
		})
	}

	if res.JackpotTriggered {
		ev := events.IchorShower{
			SlotIndex: s.Index,
			RoundID:   s.ID,
			WinnerID:  res.JackpotWinner,
			Amount:    res.JackpotAmount,
			Burned:    res.JackpotBurned,
			Ts:        o.now(),
		}
		o.emit(ctx, events.TypeIchorShower, func(l Listener) error { return l.OnIchorShower(ctx, ev) })
	}
	o.completePayout(ctx, s, payoutEvent(res), "")
}

func (o *Orchestrator) completePayout(ctx context.Context, s queue.Slot, p *events.Payout, skipped string) {
	ev := events.PayoutComplete{SlotIndex: s.Index, RoundID: s.ID, Payout: p, Skipped: skipped, Ts: o.now()}
	o.emit(ctx, events.TypePayoutComplete, func(l Listener) error { return l.OnPayoutComplete(ctx, ev) })
	id := s.ID
	o.writer.submit("complete_round", func(ctx context.Context) error {
		return o.store.CompleteRoundRecord(ctx, id)
	})
}

// onSlotFilled roda dentro de AdvanceSlots/RestoreSlot (mu já travado).
func (o *Orchestrator) onSlotFilled(s queue.Slot) {
	rec := o.roundRecord(s)
	o.writer.submitThen("create_round",
		func(ctx context.Context) error { return o.store.CreateRound(ctx, rec) },
		func() { o.markPersisted(rec.ID) },
	)
	for _, id := range rec.Fighters {
		fid := id
		o.writer.submit("remove_queue_entry", func(ctx context.Context) error {
			return o.store.RemoveQueueEntry(ctx, fid)
		})
	}
}

func (o *Orchestrator) roundRecord(s queue.Slot) store.RoundRecord {
	return store.RoundRecord{
		ID:              s.ID,
		SlotIndex:       s.Index,
		Status:          store.RoundBetting,
		Fighters:        append([]string(nil), s.Fighters...),
		Entries:         o.queue.SlotEntries(s.Index),
		BettingDeadline: copyTime(s.BettingDeadline),
	}
}

func (o *Orchestrator) markPersisted(roundID string) {
	o.pmu.Lock()
	o.persisted[roundID] = struct{}{}
	o.pmu.Unlock()
}

func (o *Orchestrator) isPersisted(roundID string) bool {
	o.pmu.Lock()
	defer o.pmu.Unlock()
	_, ok := o.persisted[roundID]
	return ok
}

func (o *Orchestrator) forgetPersisted(roundID string) {
	o.pmu.Lock()
	delete(o.persisted, roundID)
	o.pmu.Unlock()
}

// ensureRoundPersisted grava a rodada de forma síncrona se o create_round
// assíncrono ainda não foi confirmado. CreateRound é idempotente.
func (o *Orchestrator) ensureRoundPersisted(ctx context.Context, s queue.Slot) error {
	if o.isPersisted(s.ID) {
		return nil
	}
	if err := o.store.CreateRound(ctx, o.roundRecord(s)); err != nil {
		return err
	}
	o.markPersisted(s.ID)
	return nil
}

// onSlotRecycled roda dentro de AdvanceSlots (mu já travado).
func (o *Orchestrator) onSlotRecycled(prev queue.Slot, requeued []queue.Entry) {
	delete(o.processedPayouts, prev.ID)
	delete(o.armPending, prev.ID)
	o.forgetPersisted(prev.ID)
	if rs, ok := o.rounds[prev.Index]; ok && rs.roundID == prev.ID {
		delete(o.rounds, prev.Index)
	}

	var ids []string
	for _, e := range requeued {
		entry := e
		ids = append(ids, e.FighterID)
		o.writer.submit("save_queue_entry", func(ctx context.Context) error {
			return o.store.SaveQueueEntry(ctx, entry)
		})
	}

	next, _ := o.queue.Slot(prev.Index)
	ev := events.SlotRecycled{
		SlotIndex:        prev.Index,
		PreviousRoundID:  prev.ID,
		PreviousFighters: prev.Fighters,
		RoundID:          next.ID,
		Requeued:         ids,
		Ts:               o.now(),
	}
	ctx := context.Background()
	o.emit(ctx, events.TypeSlotRecycled, func(l Listener) error { return l.OnSlotRecycled(ctx, ev) })
}

// emit entrega o evento a cada listener isolando erros e panics.
func (o *Orchestrator) emit(_ context.Context, kind string, call func(l Listener) error) {
	for _, l := range o.listeners {
		o.deliver(kind, l, call)
	}
}

func (o *Orchestrator) deliver(kind string, l Listener, call func(l Listener) error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("listener panicked",
				zap.String("event", kind),
				zap.String("listener", fmt.Sprintf("%T", l)),
				zap.Any("panic", r),
			)
			if o.hooks.OnListenerError != nil {
				o.hooks.OnListenerError(kind)
			}
		}
	}()
	if err := call(l); err != nil {
		o.log.Warn("listener failed",
			zap.String("event", kind),
			zap.String("listener", fmt.Sprintf("%T", l)),
			zap.Error(err),
		)
		if o.hooks.OnListenerError != nil {
			o.hooks.OnListenerError(kind)
		}
	}
}

func (o *Orchestrator) reportStates() {
	if o.hooks.OnSlotStates == nil {
		return
	}
	byState := map[string]int{}
	for _, s := range o.queue.Slots() {
		byState[string(s.State)]++
	}
	o.hooks.OnSlotStates(byState, o.queue.QueueLength())
}

// Flush espera arms pendentes e escritas assíncronas já enfileiradas.
func (o *Orchestrator) Flush() {
	o.wg.Wait()
	o.writer.flush()
	o.settleWriter.flush()
}

// Close encerra o orquestrador. Escritas ainda pendentes têm uma última
// tentativa; as que falharem ficam para a recuperação do próximo boot.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
	o.writer.close()
	o.settleWriter.close()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
