package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
)

// Target é o lado em memória que recebe o estado recarregado.
type Target interface {
	RestoreQueueEntry(e queue.Entry) error
	RestoreBettingRound(rec store.RoundRecord, bets []betting.Bet) (int, error)
	RequeueFighters(entries []queue.Entry) int
	RestoreJackpot(amount int64)
}

type Config struct {
	StaleBetting time.Duration
	StaleCombat  time.Duration
}

func DefaultConfig() Config {
	return Config{StaleBetting: 5 * time.Minute, StaleCombat: 10 * time.Minute}
}

// Result resume uma execução. Errors traz as falhas de cada passo; nenhuma
// interrompe os passos seguintes.
type Result struct {
	Ran              bool
	QueueRestored    int
	RoundsProcessed  int
	BettingRestored  int
	BetsRestored     int
	BettingExpired   int
	BettingUntouched int
	PayoutCompleted  int
	CombatReleased   int
	CombatUntouched  int
	Errors           []error
}

// Recovery reconstrói o estado após um cold start. Cada passo (fila, jackpot,
// rodadas) e cada rodada só é feito uma vez com sucesso; uma nova execução
// refaz apenas o que falhou. Run é serializado: quem chega durante uma
// execução espera por ela.
type Recovery struct {
	cfg    Config
	log    *zap.Logger
	store  store.Store
	target Target
	now    func() time.Time

	mu            sync.Mutex
	queueLoaded   bool
	jackpotLoaded bool
	rounds        []store.RoundRecord // snapshot da primeira leitura bem-sucedida
	roundsLoaded  bool
	handled       map[string]struct{}

	ready atomic.Bool
	done  atomic.Bool
}

func New(cfg Config, log *zap.Logger, st store.Store, target Target, clock func() time.Time) *Recovery {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recovery{cfg: cfg, log: log, store: st, target: target, now: clock, handled: map[string]struct{}{}}
}

// Ready indica que fila, jackpot e rodadas ativas foram carregados; daí em
// diante o orquestrador pode rodar.
func (r *Recovery) Ready() bool { return r.ready.Load() }

// Done indica que não resta nada para refazer.
func (r *Recovery) Done() bool { return r.done.Load() }

func (r *Recovery) Run(ctx context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done.Load() {
		return Result{}
	}
	res := Result{Ran: true}

	if !r.queueLoaded {
		r.loadQueue(ctx, &res)
	}
	if !r.jackpotLoaded {
		if pool, err := r.store.LoadJackpotPool(ctx); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("load jackpot pool: %w", err))
		} else {
			r.target.RestoreJackpot(pool)
			r.jackpotLoaded = true
		}
	}
	if !r.roundsLoaded {
		rounds, err := r.store.LoadActiveRounds(ctx)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("load active rounds: %w", err))
		} else {
			r.rounds = rounds
			r.roundsLoaded = true
		}
	}
	pending := 0
	if r.roundsLoaded {
		pending = r.processRounds(ctx, &res)
	}

	ready := r.queueLoaded && r.jackpotLoaded && r.roundsLoaded
	r.ready.Store(ready)
	r.done.Store(ready && pending == 0)

	r.log.Info("state recovery finished",
		zap.Int("queue_restored", res.QueueRestored),
		zap.Int("rounds_processed", res.RoundsProcessed),
		zap.Int("betting_restored", res.BettingRestored),
		zap.Int("bets_restored", res.BetsRestored),
		zap.Int("betting_expired", res.BettingExpired),
		zap.Int("betting_untouched", res.BettingUntouched),
		zap.Int("payout_completed", res.PayoutCompleted),
		zap.Int("combat_released", res.CombatReleased),
		zap.Int("combat_untouched", res.CombatUntouched),
		zap.Int("pending_rounds", pending),
		zap.Int("errors", len(res.Errors)),
		zap.Bool("will_retry", !r.done.Load()),
	)
	for _, e := range res.Errors {
		r.log.Warn("recovery step failed", zap.Error(e))
	}
	return res
}

func (r *Recovery) loadQueue(ctx context.Context, res *Result) {
	entries, err := r.store.LoadQueueState(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("load queue state: %w", err))
		return
	}
	r.queueLoaded = true
	for _, e := range entries {
		if err := r.target.RestoreQueueEntry(e); err != nil {
			if !errors.Is(err, queue.ErrDuplicateEntry) {
				res.Errors = append(res.Errors, fmt.Errorf("restore queue entry %s: %w", e.FighterID, err))
			}
			continue
		}
		res.QueueRestored++
	}
}

// processRounds trata as rodadas da mais nova para a mais antiga; uma rodada
// com outra mais nova no mesmo slot é considerada superada. Rodadas já
// tratadas em execuções anteriores são puladas. Devolve quantas ficaram
// pendentes por falha de leitura/escrita.
func (r *Recovery) processRounds(ctx context.Context, res *Result) int {
	rounds := r.rounds
	sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].CreatedAt.After(rounds[j].CreatedAt) })
	newest := map[int]string{}
	for _, rec := range rounds {
		if _, ok := newest[rec.SlotIndex]; !ok {
			newest[rec.SlotIndex] = rec.ID
		}
	}
	now := r.now()
	pending := 0

	for _, rec := range rounds {
		if _, ok := r.handled[rec.ID]; ok {
			continue
		}
		res.RoundsProcessed++
		superseded := newest[rec.SlotIndex] != rec.ID
		log := r.log.With(zap.String("round_id", rec.ID), zap.Int("slot", rec.SlotIndex), zap.String("status", string(rec.Status)))

		if err := r.processRound(ctx, rec, superseded, now, log, res); err != nil {
			res.Errors = append(res.Errors, err)
			pending++
			continue
		}
		r.handled[rec.ID] = struct{}{}
	}
	return pending
}

// processRound devolve erro só quando a rodada deve ser tentada de novo.
func (r *Recovery) processRound(ctx context.Context, rec store.RoundRecord, superseded bool, now time.Time, log *zap.Logger, res *Result) error {
	switch rec.Status {
	case store.RoundPayout:
		if err := r.store.CompleteRoundRecord(ctx, rec.ID); err != nil {
			return fmt.Errorf("complete payout round %s: %w", rec.ID, err)
		}
		res.PayoutCompleted++

	case store.RoundBetting:
		if !superseded && now.Sub(rec.CreatedAt) < r.cfg.StaleBetting {
			bets, err := r.store.LoadBetsForRound(ctx, rec.ID)
			if err != nil {
				// sem as apostas não dá para restaurar sem perder dinheiro
				return fmt.Errorf("load bets for %s: %w", rec.ID, err)
			}
			n, err := r.target.RestoreBettingRound(rec, bets)
			if err == nil {
				res.BettingRestored++
				res.BetsRestored += n
				log.Info("betting round restored", zap.Int("bets", n))
				return nil
			}
			res.Errors = append(res.Errors, fmt.Errorf("restore betting round %s: %w", rec.ID, err))
			if len(bets) > 0 {
				// rodada com apostas nunca é concluída aqui
				res.BettingUntouched++
				log.Warn("betting round has bets, left for reconciliation", zap.Int("bets", len(bets)), zap.Error(err))
				return nil
			}
		}
		if err := r.release(ctx, rec); err != nil {
			return err
		}
		res.BettingExpired++

	case store.RoundCombat:
		age := now.Sub(updatedOrCreated(rec))
		if !superseded && age <= r.cfg.StaleCombat {
			res.CombatUntouched++
			log.Warn("combat round left for reconciliation", zap.Duration("age", age))
			return nil
		}
		n, err := r.store.CountBetsForRound(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("count bets for %s: %w", rec.ID, err)
		}
		if n > 0 {
			res.CombatUntouched++
			log.Warn("combat round has bets, left for reconciliation", zap.Int("bets", n), zap.Bool("superseded", superseded))
			return nil
		}
		if err := r.release(ctx, rec); err != nil {
			return err
		}
		res.CombatReleased++
	}
	return nil
}

// release marca a rodada como concluída e devolve os lutadores à fila.
func (r *Recovery) release(ctx context.Context, rec store.RoundRecord) error {
	if err := r.store.CompleteRoundRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("complete round %s: %w", rec.ID, err)
	}
	r.target.RequeueFighters(rec.QueueEntries())
	return nil
}

func updatedOrCreated(rec store.RoundRecord) time.Time {
	if rec.UpdatedAt.IsZero() {
		return rec.CreatedAt
	}
	return rec.UpdatedAt
}
