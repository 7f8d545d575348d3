package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/recovery"
)

// Ticker é o que o Engine dirige a cada tick.
type Ticker interface {
	Tick(ctx context.Context)
}

// Engine junta recuperação e orquestração: enquanto a recuperação não termina
// ela roda antes do tick do orquestrador, e o orquestrador só anda depois que
// fila, jackpot e rodadas ativas foram carregados.
type Engine struct {
	Log      *zap.Logger
	Orch     Ticker
	Recovery *recovery.Recovery

	OnRecovery func(res recovery.Result) // métricas
	AfterTick  func(ctx context.Context) // ex.: foto dos slots no Redis
}

func New(log *zap.Logger, orch *orchestrator.Orchestrator, rec *recovery.Recovery) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Log: log, Orch: orch, Recovery: rec}
}

// Tick é o gatilho externo (cron/heartbeat) e também o do loop interno.
func (e *Engine) Tick(ctx context.Context) {
	if e.Recovery != nil && !e.Recovery.Done() {
		res := e.Recovery.Run(ctx)
		if res.Ran && e.OnRecovery != nil {
			e.OnRecovery(res)
		}
		if !e.Recovery.Ready() {
			e.Log.Warn("state recovery incomplete, orchestrator tick skipped")
			return
		}
	}
	e.Orch.Tick(ctx)
	if e.AfterTick != nil {
		e.AfterTick(ctx)
	}
}

// Run dispara Tick a cada interval até o contexto ser cancelado.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	e.Log.Info("engine loop started", zap.Duration("interval", interval))
	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.Log.Info("engine loop stopped")
			return ctx.Err()
		case <-t.C:
			e.Tick(ctx)
		}
	}
}
