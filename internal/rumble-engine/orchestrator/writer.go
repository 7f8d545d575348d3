package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
)

type writeOp struct {
	op     string
	fn     func(ctx context.Context) error
	onDone func() // chamado só quando fn dá certo
	ack    chan struct{}
}

// writer executa escritas de persistência/liquidação fora do tick, uma por
// vez e na ordem de envio. Uma escrita que falha é refeita com backoff antes
// de passar à próxima, então create_round sempre chega antes dos updates da
// mesma rodada. attempts > 0 limita as tentativas; 0 tenta até fechar.
type writer struct {
	log      *zap.Logger
	timeout  time.Duration
	backoff  time.Duration
	maxDelay time.Duration
	attempts int
	onErr    func(op string)

	mu      sync.Mutex
	pending []writeOp
	closing bool
	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func newWriter(log *zap.Logger, timeout, backoff, maxDelay time.Duration, attempts int, onErr func(string)) *writer {
	w := &writer{
		log:      log,
		timeout:  timeout,
		backoff:  backoff,
		maxDelay: maxDelay,
		attempts: attempts,
		onErr:    onErr,
		signal:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.done)
	for {
		op, ok := w.next()
		if !ok {
			return
		}
		if op.fn != nil {
			w.exec(op)
		}
		if op.ack != nil {
			close(op.ack)
		}
	}
}

func (w *writer) next() (writeOp, bool) {
	for {
		w.mu.Lock()
		if len(w.pending) > 0 {
			op := w.pending[0]
			w.pending[0] = writeOp{}
			w.pending = w.pending[1:]
			w.mu.Unlock()
			return op, true
		}
		closing := w.closing
		w.mu.Unlock()
		if closing {
			return writeOp{}, false
		}
		<-w.signal
	}
}

func (w *writer) exec(op writeOp) {
	delay := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.try(op)
		if err == nil {
			if op.onDone != nil {
				op.onDone()
			}
			return
		}
		w.log.Warn("async write failed", zap.String("op", op.op), zap.Int("attempt", attempt), zap.Error(err))
		if w.onErr != nil {
			w.onErr(op.op)
		}
		if errors.Is(err, store.ErrRoundNotFound) || (w.attempts > 0 && attempt >= w.attempts) {
			w.log.Error("async write dropped", zap.String("op", op.op), zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		select {
		case <-w.stop:
			w.log.Error("async write dropped on shutdown", zap.String("op", op.op), zap.Error(err))
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > w.maxDelay {
			delay = w.maxDelay
		}
	}
}

func (w *writer) try(op writeOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return op.fn(ctx)
}

// push nunca bloqueia: o tick não espera o banco.
func (w *writer) push(op writeOp) bool {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return false
	}
	w.pending = append(w.pending, op)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) submit(op string, fn func(ctx context.Context) error) {
	w.submitThen(op, fn, nil)
}

func (w *writer) submitThen(op string, fn func(ctx context.Context) error, onDone func()) {
	if !w.push(writeOp{op: op, fn: fn, onDone: onDone}) {
		w.log.Warn("async write after close ignored", zap.String("op", op))
	}
}

// flush espera tudo que já foi enfileirado, incluindo as novas tentativas.
func (w *writer) flush() {
	ack := make(chan struct{})
	if !w.push(writeOp{ack: ack}) {
		return
	}
	<-ack
}

// close tenta cada escrita restante uma última vez e encerra.
func (w *writer) close() {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closing = true
	w.mu.Unlock()
	close(w.stop)
	select {
	case w.signal <- struct{}{}:
	default:
	}
	<-w.done
}
