package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/stats-worker/repository"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

// MessageReader é o pedaço do *kafka.Reader que o processor usa.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Repo é onde o histórico dos lutadores é somado.
type Repo interface {
	ApplyResult(ctx context.Context, roundID string, rows []repository.ResultRow) (int, error)
	ApplyIchor(ctx context.Context, roundID string, mined map[string]int64) (int, error)
}

// Processor consome rumble_events e mantém o histórico de cada lutador.
// Só rumble_complete e payout_complete mudam o histórico; o resto é ignorado.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	DLQ    MessageWriter // mensagens que não decodificam; opcional

	RetryDelay time.Duration

	OnConsumed func()             // métricas (counter++)
	OnApplied  func(string, int)  // tipo do evento, lutadores atualizados
	OnError    func(stage string) // métricas por fase
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run roda o loop de consumo até o contexto ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(delay)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Falhas de banco são logadas e contadas; a
// tabela de rodadas aplicadas torna o reprocessamento seguro.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.Log.Warn("invalid message", zap.Error(err), zap.Int64("offset", m.Offset))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}

	var (
		n   int
		err error
	)
	switch env.Type {
	case events.TypeRumbleComplete:
		var ev events.RumbleComplete
		if err = env.Decode(&ev); err != nil {
			break
		}
		n, err = p.Repo.ApplyResult(ctx, ev.RoundID, ResultRows(ev.Result))
	case events.TypePayoutComplete:
		var ev events.PayoutComplete
		if err = env.Decode(&ev); err != nil {
			break
		}
		mined := FighterIchor(ev.Payout)
		if len(mined) == 0 {
			return
		}
		n, err = p.Repo.ApplyIchor(ctx, ev.RoundID, mined)
	default:
		return
	}
	if err != nil {
		p.Log.Warn("apply fighter stats failed",
			zap.String("type", env.Type), zap.String("round_id", env.RoundID), zap.Error(err))
		p.fail("apply")
		return
	}
	p.Log.Debug("fighter stats applied", zap.String("type", env.Type), zap.String("round_id", env.RoundID), zap.Int("fighters", n))
	if p.OnApplied != nil {
		p.OnApplied(env.Type, n)
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(append([]kafka.Header(nil), m.Headers...),
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		),
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

// ResultRows achata o resultado de uma rodada em linhas por lutador. A
// colocação vem de Placements; o dano vem do estado final de cada lutador.
func ResultRows(r events.RumbleResult) []repository.ResultRow {
	place := make(map[string]int, len(r.Placements))
	for _, pl := range r.Placements {
		place[pl.FighterID] = pl.Place
	}
	rows := make([]repository.ResultRow, 0, len(r.Fighters))
	for _, f := range r.Fighters {
		p, ok := place[f.ID]
		if !ok {
			p = f.Placement
		}
		rows = append(rows, repository.ResultRow{
			FighterID:   f.ID,
			Place:       p,
			DamageDealt: f.DamageDealt,
			DamageTaken: f.DamageTaken,
		})
	}
	return rows
}

// FighterIchor soma os prêmios de lutador por destinatário.
func FighterIchor(p *events.Payout) map[string]int64 {
	if p == nil {
		return nil
	}
	out := make(map[string]int64)
	for _, a := range p.IchorAwards {
		if a.Kind == "fighter" && a.Amount > 0 {
			out[a.Recipient] += a.Amount
		}
	}
	return out
}
