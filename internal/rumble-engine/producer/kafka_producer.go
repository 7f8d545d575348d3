package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

// MessageWriter é o pedaço do *kafka.Writer que o publisher usa.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher grava cada evento do ciclo de vida no tópico de eventos.
// A chave é o round id, então os eventos de uma rodada ficam em ordem na
// mesma partição.
type KafkaPublisher struct {
	Writer  MessageWriter
	Log     *zap.Logger
	Timeout time.Duration

	OnPublished func(eventType string) // métricas
}

func NewKafkaPublisher(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{Writer: w, Log: log, Timeout: 2 * time.Second}
}

func (p *KafkaPublisher) Send(ctx context.Context, env events.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(env.RoundID),
		Value: value,
		Time:  env.Ts,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
		},
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	if p.OnPublished != nil {
		p.OnPublished(env.Type)
	}
	p.Log.Debug("published rumble event", zap.String("type", env.Type), zap.String("round_id", env.RoundID))
	return nil
}
