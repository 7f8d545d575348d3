package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestSend_KeysByRound(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, nil)
	var published []string
	p.OnPublished = func(typ string) { published = append(published, typ) }

	ts := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	l := orchestrator.SinkListener{Sink: p}
	require.NoError(t, l.OnFighterEliminated(context.Background(), events.FighterEliminated{
		SlotIndex: 2, RoundID: "r9", FighterID: "f3", TurnNumber: 4, RemainingFighters: 5, Ts: ts,
	}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "r9", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(events.TypeFighterEliminated)}}, msg.Headers)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, events.TypeFighterEliminated, env.Type)
	assert.Equal(t, 2, env.SlotIndex)

	var ev events.FighterEliminated
	require.NoError(t, env.Decode(&ev))
	assert.Equal(t, "f3", ev.FighterID)
	assert.Equal(t, 5, ev.RemainingFighters)
	assert.Equal(t, []string{events.TypeFighterEliminated}, published)
}

func TestSend_PropagatesWriterError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, nil)
	called := false
	p.OnPublished = func(string) { called = true }

	err := orchestrator.SinkListener{Sink: p}.OnSlotRecycled(context.Background(), events.SlotRecycled{RoundID: "r1"})
	assert.EqualError(t, err, "broker down")
	assert.False(t, called)
}
