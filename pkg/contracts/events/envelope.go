package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope é o formato comum publicado no Kafka e no Redis Pub/Sub.
// Data carrega um dos eventos deste pacote, conforme Type.
type Envelope struct {
	Type      string          `json:"type"`
	SlotIndex int             `json:"slotIndex"`
	RoundID   string          `json:"roundId"`
	Ts        time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

func NewEnvelope(typ string, slot int, roundID string, ts time.Time, v any) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return Envelope{Type: typ, SlotIndex: slot, RoundID: roundID, Ts: ts, Data: b}, nil
}

// Decode preenche v com o payload.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}
