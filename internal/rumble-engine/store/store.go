package store

import (
	"context"
	"errors"
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
)

var ErrRoundNotFound = errors.New("round not found")

type RoundStatus string

const (
	RoundBetting  RoundStatus = "betting"
	RoundCombat   RoundStatus = "combat"
	RoundPayout   RoundStatus = "payout"
	RoundComplete RoundStatus = "complete"
)

// Active indica se a rodada ainda precisa de recuperação após restart.
func (s RoundStatus) Active() bool {
	return s == RoundBetting || s == RoundCombat || s == RoundPayout
}

// RoundRecord é o registro durável de uma rodada.
type RoundRecord struct {
	ID              string        `json:"id"`
	SlotIndex       int           `json:"slotIndex"`
	Status          RoundStatus   `json:"status"`
	Fighters        []string      `json:"fighters"`
	Entries         []queue.Entry `json:"entries,omitempty"`
	BettingDeadline *time.Time    `json:"bettingDeadline,omitempty"`
	WinnerID        string        `json:"winnerId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// QueueEntries devolve uma entrada de fila por lutador do roster, com as
// flags gravadas quando existem.
func (r RoundRecord) QueueEntries() []queue.Entry {
	known := make(map[string]queue.Entry, len(r.Entries))
	for _, e := range r.Entries {
		known[e.FighterID] = e
	}
	out := make([]queue.Entry, 0, len(r.Fighters))
	for _, id := range r.Fighters {
		e, ok := known[id]
		if !ok {
			e = queue.Entry{FighterID: id}
		}
		out = append(out, e)
	}
	return out
}

// Store é o colaborador de persistência do motor. Todas as chamadas podem
// falhar; quem chama decide se tenta de novo no próximo tick.
type Store interface {
	LoadQueueState(ctx context.Context) ([]queue.Entry, error)
	SaveQueueEntry(ctx context.Context, e queue.Entry) error
	RemoveQueueEntry(ctx context.Context, fighterID string) error

	CreateRound(ctx context.Context, r RoundRecord) error
	LoadActiveRounds(ctx context.Context) ([]RoundRecord, error)
	UpdateRoundStatus(ctx context.Context, roundID string, status RoundStatus) error
	UpdateBettingDeadline(ctx context.Context, roundID string, deadline time.Time) error
	SetRoundWinner(ctx context.Context, roundID, winnerID string) error
	// CompleteRoundRecord é idempotente.
	CompleteRoundRecord(ctx context.Context, roundID string) error

	SaveBet(ctx context.Context, b betting.Bet) error
	LoadBetsForRound(ctx context.Context, roundID string) ([]betting.Bet, error)
	CountBetsForRound(ctx context.Context, roundID string) (int, error)

	SavePayout(ctx context.Context, p betting.PayoutResult) error
	LoadJackpotPool(ctx context.Context) (int64, error)
	SaveJackpotPool(ctx context.Context, amount int64) error
}
