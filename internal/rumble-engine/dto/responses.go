package dto

import (
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
)

type BetResponse struct {
	BetID               string    `json:"betId"`
	RoundID             string    `json:"roundId"`
	FighterID           string    `json:"fighterId"`
	GrossLamports       int64     `json:"grossLamports"`
	FeeLamports         int64     `json:"feeLamports"`
	SponsorshipLamports int64     `json:"sponsorshipLamports"`
	NetLamports         int64     `json:"netLamports"`
	NetSOL              string    `json:"netSol"`
	PlacedAt            time.Time `json:"placedAt"`
}

func NewBetResponse(b betting.Bet) BetResponse {
	return BetResponse{
		BetID:               b.ID,
		RoundID:             b.RoundID,
		FighterID:           b.FighterID,
		GrossLamports:       b.GrossAmount,
		FeeLamports:         b.FeeAmount,
		SponsorshipLamports: b.SponsorshipAmount,
		NetLamports:         b.NetAmount,
		NetSOL:              Display(b.NetAmount),
		PlacedAt:            b.PlacedAt,
	}
}

type QueueEntryResponse struct {
	FighterID   string    `json:"fighterId"`
	JoinedAt    time.Time `json:"joinedAt"`
	AutoRequeue bool      `json:"autoRequeue"`
	Position    int       `json:"position"`
}

func NewQueueResponse(entries []queue.Entry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for i, e := range entries {
		out = append(out, QueueEntryResponse{FighterID: e.FighterID, JoinedAt: e.JoinedAt, AutoRequeue: e.AutoRequeue, Position: i + 1})
	}
	return out
}

// SlotResponse é a visão de um slot para clientes; valores também em SOL.
type SlotResponse struct {
	orchestrator.SlotView
	NetPoolSOL string `json:"netPoolSol,omitempty"`
}

type SlotsResponse struct {
	Slots        []SlotResponse `json:"slots"`
	QueueLength  int            `json:"queueLength"`
	JackpotPool  int64          `json:"jackpotPool"`
	JackpotIchor string         `json:"jackpotIchor"`
	At           time.Time      `json:"at"`
}

func NewSlotResponse(v orchestrator.SlotView) SlotResponse {
	r := SlotResponse{SlotView: v}
	if v.Pool != nil {
		r.NetPoolSOL = Display(v.Pool.NetPool)
	}
	return r
}

func NewSlotsResponse(s orchestrator.Snapshot) SlotsResponse {
	out := SlotsResponse{
		QueueLength:  len(s.Queue),
		JackpotPool:  s.JackpotPool,
		JackpotIchor: Display(s.JackpotPool),
		At:           s.At,
	}
	for _, v := range s.Slots {
		out.Slots = append(out.Slots, NewSlotResponse(v))
	}
	return out
}

type AbortResponse struct {
	Requeued []string `json:"requeued"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
