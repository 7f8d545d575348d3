package dto

import (
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

// OpenRoundRequest pede à autoridade de liquidação que abra a janela de apostas.
type OpenRoundRequest struct {
	SlotIndex int      `json:"slotIndex"`
	RoundID   string   `json:"roundId"`
	Fighters  []string `json:"fighters"`
}

// OpenRoundResponse traz o prazo autoritativo.
type OpenRoundResponse struct {
	BettingDeadline time.Time `json:"bettingDeadline"`
}

type ResultRequest struct {
	SlotIndex  int                `json:"slotIndex"`
	RoundID    string             `json:"roundId"`
	WinnerID   string             `json:"winnerId"`
	Placements []combat.Placement `json:"placements"`
	TotalTurns int                `json:"totalTurns"`
}

type PayoutRequest struct {
	SlotIndex int                  `json:"slotIndex"`
	Payout    betting.PayoutResult `json:"payout"`
}
