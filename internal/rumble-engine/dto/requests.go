package dto

import "time"

// PlaceBetRequest aceita o valor em lamports ou em SOL (string decimal);
// lamports tem precedência.
type PlaceBetRequest struct {
	BettorID  string `json:"bettorId"`
	FighterID string `json:"fighterId"`
	Lamports  int64  `json:"lamports,omitempty"`
	AmountSOL string `json:"amountSol,omitempty"`
}

type JoinQueueRequest struct {
	FighterID   string `json:"fighterId"`
	AutoRequeue bool   `json:"autoRequeue"`
}

type ArmWindowRequest struct {
	RoundID  string    `json:"roundId"`
	Deadline time.Time `json:"deadline"`
}
