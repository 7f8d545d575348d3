package queue

import (
	"time"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

type State string

const (
	StateIdle    State = "idle"
	StateBetting State = "betting"
	StateCombat  State = "combat"
	StatePayout  State = "payout"
)

// Entry é um lutador aguardando na fila. Ordenação: (Priority, JoinedAt).
type Entry struct {
	FighterID   string    `json:"fighterId"`
	JoinedAt    time.Time `json:"joinedAt"`
	AutoRequeue bool      `json:"autoRequeue"`
	Priority    int       `json:"priority"`
}

// Slot é um dos N pipelines de rodada. ID muda a cada repopulação.
type Slot struct {
	ID              string         `json:"id"`
	Index           int            `json:"slotIndex"`
	State           State          `json:"state"`
	Fighters        []string       `json:"fighters"`
	BettingDeadline *time.Time     `json:"bettingDeadline,omitempty"`
	CombatStartedAt *time.Time     `json:"combatStartedAt,omitempty"`
	PayoutStartedAt *time.Time     `json:"payoutStartedAt,omitempty"`
	Result          *combat.Result `json:"result,omitempty"`
}

func (s *Slot) clone() Slot {
	c := *s
	c.Fighters = append([]string(nil), s.Fighters...)
	return c
}

// Transition registra uma mudança de estado feita por AdvanceSlots.
type Transition struct {
	Slot    int
	RoundID string
	From    State
	To      State
}
