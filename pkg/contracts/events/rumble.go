package events

import "time"

// Tipos de evento do ciclo de vida de uma rodada (campo "type" do Envelope).
const (
	TypeBettingOpen       = "betting_open"
	TypeCombatStarted     = "combat_started"
	TypeTurnResolved      = "turn_resolved"
	TypeFighterEliminated = "fighter_eliminated"
	TypeRumbleComplete    = "rumble_complete"
	TypePayoutComplete    = "payout_complete"
	TypeIchorShower       = "ichor_shower"
	TypeSlotRecycled      = "slot_recycled"
)

type BettingOpen struct {
	SlotIndex int        `json:"slotIndex"`
	RoundID   string     `json:"roundId"`
	Fighters  []string   `json:"fighters"`
	Deadline  *time.Time `json:"deadline,omitempty"` // nil até a janela ser armada
	Ts        time.Time  `json:"ts"`
}

type FighterState struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	HP               int    `json:"hp"`
	MaxHP            int    `json:"maxHp"`
	Meter            int    `json:"meter"`
	DamageDealt      int    `json:"damageDealt"`
	DamageTaken      int    `json:"damageTaken"`
	EliminatedOnTurn int    `json:"eliminatedOnTurn,omitempty"`
	Placement        int    `json:"placement"`
}

type CombatStarted struct {
	SlotIndex int            `json:"slotIndex"`
	RoundID   string         `json:"roundId"`
	Fighters  []FighterState `json:"fighters"`
	Ts        time.Time      `json:"ts"`
}

type Pairing struct {
	FighterA  string `json:"fighterA"`
	FighterB  string `json:"fighterB"`
	MoveA     string `json:"moveA"`
	MoveB     string `json:"moveB"`
	DamageToA int    `json:"damageToA"`
	DamageToB int    `json:"damageToB"`
}

type Turn struct {
	TurnNumber   int       `json:"turnNumber"`
	Pairings     []Pairing `json:"pairings"`
	Eliminations []string  `json:"eliminations"`
	Bye          string    `json:"bye,omitempty"`
}

type TurnResolved struct {
	SlotIndex         int       `json:"slotIndex"`
	RoundID           string    `json:"roundId"`
	Turn              Turn      `json:"turn"`
	RemainingFighters int       `json:"remainingFighters"`
	Ts                time.Time `json:"ts"`
}

type FighterEliminated struct {
	SlotIndex         int       `json:"slotIndex"`
	RoundID           string    `json:"roundId"`
	FighterID         string    `json:"fighterId"`
	TurnNumber        int       `json:"turnNumber"`
	RemainingFighters int       `json:"remainingFighters"`
	Ts                time.Time `json:"ts"`
}

type Placement struct {
	FighterID string `json:"fighterId"`
	Place     int    `json:"place"`
}

type RumbleResult struct {
	WinnerID   string         `json:"winnerId"`
	Placements []Placement    `json:"placements"`
	Fighters   []FighterState `json:"fighters"`
	TotalTurns int            `json:"totalTurns"`
}

type RumbleComplete struct {
	SlotIndex int          `json:"slotIndex"`
	RoundID   string       `json:"roundId"`
	Result    RumbleResult `json:"result"`
	Ts        time.Time    `json:"ts"`
}

// Valores monetários em unidades mínimas (lamports / unidades de ICHOR).
type WinnerPayout struct {
	BettorID  string `json:"bettorId"`
	FighterID string `json:"fighterId"`
	Place     int    `json:"place"`
	Returned  int64  `json:"returned"`
	Profit    int64  `json:"profit"`
}

type Sponsorship struct {
	FighterID string `json:"fighterId"`
	Amount    int64  `json:"amount"`
}

type IchorAward struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"` // "bettor" | "fighter"
	Place     int    `json:"place,omitempty"`
	Amount    int64  `json:"amount"`
}

type Payout struct {
	Mode               string         `json:"mode"`
	WinnerID           string         `json:"winnerId"`
	NetPool            int64          `json:"netPool"`
	Pot                int64          `json:"pot"`
	WinnerPayouts      []WinnerPayout `json:"winnerPayouts"`
	TreasuryCut        int64          `json:"treasuryCut"`
	Sponsorships       []Sponsorship  `json:"sponsorships"`
	IchorRoundReward   int64          `json:"ichorRoundReward"`
	IchorAwards        []IchorAward   `json:"ichorAwards"`
	ShowerContribution int64          `json:"showerContribution"`
	JackpotTriggered   bool           `json:"jackpotTriggered"`
	JackpotWinner      string         `json:"jackpotWinner,omitempty"`
	JackpotAmount      int64          `json:"jackpotAmount"`
}

type PayoutComplete struct {
	SlotIndex int       `json:"slotIndex"`
	RoundID   string    `json:"roundId"`
	Payout    *Payout   `json:"payout,omitempty"` // nil quando o payout foi pulado
	Skipped   string    `json:"skipped,omitempty"`
	Ts        time.Time `json:"ts"`
}

type IchorShower struct {
	SlotIndex int       `json:"slotIndex"`
	RoundID   string    `json:"roundId"`
	WinnerID  string    `json:"winnerId"`
	Amount    int64     `json:"amount"`
	Burned    int64     `json:"burned"`
	Ts        time.Time `json:"ts"`
}

type SlotRecycled struct {
	SlotIndex        int       `json:"slotIndex"`
	PreviousRoundID  string    `json:"previousRoundId"`
	PreviousFighters []string  `json:"previousFighters"`
	RoundID          string    `json:"roundId"`
	Requeued         []string  `json:"requeued,omitempty"`
	Ts               time.Time `json:"ts"`
}
