package betting

import (
	"errors"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

// OneIchor em unidades mínimas (9 casas decimais).
const OneIchor int64 = 1_000_000_000

var ErrInvalidRewardConfig = errors.New("invalid ichor reward split")

// RewardConfig é a divisão de ICHOR da temporada.
type RewardConfig struct {
	RoundReward     int64
	BettorBps       uint64
	FighterBps      uint64
	ShowerBps       uint64
	FirstBps        uint64 // fatias da parte dos lutadores
	SecondBps       uint64
	ThirdBps        uint64
	ShowerBonus     int64 // somado ao jackpot a cada rodada
	ShowerOdds      int64
	ShowerWinnerBps uint64
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		RoundReward:     OneIchor,
		BettorBps:       1_000,
		FighterBps:      8_000,
		ShowerBps:       1_000,
		FirstBps:        4_000,
		SecondBps:       2_500,
		ThirdBps:        1_500,
		ShowerBonus:     200_000_000,
		ShowerOdds:      500,
		ShowerWinnerBps: 9_000,
	}
}

func (c RewardConfig) Validate() error {
	switch {
	case c.RoundReward < 0 || c.ShowerBonus < 0:
		return ErrInvalidRewardConfig
	case c.BettorBps+c.FighterBps+c.ShowerBps != BpsDenominator:
		return ErrInvalidRewardConfig
	case c.FirstBps+c.SecondBps+c.ThirdBps > BpsDenominator:
		return ErrInvalidRewardConfig
	case c.ShowerOdds < 1 || c.ShowerWinnerBps > BpsDenominator:
		return ErrInvalidRewardConfig
	}
	return nil
}

// Tipos de prêmio ICHOR.
const (
	AwardBettor  = "bettor"
	AwardFighter = "fighter"
)

type IchorAward struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	Place     int    `json:"place,omitempty"`
	Amount    int64  `json:"amount"`
}

// IchorDistribution: RoundReward == soma(Bettors) + soma(Fighters) +
// (ShowerContribution - ShowerBonus).
type IchorDistribution struct {
	RoundReward        int64        `json:"roundReward"`
	Bettors            []IchorAward `json:"bettors"`
	Fighters           []IchorAward `json:"fighters"`
	ShowerContribution int64        `json:"showerContribution"`
}

func (d IchorDistribution) Total() int64 {
	var t int64
	for _, a := range d.Bettors {
		t += a.Amount
	}
	for _, a := range d.Fighters {
		t += a.Amount
	}
	return t
}

// distributeIchor divide a recompensa da rodada. placements deve estar
// ordenado por colocação e ter pelo menos 3 entradas.
func distributeIchor(cfg RewardConfig, placements []combat.Placement, winnerBackers []stake) IchorDistribution {
	r := uint64(cfg.RoundReward)
	bettorPool := mulDiv(r, cfg.BettorBps, BpsDenominator)
	fighterPool := mulDiv(r, cfg.FighterBps, BpsDenominator)
	shower := r - bettorPool - fighterPool

	d := IchorDistribution{RoundReward: cfg.RoundReward}

	shares := []uint64{
		mulDiv(fighterPool, cfg.FirstBps, BpsDenominator),
		mulDiv(fighterPool, cfg.SecondBps, BpsDenominator),
		mulDiv(fighterPool, cfg.ThirdBps, BpsDenominator),
	}
	rest := fighterPool - shares[0] - shares[1] - shares[2]
	if tail := uint64(len(placements) - 3); tail > 0 {
		each := rest / tail
		shares[0] += rest - each*tail
		for i := uint64(0); i < tail; i++ {
			shares = append(shares, each)
		}
	} else {
		shares[0] += rest
	}
	for i, p := range placements {
		d.Fighters = append(d.Fighters, IchorAward{
			Recipient: p.FighterID,
			Kind:      AwardFighter,
			Place:     p.Place,
			Amount:    int64(shares[i]),
		})
	}

	var total int64
	for _, s := range winnerBackers {
		total += s.amount
	}
	if total > 0 {
		var paid uint64
		for _, s := range winnerBackers {
			amt := mulDiv(bettorPool, uint64(s.amount), uint64(total))
			paid += amt
			d.Bettors = append(d.Bettors, IchorAward{Recipient: s.bettorID, Kind: AwardBettor, Amount: int64(amt)})
		}
		shower += bettorPool - paid
	} else {
		shower += bettorPool
	}
	d.ShowerContribution = int64(shower) + cfg.ShowerBonus
	return d
}
