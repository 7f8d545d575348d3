package betting

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

// Mode define como o pote líquido é liquidado.
type Mode string

const (
	ModeWinnerTakeAll Mode = "winner_take_all"
	ModePodium        Mode = "podium"
)

var (
	ErrTooFewPlacements = errors.New("payout requires at least 3 ranked fighters")
	ErrUnknownMode      = errors.New("unknown payout mode")
)

// Fatias do pódio (1º/2º/3º) no modo podium.
var podiumBps = [3]uint64{7_000, 2_000, 1_000}

type WinnerPayout struct {
	BettorID  string `json:"bettorId"`
	FighterID string `json:"fighterId"`
	Place     int    `json:"place"`
	Returned  int64  `json:"returned"` // stake líquido devolvido
	Profit    int64  `json:"profit"`
}

func (w WinnerPayout) Total() int64 { return w.Returned + w.Profit }

type Sponsorship struct {
	FighterID string `json:"fighterId"`
	Amount    int64  `json:"amount"`
}

// PayoutResult é calculado uma vez por rodada.
type PayoutResult struct {
	RoundID          string            `json:"roundId"`
	Mode             Mode              `json:"mode"`
	WinnerID         string            `json:"winnerId"`
	NetPool          int64             `json:"netPool"`
	Pot              int64             `json:"pot"` // líquido em jogo (perdedores)
	WinnerPayouts    []WinnerPayout    `json:"winnerPayouts"`
	TreasuryCut      int64             `json:"treasuryCut"`
	Sponsorships     []Sponsorship     `json:"sponsorships"`
	Ichor            IchorDistribution `json:"ichorDistribution"`
	JackpotTriggered bool              `json:"jackpotTriggered"`
	JackpotWinner    string            `json:"jackpotWinner,omitempty"`
	JackpotAmount    int64             `json:"jackpotAmount"`
	JackpotBurned    int64             `json:"jackpotBurned"`
}

// PayoutFor soma o que um apostador recebe (0 para quem perdeu).
func (r PayoutResult) PayoutFor(bettorID string) int64 {
	var t int64
	for _, w := range r.WinnerPayouts {
		if w.BettorID == bettorID {
			t += w.Total()
		}
	}
	return t
}

type CalculatorConfig struct {
	Mode   Mode
	Rates  Rates
	Reward RewardConfig
}

func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{Mode: ModeWinnerTakeAll, Rates: DefaultRates(), Reward: DefaultRewardConfig()}
}

// Calculator liquida rodadas e mantém o pool do jackpot entre elas.
// Não é seguro para uso concorrente.
type Calculator struct {
	cfg     CalculatorConfig
	jackpot *Jackpot
}

func NewCalculator(cfg CalculatorConfig, entropy Entropy) (*Calculator, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeWinnerTakeAll
	}
	if cfg.Mode != ModeWinnerTakeAll && cfg.Mode != ModePodium {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, cfg.Mode)
	}
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Reward.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		cfg:     cfg,
		jackpot: NewJackpot(0, cfg.Reward.ShowerOdds, cfg.Reward.ShowerWinnerBps, entropy),
	}, nil
}

func (c *Calculator) Jackpot() *Jackpot { return c.jackpot }

// RestoreJackpot recoloca o saldo acumulado (recuperação a frio).
func (c *Calculator) RestoreJackpot(pool int64) { c.jackpot.pool = pool }

// Calculate liquida o pool com o resultado da luta. Só altera o jackpot se
// todo o cálculo terminar sem erro, então pode ser repetido após falha.
func (c *Calculator) Calculate(pool *Pool, result combat.Result) (PayoutResult, error) {
	if len(result.Placements) < 3 {
		return PayoutResult{}, ErrTooFewPlacements
	}
	if err := result.Validate(); err != nil {
		return PayoutResult{}, err
	}
	placements := append([]combat.Placement(nil), result.Placements...)
	sort.Slice(placements, func(i, j int) bool { return placements[i].Place < placements[j].Place })
	for _, p := range placements {
		if !pool.HasFighter(p.FighterID) {
			return PayoutResult{}, fmt.Errorf("placement %s: %w", p.FighterID, ErrUnknownFighter)
		}
	}

	out := PayoutResult{
		RoundID:  pool.RoundID,
		Mode:     c.cfg.Mode,
		WinnerID: result.WinnerID,
		NetPool:  pool.NetPool,
	}
	switch c.cfg.Mode {
	case ModePodium:
		c.settlePodium(pool, placements, &out)
	default:
		c.settleWinnerTakeAll(pool, &out)
	}

	for _, f := range pool.fighters {
		if amt := pool.SponsorshipByFighter[f]; amt > 0 {
			out.Sponsorships = append(out.Sponsorships, Sponsorship{FighterID: f, Amount: amt})
		}
	}

	winnerBackers := pool.backers(result.WinnerID)
	out.Ichor = distributeIchor(c.cfg.Reward, placements, winnerBackers)

	jp, err := c.jackpot.evaluate(out.Ichor.ShowerContribution, winnerBackers)
	if err != nil {
		return PayoutResult{}, err
	}
	c.jackpot.apply(jp)
	out.JackpotTriggered = jp.triggered
	out.JackpotWinner = jp.winner
	out.JackpotAmount = jp.amount
	out.JackpotBurned = jp.burned
	return out, nil
}

// settleWinnerTakeAll: pote = líquido de todos menos o vencedor; a
// tesouraria retém TreasuryBps e o resto vai aos apostadores do vencedor
// proporcionalmente. Poeira de arredondamento fica com a tesouraria.
func (c *Calculator) settleWinnerTakeAll(pool *Pool, out *PayoutResult) {
	winnerNet := pool.NetOn(out.WinnerID)
	pot := pool.NetPool - winnerNet
	out.Pot = pot
	treasury := int64(mulDiv(uint64(pot), c.cfg.Rates.TreasuryBps, BpsDenominator))
	distributable := pot - treasury

	paid := c.payBackers(pool, out.WinnerID, 1, distributable, out)
	out.TreasuryCut = treasury + distributable - paid
}

// settlePodium: perdedores são os colocados do 4º em diante; o distribuível
// é dividido 70/20/10 entre apostadores de 1º/2º/3º. Colocação sem
// apostadores perde a fatia para a tesouraria.
func (c *Calculator) settlePodium(pool *Pool, placements []combat.Placement, out *PayoutResult) {
	var losers int64
	for _, p := range placements[3:] {
		losers += pool.NetOn(p.FighterID)
	}
	out.Pot = losers
	treasury := int64(mulDiv(uint64(losers), c.cfg.Rates.TreasuryBps, BpsDenominator))
	distributable := losers - treasury

	var paid int64
	for i := 0; i < 3; i++ {
		alloc := int64(mulDiv(uint64(distributable), podiumBps[i], BpsDenominator))
		paid += c.payBackers(pool, placements[i].FighterID, placements[i].Place, alloc, out)
	}
	out.TreasuryCut = treasury + distributable - paid
}

// payBackers devolve o stake de quem apostou no lutador e divide alloc
// proporcionalmente. Retorna quanto de alloc foi efetivamente pago.
func (c *Calculator) payBackers(pool *Pool, fighterID string, place int, alloc int64, out *PayoutResult) int64 {
	backers := pool.backers(fighterID)
	net := pool.NetOn(fighterID)
	if net <= 0 {
		return 0
	}
	var paid int64
	for _, s := range backers {
		profit := int64(mulDiv(uint64(alloc), uint64(s.amount), uint64(net)))
		paid += profit
		out.WinnerPayouts = append(out.WinnerPayouts, WinnerPayout{
			BettorID:  s.bettorID,
			FighterID: fighterID,
			Place:     place,
			Returned:  s.amount,
			Profit:    profit,
		})
	}
	return paid
}
