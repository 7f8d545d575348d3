package betting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownFighter = errors.New("fighter not in round roster")
	ErrMissingBettor  = errors.New("bettor id required")
	ErrBetMismatch    = errors.New("recorded bet amounts do not add up")
	ErrBettingClosed  = errors.New("betting is closed for this slot")
)

// Bet é imutável depois de registrada no pool.
type Bet struct {
	ID                string    `json:"id"`
	RoundID           string    `json:"roundId"`
	BettorID          string    `json:"bettorId"`
	FighterID         string    `json:"fighterId"`
	GrossAmount       int64     `json:"grossAmount"`
	FeeAmount         int64     `json:"feeAmount"`
	SponsorshipAmount int64     `json:"sponsorshipAmount"`
	NetAmount         int64     `json:"netAmount"`
	PlacedAt          time.Time `json:"placedAt"`
}

// Pool é o livro de apostas de uma rodada. Valores em unidades mínimas
// (lamports). Não é seguro para uso concorrente; o orquestrador serializa o acesso.
type Pool struct {
	RoundID              string
	Bets                 []Bet
	TotalGross           int64
	FeesCollected        int64
	SponsorshipByFighter map[string]int64
	NetByFighter         map[string]int64
	NetPool              int64

	fighters []string
	roster   map[string]struct{}
	rates    Rates
}

func NewPool(roundID string, fighters []string, rates Rates) *Pool {
	p := &Pool{
		RoundID:              roundID,
		SponsorshipByFighter: make(map[string]int64, len(fighters)),
		NetByFighter:         make(map[string]int64, len(fighters)),
		fighters:             append([]string(nil), fighters...),
		roster:               make(map[string]struct{}, len(fighters)),
		rates:                rates,
	}
	for _, f := range fighters {
		p.roster[f] = struct{}{}
	}
	return p
}

// Fighters devolve o roster na ordem original.
func (p *Pool) Fighters() []string { return append([]string(nil), p.fighters...) }

func (p *Pool) HasFighter(id string) bool {
	_, ok := p.roster[id]
	return ok
}

// Place registra uma nova aposta aplicando as taxas fixas.
func (p *Pool) Place(bettorID, fighterID string, gross int64, at time.Time) (Bet, error) {
	b, err := p.Prepare(bettorID, fighterID, gross, at)
	if err != nil {
		return Bet{}, err
	}
	p.append(b)
	return b, nil
}

// Prepare valida e monta a aposta sem alterar o pool; o chamador persiste e
// depois registra com Restore.
func (p *Pool) Prepare(bettorID, fighterID string, gross int64, at time.Time) (Bet, error) {
	if bettorID == "" {
		return Bet{}, ErrMissingBettor
	}
	if !p.HasFighter(fighterID) {
		return Bet{}, ErrUnknownFighter
	}
	fee, spon, net, err := SplitStake(gross, p.rates)
	if err != nil {
		return Bet{}, err
	}
	return Bet{
		ID:                uuid.NewString(),
		RoundID:           p.RoundID,
		BettorID:          bettorID,
		FighterID:         fighterID,
		GrossAmount:       gross,
		FeeAmount:         fee,
		SponsorshipAmount: spon,
		NetAmount:         net,
		PlacedAt:          at,
	}, nil
}

// Restore recoloca no pool uma aposta já persistida (recuperação a frio).
// Se só o bruto foi gravado, as taxas são recalculadas.
func (p *Pool) Restore(b Bet) error {
	if !p.HasFighter(b.FighterID) {
		return fmt.Errorf("restore bet %s: %w", b.ID, ErrUnknownFighter)
	}
	if b.FeeAmount == 0 && b.SponsorshipAmount == 0 && b.NetAmount == 0 {
		fee, spon, net, err := SplitStake(b.GrossAmount, p.rates)
		if err != nil {
			return fmt.Errorf("restore bet %s: %w", b.ID, err)
		}
		b.FeeAmount, b.SponsorshipAmount, b.NetAmount = fee, spon, net
	}
	if b.GrossAmount <= 0 || b.FeeAmount+b.SponsorshipAmount+b.NetAmount != b.GrossAmount {
		return fmt.Errorf("restore bet %s: %w", b.ID, ErrBetMismatch)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.RoundID = p.RoundID
	p.append(b)
	return nil
}

func (p *Pool) append(b Bet) {
	p.Bets = append(p.Bets, b)
	p.TotalGross += b.GrossAmount
	p.FeesCollected += b.FeeAmount
	p.SponsorshipByFighter[b.FighterID] += b.SponsorshipAmount
	p.NetByFighter[b.FighterID] += b.NetAmount
	p.NetPool += b.NetAmount
}

func (p *Pool) HasBets() bool { return len(p.Bets) > 0 }

// NetOn é a exposição líquida no lutador.
func (p *Pool) NetOn(fighterID string) int64 { return p.NetByFighter[fighterID] }

// stake agrega o líquido de um apostador em um lutador.
type stake struct {
	bettorID string
	amount   int64
}

// backers agrega por apostador, na ordem da primeira aposta.
func (p *Pool) backers(fighterID string) []stake {
	idx := map[string]int{}
	var out []stake
	for _, b := range p.Bets {
		if b.FighterID != fighterID {
			continue
		}
		if i, ok := idx[b.BettorID]; ok {
			out[i].amount += b.NetAmount
			continue
		}
		idx[b.BettorID] = len(out)
		out = append(out, stake{bettorID: b.BettorID, amount: b.NetAmount})
	}
	return out
}
