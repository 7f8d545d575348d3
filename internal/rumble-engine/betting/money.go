package betting

import (
	"errors"
	"math/bits"
)

// BpsDenominator: 10_000 bps = 100%.
const BpsDenominator = 10_000

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidRates  = errors.New("fee rates exceed 100%")
)

// Rates são as taxas fixas do pool, em bps.
type Rates struct {
	AdminFeeBps    uint64
	SponsorshipBps uint64
	TreasuryBps    uint64
}

// DefaultRates: 1% admin, 5% patrocínio, 10% tesouraria.
func DefaultRates() Rates {
	return Rates{AdminFeeBps: 100, SponsorshipBps: 500, TreasuryBps: 1_000}
}

func (r Rates) Validate() error {
	if r.AdminFeeBps+r.SponsorshipBps > BpsDenominator || r.TreasuryBps > BpsDenominator {
		return ErrInvalidRates
	}
	return nil
}

// mulDiv calcula floor(a*b/d) em 128 bits. Exige b <= d (ou resultado <= a),
// o que vale para bps e para partes proporcionais de um total.
func mulDiv(a, b, d uint64) uint64 {
	q, _ := mulDivRem(a, b, d)
	return q
}

// mulDivRound arredonda para o inteiro mais próximo (meio para cima).
func mulDivRound(a, b, d uint64) uint64 {
	q, r := mulDivRem(a, b, d)
	if r >= d-r {
		q++
	}
	return q
}

func mulDivRem(a, b, d uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		panic("betting: mulDiv overflow")
	}
	return bits.Div64(hi, lo, d)
}

// SplitStake divide uma aposta bruta em taxa admin, patrocínio e líquido.
// Taxa e patrocínio são arredondados ao mais próximo; o líquido recebe o
// resto, então fee + sponsorship + net == gross sempre.
func SplitStake(gross int64, rates Rates) (fee, sponsorship, net int64, err error) {
	if gross <= 0 {
		return 0, 0, 0, ErrInvalidAmount
	}
	if err := rates.Validate(); err != nil {
		return 0, 0, 0, err
	}
	g := uint64(gross)
	f := mulDivRound(g, rates.AdminFeeBps, BpsDenominator)
	s := mulDivRound(g, rates.SponsorshipBps, BpsDenominator)
	if f+s > g {
		// só acontece com taxas somando ~100% e valores mínimos
		s = g - f
	}
	return int64(f), int64(s), int64(g - f - s), nil
}
