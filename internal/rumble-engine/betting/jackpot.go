package betting

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Entropy é a fonte de aleatoriedade do sorteio do jackpot.
// Em produção é crypto/rand; testes injetam valores fixos.
type Entropy interface {
	Int63n(n int64) (int64, error)
}

type cryptoEntropy struct{}

// CryptoEntropy usa crypto/rand; nunca um PRNG com semente.
func CryptoEntropy() Entropy { return cryptoEntropy{} }

func (cryptoEntropy) Int63n(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// Jackpot ("Ichor Shower") acumula ICHOR entre rodadas.
type Jackpot struct {
	pool      int64
	odds      int64
	winnerBps uint64
	entropy   Entropy
}

func NewJackpot(initial, odds int64, winnerBps uint64, entropy Entropy) *Jackpot {
	if entropy == nil {
		entropy = CryptoEntropy()
	}
	if odds <= 0 {
		odds = 1
	}
	return &Jackpot{pool: initial, odds: odds, winnerBps: winnerBps, entropy: entropy}
}

func (j *Jackpot) Pool() int64 { return j.pool }

// Roll sorteia o gatilho com chance 1/odds.
func (j *Jackpot) Roll() (bool, error) {
	v, err := j.entropy.Int63n(j.odds)
	if err != nil {
		return false, fmt.Errorf("jackpot roll: %w", err)
	}
	return v == 0, nil
}

// pickWeighted escolhe um apostador com probabilidade proporcional ao stake
// (soma cumulativa).
func (j *Jackpot) pickWeighted(stakes []stake) (string, error) {
	var total int64
	for _, s := range stakes {
		total += s.amount
	}
	if total <= 0 {
		return "", nil
	}
	r, err := j.entropy.Int63n(total)
	if err != nil {
		return "", fmt.Errorf("jackpot draw: %w", err)
	}
	var cum int64
	for _, s := range stakes {
		cum += s.amount
		if r < cum {
			return s.bettorID, nil
		}
	}
	return stakes[len(stakes)-1].bettorID, nil
}

// jackpotOutcome é o efeito de uma rodada no jackpot, aplicado só depois
// que todo o cálculo do payout terminou sem erro.
type jackpotOutcome struct {
	contribution int64
	triggered    bool
	winner       string
	amount       int64
	burned       int64
}

func (j *Jackpot) evaluate(contribution int64, backers []stake) (jackpotOutcome, error) {
	out := jackpotOutcome{contribution: contribution}
	triggered, err := j.Roll()
	if err != nil {
		return out, err
	}
	if !triggered {
		return out, nil
	}
	out.triggered = true
	pool := j.pool + contribution
	if pool <= 0 {
		return out, nil
	}
	winner, err := j.pickWeighted(backers)
	if err != nil {
		return out, err
	}
	if winner == "" {
		out.burned = pool
		return out, nil
	}
	out.winner = winner
	out.amount = int64(mulDiv(uint64(pool), j.winnerBps, BpsDenominator))
	out.burned = pool - out.amount
	return out, nil
}

func (j *Jackpot) apply(o jackpotOutcome) {
	j.pool += o.contribution
	if o.triggered {
		j.pool = 0
	}
}
