package combat

import "math/rand/v2"

// Strategy escolhe o movimento de um lutador. Plugável; a IA padrão é só um placeholder.
type Strategy interface {
	ChooseMove(self, opponent *Fighter, cfg Config, rng *rand.Rand) Move
}

// WeightedStrategy usa special sempre que o medidor está cheio e, fora isso,
// sorteia a categoria pelos pesos e a zona de forma uniforme.
type WeightedStrategy struct {
	Strike int
	Guard  int
	Dodge  int
	Catch  int
}

// DefaultStrategy: pesos documentados ~67/20/8/5.
func DefaultStrategy() WeightedStrategy {
	return WeightedStrategy{Strike: 67, Guard: 20, Dodge: 8, Catch: 5}
}

func (w WeightedStrategy) ChooseMove(self, _ *Fighter, cfg Config, rng *rand.Rand) Move {
	if self.Meter >= cfg.SpecialCost {
		return MoveSpecial
	}
	total := w.Strike + w.Guard + w.Dodge + w.Catch
	if total <= 0 {
		return strikes[rng.IntN(len(strikes))]
	}
	roll := rng.IntN(total)
	switch {
	case roll < w.Strike:
		return strikes[rng.IntN(len(strikes))]
	case roll < w.Strike+w.Guard:
		return guards[rng.IntN(len(guards))]
	case roll < w.Strike+w.Guard+w.Dodge:
		return MoveDodge
	}
	return MoveCatch
}

// StrategyFunc adapta uma função comum para Strategy.
type StrategyFunc func(self, opponent *Fighter, cfg Config, rng *rand.Rand) Move

func (f StrategyFunc) ChooseMove(self, opponent *Fighter, cfg Config, rng *rand.Rand) Move {
	return f(self, opponent, cfg, rng)
}
