package combat

import (
	"errors"
	"math/rand/v2"
)

var ErrBattleOver = errors.New("battle already finished")

// Config define as constantes do modelo de combate.
type Config struct {
	MaxHP         int
	StrikeDamage  int
	SpecialDamage int
	SpecialCost   int // tamanho do medidor; special exige medidor cheio
	MeterPerTurn  int
	MaxTurns      int
}

func DefaultConfig() Config {
	return Config{
		MaxHP:         100,
		StrikeDamage:  12,
		SpecialDamage: 30,
		SpecialCost:   100,
		MeterPerTurn:  20,
		MaxTurns:      25,
	}
}

// Exchange é o resultado de um confronto entre A e B em um turno.
type Exchange struct {
	DamageToA  int
	DamageToB  int
	MeterCostA int
	MeterCostB int
}

// Simulator resolve trocas e turnos. Sem estado entre chamadas além do rng.
type Simulator struct {
	cfg      Config
	rng      *rand.Rand
	strategy Strategy
}

func NewSimulator(cfg Config, strategy Strategy, rng *rand.Rand) *Simulator {
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	return &Simulator{cfg: cfg, rng: rng, strategy: strategy}
}

func (s *Simulator) Config() Config { return s.cfg }

// Resolve aplica a tabela de movimentos a uma troca.
// Special sem medidor cheio não tem efeito.
func (s *Simulator) Resolve(a, b Move, meterA, meterB int) Exchange {
	var ex Exchange
	if a == MoveSpecial {
		if meterA >= s.cfg.SpecialCost {
			ex.MeterCostA = s.cfg.SpecialCost
		} else {
			a = ""
		}
	}
	if b == MoveSpecial {
		if meterB >= s.cfg.SpecialCost {
			ex.MeterCostB = s.cfg.SpecialCost
		} else {
			b = ""
		}
	}

	toB, reflectedToA := s.hit(a, b)
	toA, reflectedToB := s.hit(b, a)
	ex.DamageToA = toA + reflectedToA
	ex.DamageToB = toB + reflectedToB
	return ex
}

// hit devolve o dano causado ao defensor e o dano refletido no atacante.
func (s *Simulator) hit(attack, defense Move) (toDefender, toAttacker int) {
	switch {
	case attack == MoveSpecial:
		if defense == MoveDodge {
			return 0, 0
		}
		return s.cfg.SpecialDamage, 0
	case attack.IsStrike():
		switch {
		case defense.blocks(attack), defense == MoveDodge:
			return 0, 0
		case defense == MoveCatch:
			return 0, s.cfg.StrikeDamage
		}
		return s.cfg.StrikeDamage, 0
	}
	return 0, 0
}

// Step executa um turno completo da batalha: pareamento, escolha de
// movimentos, resolução e regeneração do medidor.
func (s *Simulator) Step(b *Battle) (Turn, error) {
	if b.Over() {
		return Turn{}, ErrBattleOver
	}

	turnNumber := len(b.Turns) + 1
	alive := b.aliveIDs()
	pairs, bye := MakePairings(alive, b.prevPairs, s.rng)

	turn := Turn{Number: turnNumber, Bye: bye}
	for _, p := range pairs {
		fa, fb := b.byID[p.A], b.byID[p.B]
		moveA := s.strategy.ChooseMove(fa, fb, s.cfg, s.rng)
		moveB := s.strategy.ChooseMove(fb, fa, s.cfg, s.rng)
		ex := s.Resolve(moveA, moveB, fa.Meter, fb.Meter)

		// dano e eliminações aplicados juntos ao fim da troca
		fa.Meter -= ex.MeterCostA
		fb.Meter -= ex.MeterCostB
		fa.applyDamage(ex.DamageToA, turnNumber)
		fb.applyDamage(ex.DamageToB, turnNumber)
		fa.DamageDealt += ex.DamageToB
		fb.DamageDealt += ex.DamageToA

		turn.Pairings = append(turn.Pairings, Pairing{
			FighterA:  p.A,
			FighterB:  p.B,
			MoveA:     moveA,
			MoveB:     moveB,
			DamageToA: ex.DamageToA,
			DamageToB: ex.DamageToB,
		})
		if !fa.Alive() {
			turn.Eliminations = append(turn.Eliminations, fa.ID)
		}
		if !fb.Alive() {
			turn.Eliminations = append(turn.Eliminations, fb.ID)
		}
	}

	for _, f := range b.Fighters {
		if f.Alive() {
			f.Meter = min(f.Meter+s.cfg.MeterPerTurn, s.cfg.SpecialCost)
		}
	}

	b.prevPairs = PairKeys(pairs)
	b.Turns = append(b.Turns, turn)
	return turn, nil
}
