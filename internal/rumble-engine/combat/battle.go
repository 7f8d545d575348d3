package combat

import "sort"

// Fighter é o estado de combate de um lutador durante uma rodada.
type Fighter struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	HP               int    `json:"hp"`
	MaxHP            int    `json:"maxHp"`
	Meter            int    `json:"meter"`
	DamageDealt      int    `json:"damageDealt"`
	DamageTaken      int    `json:"damageTaken"`
	EliminatedOnTurn int    `json:"eliminatedOnTurn,omitempty"` // 0 = vivo
	Placement        int    `json:"placement"`                  // 0 até finalizar
}

func (f *Fighter) Alive() bool { return f.HP > 0 }

func (f *Fighter) applyDamage(dmg, turn int) {
	if dmg <= 0 || !f.Alive() {
		return
	}
	if dmg > f.HP {
		dmg = f.HP
	}
	f.HP -= dmg
	f.DamageTaken += dmg
	if f.HP == 0 {
		f.EliminatedOnTurn = turn
	}
}

// Pairing registra uma troca resolvida.
type Pairing struct {
	FighterA  string `json:"fighterA"`
	FighterB  string `json:"fighterB"`
	MoveA     Move   `json:"moveA"`
	MoveB     Move   `json:"moveB"`
	DamageToA int    `json:"damageToA"`
	DamageToB int    `json:"damageToB"`
}

// Turn é uma entrada do log (append-only) de uma rodada.
type Turn struct {
	Number       int       `json:"turnNumber"`
	Pairings     []Pairing `json:"pairings"`
	Eliminations []string  `json:"eliminations"`
	Bye          string    `json:"bye,omitempty"`
}

// Entrant identifica um lutador ao entrar em combate.
type Entrant struct {
	ID   string
	Name string
}

// Battle guarda o estado mutável de uma rodada em combate.
type Battle struct {
	Fighters  []*Fighter // ordem do roster
	Turns     []Turn
	cfg       Config
	byID      map[string]*Fighter
	prevPairs map[string]struct{}
	finalized bool
}

// NewBattle inicializa todos com HP cheio e medidor zerado.
func NewBattle(cfg Config, roster []Entrant) *Battle {
	b := &Battle{
		cfg:       cfg,
		byID:      make(map[string]*Fighter, len(roster)),
		prevPairs: map[string]struct{}{},
	}
	for _, e := range roster {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		f := &Fighter{ID: e.ID, Name: name, HP: cfg.MaxHP, MaxHP: cfg.MaxHP}
		b.Fighters = append(b.Fighters, f)
		b.byID[e.ID] = f
	}
	return b
}

func (b *Battle) Fighter(id string) (*Fighter, bool) {
	f, ok := b.byID[id]
	return f, ok
}

func (b *Battle) AliveCount() int {
	n := 0
	for _, f := range b.Fighters {
		if f.Alive() {
			n++
		}
	}
	return n
}

func (b *Battle) aliveIDs() []string {
	out := make([]string, 0, len(b.Fighters))
	for _, f := range b.Fighters {
		if f.Alive() {
			out = append(out, f.ID)
		}
	}
	return out
}

// Over: no máximo um vivo ou limite de turnos atingido.
func (b *Battle) Over() bool {
	return b.finalized || b.AliveCount() <= 1 || len(b.Turns) >= b.cfg.MaxTurns
}

// Finalize atribui as colocações uma única vez; chamadas seguintes devolvem
// o mesmo ranking.
func (b *Battle) Finalize() []*Fighter {
	ranked := Rank(b.Fighters)
	if !b.finalized {
		for i, f := range ranked {
			f.Placement = i + 1
		}
		b.finalized = true
	}
	return ranked
}

// Rank ordena: vivos (HP desc, dano causado desc) acima de eliminados
// (turno de eliminação desc, dano causado desc). O id desempata o resto, então
// a ordem não depende da posição no roster.
func Rank(fighters []*Fighter) []*Fighter {
	var alive, dead []*Fighter
	for _, f := range fighters {
		if f.Alive() {
			alive = append(alive, f)
		} else {
			dead = append(dead, f)
		}
	}
	sort.SliceStable(alive, func(i, j int) bool {
		if alive[i].HP != alive[j].HP {
			return alive[i].HP > alive[j].HP
		}
		if alive[i].DamageDealt != alive[j].DamageDealt {
			return alive[i].DamageDealt > alive[j].DamageDealt
		}
		return alive[i].ID < alive[j].ID
	})
	sort.SliceStable(dead, func(i, j int) bool {
		if dead[i].EliminatedOnTurn != dead[j].EliminatedOnTurn {
			return dead[i].EliminatedOnTurn > dead[j].EliminatedOnTurn
		}
		if dead[i].DamageDealt != dead[j].DamageDealt {
			return dead[i].DamageDealt > dead[j].DamageDealt
		}
		return dead[i].ID < dead[j].ID
	})
	return append(alive, dead...)
}
