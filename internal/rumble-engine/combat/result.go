package combat

import (
	"errors"
	"fmt"
)

var ErrInvalidPlacements = errors.New("placements must be a permutation of 1..N")

// Placement é a colocação final de um lutador.
type Placement struct {
	FighterID string `json:"fighterId"`
	Place     int    `json:"place"`
}

// Result é o resultado finalizado de uma rodada.
type Result struct {
	WinnerID   string      `json:"winnerId"`
	Placements []Placement `json:"placements"` // ordenado por colocação
	Fighters   []Fighter   `json:"fighters"`
	TotalTurns int         `json:"totalTurns"`
}

// Result finaliza a batalha (se ainda não estiver) e monta o resultado.
func (b *Battle) Result() Result {
	ranked := b.Finalize()
	res := Result{TotalTurns: len(b.Turns)}
	for _, f := range ranked {
		res.Placements = append(res.Placements, Placement{FighterID: f.ID, Place: f.Placement})
		res.Fighters = append(res.Fighters, *f)
	}
	if len(ranked) > 0 {
		res.WinnerID = ranked[0].ID
	}
	return res
}

// Validate confere que as colocações são uma permutação de 1..N sem
// lutadores repetidos e que o vencedor ocupa o 1º lugar.
func (r Result) Validate() error {
	n := len(r.Placements)
	if n == 0 {
		return ErrInvalidPlacements
	}
	seenPlace := make([]bool, n+1)
	seenID := make(map[string]struct{}, n)
	winnerFirst := false
	for _, p := range r.Placements {
		if p.Place < 1 || p.Place > n || seenPlace[p.Place] {
			return fmt.Errorf("place %d for %s: %w", p.Place, p.FighterID, ErrInvalidPlacements)
		}
		if _, dup := seenID[p.FighterID]; dup || p.FighterID == "" {
			return fmt.Errorf("fighter %q repeated: %w", p.FighterID, ErrInvalidPlacements)
		}
		seenPlace[p.Place] = true
		seenID[p.FighterID] = struct{}{}
		if p.Place == 1 && p.FighterID == r.WinnerID {
			winnerFirst = true
		}
	}
	if !winnerFirst {
		return fmt.Errorf("winner %s not in first place: %w", r.WinnerID, ErrInvalidPlacements)
	}
	return nil
}

// FighterAt devolve o lutador na colocação informada.
func (r Result) FighterAt(place int) (string, bool) {
	for _, p := range r.Placements {
		if p.Place == place {
			return p.FighterID, true
		}
	}
	return "", false
}
