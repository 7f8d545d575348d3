package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func placementOrder(fs []*Fighter) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}

func TestRank_AliveAboveEliminatedWithTieBreaks(t *testing.T) {
	fighters := []*Fighter{
		{ID: "dead-early", HP: 0, EliminatedOnTurn: 2, DamageDealt: 90},
		{ID: "alive-low", HP: 10, DamageDealt: 5},
		{ID: "dead-late-weak", HP: 0, EliminatedOnTurn: 7, DamageDealt: 10},
		{ID: "alive-high", HP: 40, DamageDealt: 1},
		{ID: "dead-late-strong", HP: 0, EliminatedOnTurn: 7, DamageDealt: 30},
		{ID: "alive-low-strong", HP: 10, DamageDealt: 50},
	}

	got := placementOrder(Rank(fighters))
	assert.Equal(t, []string{
		"alive-high",
		"alive-low-strong",
		"alive-low",
		"dead-late-strong",
		"dead-late-weak",
		"dead-early",
	}, got)
}

func TestRank_IsDeterministicOnFullTies(t *testing.T) {
	fighters := []*Fighter{
		{ID: "b", HP: 20, DamageDealt: 3},
		{ID: "a", HP: 20, DamageDealt: 3},
		{ID: "c", HP: 20, DamageDealt: 3},
		{ID: "e", HP: 0, EliminatedOnTurn: 4, DamageDealt: 1},
		{ID: "d", HP: 0, EliminatedOnTurn: 4, DamageDealt: 1},
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < len(fighters); i++ {
		rotated := append(append([]*Fighter(nil), fighters[i:]...), fighters[:i]...)
		assert.Equal(t, want, placementOrder(Rank(rotated)), "rotation %d", i)
	}
}

func TestFinalize_AssignsPlacementsOnce(t *testing.T) {
	b := NewBattle(DefaultConfig(), []Entrant{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	b.Fighters[0].HP = 0
	b.Fighters[0].EliminatedOnTurn = 1

	first := b.Finalize()
	assert.Equal(t, []string{"b", "c", "a"}, placementOrder(first))
	assert.True(t, b.Over())

	// alterações posteriores não mudam colocações já atribuídas
	b.Fighters[2].HP = 999
	b.Finalize()
	assert.Equal(t, 2, b.Fighters[2].Placement)
	assert.Equal(t, 1, b.Fighters[1].Placement)
}

func TestNewBattle_DefaultsNameToID(t *testing.T) {
	b := NewBattle(DefaultConfig(), []Entrant{{ID: "x"}, {ID: "y", Name: "Lobsta"}})
	assert.Equal(t, "x", b.Fighters[0].Name)
	assert.Equal(t, "Lobsta", b.Fighters[1].Name)
	assert.Equal(t, DefaultConfig().MaxHP, b.Fighters[0].HP)
	assert.Zero(t, b.Fighters[0].Meter)
}
