package orchestrator

import (
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

func fighterState(f combat.Fighter) events.FighterState {
	return events.FighterState{
		ID:               f.ID,
		Name:             f.Name,
		HP:               f.HP,
		MaxHP:            f.MaxHP,
		Meter:            f.Meter,
		DamageDealt:      f.DamageDealt,
		DamageTaken:      f.DamageTaken,
		EliminatedOnTurn: f.EliminatedOnTurn,
		Placement:        f.Placement,
	}
}

func fighterStates(fs []*combat.Fighter) []events.FighterState {
	out := make([]events.FighterState, 0, len(fs))
	for _, f := range fs {
		out = append(out, fighterState(*f))
	}
	return out
}

func turnEvent(t combat.Turn) events.Turn {
	out := events.Turn{
		TurnNumber:   t.Number,
		Eliminations: append([]string{}, t.Eliminations...),
		Bye:          t.Bye,
	}
	for _, p := range t.Pairings {
		out.Pairings = append(out.Pairings, events.Pairing{
			FighterA:  p.FighterA,
			FighterB:  p.FighterB,
			MoveA:     string(p.MoveA),
			MoveB:     string(p.MoveB),
			DamageToA: p.DamageToA,
			DamageToB: p.DamageToB,
		})
	}
	return out
}

func resultEvent(r combat.Result) events.RumbleResult {
	out := events.RumbleResult{WinnerID: r.WinnerID, TotalTurns: r.TotalTurns}
	for _, p := range r.Placements {
		out.Placements = append(out.Placements, events.Placement{FighterID: p.FighterID, Place: p.Place})
	}
	for _, f := range r.Fighters {
		out.Fighters = append(out.Fighters, fighterState(f))
	}
	return out
}

func payoutEvent(p betting.PayoutResult) *events.Payout {
	out := &events.Payout{
		Mode:               string(p.Mode),
		WinnerID:           p.WinnerID,
		NetPool:            p.NetPool,
		Pot:                p.Pot,
		TreasuryCut:        p.TreasuryCut,
		IchorRoundReward:   p.Ichor.RoundReward,
		ShowerContribution: p.Ichor.ShowerContribution,
		JackpotTriggered:   p.JackpotTriggered,
		JackpotWinner:      p.JackpotWinner,
		JackpotAmount:      p.JackpotAmount,
	}
	for _, w := range p.WinnerPayouts {
		out.WinnerPayouts = append(out.WinnerPayouts, events.WinnerPayout{
			BettorID:  w.BettorID,
			FighterID: w.FighterID,
			Place:     w.Place,
			Returned:  w.Returned,
			Profit:    w.Profit,
		})
	}
	for _, s := range p.Sponsorships {
		out.Sponsorships = append(out.Sponsorships, events.Sponsorship{FighterID: s.FighterID, Amount: s.Amount})
	}
	for _, group := range [][]betting.IchorAward{p.Ichor.Fighters, p.Ichor.Bettors} {
		for _, a := range group {
			out.IchorAwards = append(out.IchorAwards, events.IchorAward{
				Recipient: a.Recipient,
				Kind:      a.Kind,
				Place:     a.Place,
				Amount:    a.Amount,
			})
		}
	}
	return out
}
