package engine

import (
	"fmt"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/recovery"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
)

// ConfigFrom traduz a seção Rumble do config compartilhado.
func ConfigFrom(r config.Rumble) (orchestrator.Config, recovery.Config, error) {
	oc := orchestrator.DefaultConfig()
	oc.Queue = queue.Config{
		Slots:           r.Slots,
		MinFighters:     r.MinFighters,
		MaxFighters:     r.MaxFighters,
		LockCountdown:   r.LockCountdown,
		BettingDuration: r.BettingDuration,
		BettingGrace:    r.BettingGrace,
		PayoutDuration:  r.PayoutDuration,
		DeadlineMode:    queue.DeadlineMode(r.DeadlineMode),
	}
	if err := oc.Queue.Validate(); err != nil {
		return orchestrator.Config{}, recovery.Config{}, err
	}
	oc.TurnInterval = r.TurnInterval
	oc.Combat.MaxTurns = r.MaxTurns
	oc.Calculator.Mode = betting.Mode(r.PayoutMode)
	if oc.Calculator.Mode != betting.ModeWinnerTakeAll && oc.Calculator.Mode != betting.ModePodium {
		return orchestrator.Config{}, recovery.Config{}, fmt.Errorf("%w: %s", betting.ErrUnknownMode, r.PayoutMode)
	}

	i := r.Ichor
	for name, v := range map[string]int64{
		"bettor": i.BettorBps, "fighter": i.FighterBps, "shower": i.ShowerBps,
		"first": i.FirstBps, "second": i.SecondBps, "third": i.ThirdBps, "shower winner": i.ShowerWinnerBps,
	} {
		if v < 0 {
			return orchestrator.Config{}, recovery.Config{}, fmt.Errorf("ichor %s bps is negative: %w", name, betting.ErrInvalidRewardConfig)
		}
	}
	oc.Calculator.Reward = betting.RewardConfig{
		RoundReward:     i.RoundReward,
		BettorBps:       uint64(i.BettorBps),
		FighterBps:      uint64(i.FighterBps),
		ShowerBps:       uint64(i.ShowerBps),
		FirstBps:        uint64(i.FirstBps),
		SecondBps:       uint64(i.SecondBps),
		ThirdBps:        uint64(i.ThirdBps),
		ShowerBonus:     i.ShowerBonus,
		ShowerOdds:      i.ShowerOdds,
		ShowerWinnerBps: uint64(i.ShowerWinnerBps),
	}
	if err := oc.Calculator.Reward.Validate(); err != nil {
		return orchestrator.Config{}, recovery.Config{}, err
	}

	rc := recovery.Config{StaleBetting: r.StaleBetting, StaleCombat: r.StaleCombat}
	return oc, rc, nil
}
