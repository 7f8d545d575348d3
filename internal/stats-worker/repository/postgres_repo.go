package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"time"
)

//go:embed schema.sql
var Schema string

const (
	kindResult = "result"
	kindIchor  = "ichor"
)

// ResultRow é a linha de um lutador numa rodada encerrada.
type ResultRow struct {
	FighterID   string
	Place       int
	DamageDealt int
	DamageTaken int
}

// PostgresRepo mantém o histórico agregado de cada lutador.
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db, now: time.Now}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, Schema)
	return err
}

// markApplied devolve false se (rodada, lutador, tipo) já foi contado.
func (r *PostgresRepo) markApplied(ctx context.Context, tx *sql.Tx, roundID, fighterID, kind string, at time.Time) (bool, error) {
	const q = `
		INSERT INTO fighter_record_rounds (round_id, fighter_id, kind, applied_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT DO NOTHING
	`
	res, err := tx.ExecContext(ctx, q, roundID, fighterID, kind, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApplyResult soma uma rodada encerrada ao histórico dos lutadores, numa
// transação só. Lutadores já contados para a rodada são ignorados.
func (r *PostgresRepo) ApplyResult(ctx context.Context, roundID string, rows []ResultRow) (int, error) {
	// current_streak: positivo = vitórias seguidas, negativo = derrotas seguidas
	const upsert = `
		INSERT INTO fighter_records
		  (fighter_id, rumbles, wins, podiums, losses, current_streak, best_streak, damage_dealt, damage_taken, updated_at)
		VALUES
		  ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fighter_id) DO UPDATE SET
		  rumbles        = fighter_records.rumbles + 1,
		  wins           = fighter_records.wins + EXCLUDED.wins,
		  podiums        = fighter_records.podiums + EXCLUDED.podiums,
		  losses         = fighter_records.losses + EXCLUDED.losses,
		  current_streak = CASE WHEN EXCLUDED.wins = 1
		                   THEN GREATEST(fighter_records.current_streak, 0) + 1
		                   ELSE LEAST(fighter_records.current_streak, 0) - 1 END,
		  best_streak    = GREATEST(fighter_records.best_streak, CASE WHEN EXCLUDED.wins = 1
		                   THEN GREATEST(fighter_records.current_streak, 0) + 1 ELSE 0 END),
		  damage_dealt   = fighter_records.damage_dealt + EXCLUDED.damage_dealt,
		  damage_taken   = fighter_records.damage_taken + EXCLUDED.damage_taken,
		  updated_at     = EXCLUDED.updated_at
	`
	return r.inTx(ctx, func(tx *sql.Tx, at time.Time) (int, error) {
		applied := 0
		for _, row := range rows {
			ok, err := r.markApplied(ctx, tx, roundID, row.FighterID, kindResult, at)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			win, podium, loss, streak := 0, 0, 1, -1
			if row.Place == 1 {
				win, loss, streak = 1, 0, 1
			}
			if row.Place >= 1 && row.Place <= 3 {
				podium = 1
			}
			if _, err := tx.ExecContext(ctx, upsert, row.FighterID, win, podium, loss, streak, win, row.DamageDealt, row.DamageTaken, at); err != nil {
				return 0, fmt.Errorf("upsert %s: %w", row.FighterID, err)
			}
			applied++
		}
		return applied, nil
	})
}

// ApplyIchor credita o ICHOR minerado por lutador numa rodada.
func (r *PostgresRepo) ApplyIchor(ctx context.Context, roundID string, mined map[string]int64) (int, error) {
	const upsert = `
		INSERT INTO fighter_records (fighter_id, ichor_mined, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (fighter_id) DO UPDATE SET
		  ichor_mined = fighter_records.ichor_mined + EXCLUDED.ichor_mined,
		  updated_at  = EXCLUDED.updated_at
	`
	return r.inTx(ctx, func(tx *sql.Tx, at time.Time) (int, error) {
		applied := 0
		for _, id := range slices.Sorted(maps.Keys(mined)) {
			ok, err := r.markApplied(ctx, tx, roundID, id, kindIchor, at)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, upsert, id, mined[id], at); err != nil {
				return 0, fmt.Errorf("credit ichor %s: %w", id, err)
			}
			applied++
		}
		return applied, nil
	})
}

func (r *PostgresRepo) inTx(ctx context.Context, fn func(tx *sql.Tx, at time.Time) (int, error)) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := fn(tx, r.now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
