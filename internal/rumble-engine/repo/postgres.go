package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/store"
)

//go:embed schema.sql
var Schema string

// Postgres implementa store.Store sobre o banco do motor.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate cria as tabelas se ainda não existirem.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) LoadQueueState(ctx context.Context) ([]queue.Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT fighter_id, joined_at, auto_requeue, priority
		FROM rumble_queue
		ORDER BY priority, joined_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queue.Entry
	for rows.Next() {
		var e queue.Entry
		if err := rows.Scan(&e.FighterID, &e.JoinedAt, &e.AutoRequeue, &e.Priority); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveQueueEntry(ctx context.Context, e queue.Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rumble_queue (fighter_id, joined_at, auto_requeue, priority)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (fighter_id) DO UPDATE SET
		  joined_at    = EXCLUDED.joined_at,
		  auto_requeue = EXCLUDED.auto_requeue,
		  priority     = EXCLUDED.priority`,
		e.FighterID, e.JoinedAt, e.AutoRequeue, e.Priority,
	)
	return err
}

func (p *Postgres) RemoveQueueEntry(ctx context.Context, fighterID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rumble_queue WHERE fighter_id=$1`, fighterID)
	return err
}

// CreateRound não sobrescreve uma rodada já gravada.
func (p *Postgres) CreateRound(ctx context.Context, r store.RoundRecord) error {
	now := p.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	entries, err := json.Marshal(append([]queue.Entry{}, r.Entries...))
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO rumble_rounds (id, slot_index, status, fighters, entries, betting_deadline, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.SlotIndex, string(r.Status), pq.Array(r.Fighters), entries, nullTime(r.BettingDeadline), r.CreatedAt, now,
	)
	return err
}

func (p *Postgres) LoadActiveRounds(ctx context.Context) ([]store.RoundRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slot_index, status, fighters, entries, betting_deadline, winner_id, created_at, updated_at, completed_at
		FROM rumble_rounds
		WHERE status IN ('betting','combat','payout')
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RoundRecord
	for rows.Next() {
		var (
			r         store.RoundRecord
			status    string
			fighters  pq.StringArray
			entries   []byte
			deadline  sql.NullTime
			winner    sql.NullString
			completed sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.SlotIndex, &status, &fighters, &entries, &deadline, &winner, &r.CreatedAt, &r.UpdatedAt, &completed); err != nil {
			return nil, err
		}
		r.Status = store.RoundStatus(status)
		r.Fighters = []string(fighters)
		if len(entries) > 0 {
			if err := json.Unmarshal(entries, &r.Entries); err != nil {
				return nil, fmt.Errorf("round %s entries: %w", r.ID, err)
			}
		}
		r.BettingDeadline = timePtr(deadline)
		r.WinnerID = winner.String
		r.CompletedAt = timePtr(completed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRoundStatus nunca tira uma rodada de complete.
func (p *Postgres) UpdateRoundStatus(ctx context.Context, roundID string, status store.RoundStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rumble_rounds SET status=$2, updated_at=$3
		WHERE id=$1 AND status <> 'complete'`,
		roundID, string(status), p.now(),
	)
	return p.checkRound(ctx, res, err, roundID)
}

func (p *Postgres) UpdateBettingDeadline(ctx context.Context, roundID string, deadline time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rumble_rounds SET betting_deadline=$2, updated_at=$3 WHERE id=$1`,
		roundID, deadline, p.now(),
	)
	return p.checkRound(ctx, res, err, roundID)
}

func (p *Postgres) SetRoundWinner(ctx context.Context, roundID, winnerID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rumble_rounds SET winner_id=$2, updated_at=$3 WHERE id=$1`,
		roundID, winnerID, p.now(),
	)
	return p.checkRound(ctx, res, err, roundID)
}

// CompleteRoundRecord é idempotente: rodada já concluída não é tocada.
func (p *Postgres) CompleteRoundRecord(ctx context.Context, roundID string) error {
	now := p.now()
	res, err := p.db.ExecContext(ctx, `
		UPDATE rumble_rounds SET status='complete', completed_at=$2, updated_at=$2
		WHERE id=$1 AND status <> 'complete'`,
		roundID, now,
	)
	return p.checkRound(ctx, res, err, roundID)
}

// checkRound distingue "nada a fazer" de "rodada inexistente" quando o UPDATE
// não afetou linhas.
func (p *Postgres) checkRound(ctx context.Context, res sql.Result, err error, roundID string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rumble_rounds WHERE id=$1)`, roundID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", roundID, store.ErrRoundNotFound)
	}
	return nil
}

// SaveBet é idempotente por id da aposta.
func (p *Postgres) SaveBet(ctx context.Context, b betting.Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rumble_bets
		  (id, round_id, bettor_id, fighter_id, gross_amount, fee_amount, sponsorship_amount, net_amount, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.RoundID, b.BettorID, b.FighterID,
		b.GrossAmount, b.FeeAmount, b.SponsorshipAmount, b.NetAmount, b.PlacedAt,
	)
	return err
}

func (p *Postgres) LoadBetsForRound(ctx context.Context, roundID string) ([]betting.Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, round_id, bettor_id, fighter_id, gross_amount, fee_amount, sponsorship_amount, net_amount, placed_at
		FROM rumble_bets WHERE round_id=$1
		ORDER BY placed_at, id`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []betting.Bet
	for rows.Next() {
		var b betting.Bet
		if err := rows.Scan(&b.ID, &b.RoundID, &b.BettorID, &b.FighterID,
			&b.GrossAmount, &b.FeeAmount, &b.SponsorshipAmount, &b.NetAmount, &b.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) CountBetsForRound(ctx context.Context, roundID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rumble_bets WHERE round_id=$1`, roundID).Scan(&n)
	return n, err
}

// SavePayout grava o payout uma única vez por rodada.
func (p *Postgres) SavePayout(ctx context.Context, r betting.PayoutResult) error {
	detail, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO rumble_payouts (round_id, mode, winner_id, net_pool, treasury_cut, jackpot_triggered, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (round_id) DO NOTHING`,
		r.RoundID, string(r.Mode), r.WinnerID, r.NetPool, r.TreasuryCut, r.JackpotTriggered, detail,
	)
	return err
}

func (p *Postgres) LoadJackpotPool(ctx context.Context) (int64, error) {
	var amount int64
	err := p.db.QueryRowContext(ctx, `SELECT amount FROM rumble_jackpot WHERE id=1`).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (p *Postgres) SaveJackpotPool(ctx context.Context, amount int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rumble_jackpot (id, amount, updated_at) VALUES (1,$1,$2)
		ON CONFLICT (id) DO UPDATE SET amount=EXCLUDED.amount, updated_at=EXCLUDED.updated_at`,
		amount, p.now(),
	)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ store.Store = (*Postgres)(nil)
