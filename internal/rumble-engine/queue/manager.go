package queue

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
)

var (
	ErrDuplicateEntry = errors.New("fighter already queued")
	ErrFighterActive  = fmt.Errorf("%w: fighter is in an active slot", ErrDuplicateEntry)
	ErrInvalidSlot    = errors.New("slot index out of range")
	ErrSlotNotBetting = errors.New("slot is not in betting state")
	ErrSlotNotCombat  = errors.New("slot is not in combat state")
	ErrSlotBusy       = errors.New("slot is not idle")
	ErrRoundMismatch  = errors.New("round id does not match slot")
	ErrRosterMismatch = errors.New("result does not match slot roster")
	ErrInvalidConfig  = errors.New("invalid queue config")
	ErrMissingFighter = errors.New("fighter id required")
)

// DeadlineMode controla quando o prazo de apostas é definido.
type DeadlineMode string

const (
	// DeadlineImmediate define o prazo no momento do pull.
	DeadlineImmediate DeadlineMode = "immediate"
	// DeadlineArmed espera ArmBettingWindow (janela confirmada pela liquidação).
	DeadlineArmed DeadlineMode = "armed"
)

type Config struct {
	Slots           int
	MinFighters     int
	MaxFighters     int
	LockCountdown   time.Duration
	BettingDuration time.Duration
	BettingGrace    time.Duration
	PayoutDuration  time.Duration
	DeadlineMode    DeadlineMode
}

func DefaultConfig() Config {
	return Config{
		Slots:           3,
		MinFighters:     8,
		MaxFighters:     16,
		LockCountdown:   30 * time.Second,
		BettingDuration: 60 * time.Second,
		BettingGrace:    2 * time.Second,
		PayoutDuration:  15 * time.Second,
		DeadlineMode:    DeadlineImmediate,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Slots < 1:
		return fmt.Errorf("%w: slots must be >= 1", ErrInvalidConfig)
	case c.MinFighters < 3:
		return fmt.Errorf("%w: min fighters must be >= 3", ErrInvalidConfig)
	case c.MaxFighters < c.MinFighters:
		return fmt.Errorf("%w: max fighters below min", ErrInvalidConfig)
	case c.DeadlineMode != DeadlineImmediate && c.DeadlineMode != DeadlineArmed:
		return fmt.Errorf("%w: deadline mode %q", ErrInvalidConfig, c.DeadlineMode)
	}
	return nil
}

// Hooks são chamados de dentro de AdvanceSlots/RestoreSlot, com o estado já
// atualizado.
type Hooks struct {
	OnSlotFilled   func(s Slot)
	OnSlotRecycled func(prev Slot, requeued []Entry)
}

// Manager é a máquina de estados da fila e dos slots. Não é seguro para uso
// concorrente; o orquestrador serializa as chamadas.
type Manager struct {
	cfg   Config
	hooks Hooks
	now   func() time.Time

	queue   []Entry
	slots   []*Slot
	active  map[string]int   // fighterID -> índice do slot não-idle
	entries map[string]Entry // entrada com que cada lutador ativo saiu da fila

	lockStartedAt *time.Time
}

func NewManager(cfg Config, hooks Hooks, clock func() time.Time) (*Manager, error) {
	if cfg.DeadlineMode == "" {
		cfg.DeadlineMode = DeadlineImmediate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	m := &Manager{
		cfg:    cfg,
		hooks:  hooks,
		now:    clock,
		active:  map[string]int{},
		entries: map[string]Entry{},
	}
	for i := 0; i < cfg.Slots; i++ {
		m.slots = append(m.slots, &Slot{Index: i, ID: uuid.NewString(), State: StateIdle})
	}
	return m, nil
}

func (m *Manager) Config() Config { return m.cfg }

// AddToQueue enfileira com prioridade 0.
func (m *Manager) AddToQueue(fighterID string, autoRequeue bool) (Entry, error) {
	e := Entry{FighterID: fighterID, JoinedAt: m.now(), AutoRequeue: autoRequeue}
	return e, m.AddEntry(e)
}

// AddEntry enfileira uma entrada já montada (usado na recuperação).
func (m *Manager) AddEntry(e Entry) error {
	if e.FighterID == "" {
		return ErrMissingFighter
	}
	if m.indexOf(e.FighterID) >= 0 {
		return fmt.Errorf("%s: %w", e.FighterID, ErrDuplicateEntry)
	}
	if _, ok := m.active[e.FighterID]; ok {
		return fmt.Errorf("%s: %w", e.FighterID, ErrFighterActive)
	}
	if e.JoinedAt.IsZero() {
		e.JoinedAt = m.now()
	}
	m.queue = append(m.queue, e)
	sortEntries(m.queue)
	return nil
}

// RemoveFromQueue devolve false se o lutador não estava na fila.
func (m *Manager) RemoveFromQueue(fighterID string) bool {
	i := m.indexOf(fighterID)
	if i < 0 {
		return false
	}
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
	return true
}

func (m *Manager) indexOf(fighterID string) int {
	for i, e := range m.queue {
		if e.FighterID == fighterID {
			return i
		}
	}
	return -1
}

func (m *Manager) Queue() []Entry { return append([]Entry(nil), m.queue...) }

func (m *Manager) QueueLength() int { return len(m.queue) }

// LockStartedAt expõe o início da contagem regressiva, se houver.
func (m *Manager) LockStartedAt() (time.Time, bool) {
	if m.lockStartedAt == nil {
		return time.Time{}, false
	}
	return *m.lockStartedAt, true
}

// SlotEntries devolve as entradas de fila dos lutadores do slot, na ordem do
// roster. Lutador sem entrada conhecida volta só com o id.
func (m *Manager) SlotEntries(index int) []Entry {
	if index < 0 || index >= len(m.slots) {
		return nil
	}
	s := m.slots[index]
	out := make([]Entry, 0, len(s.Fighters))
	for _, id := range s.Fighters {
		e, ok := m.entries[id]
		if !ok {
			e = Entry{FighterID: id}
		}
		out = append(out, e)
	}
	return out
}

// ActiveSlot informa em qual slot não-idle o lutador está.
func (m *Manager) ActiveSlot(fighterID string) (int, bool) {
	i, ok := m.active[fighterID]
	return i, ok
}

func (m *Manager) Slots() []Slot {
	out := make([]Slot, len(m.slots))
	for i, s := range m.slots {
		out[i] = s.clone()
	}
	return out
}

func (m *Manager) Slot(index int) (Slot, error) {
	s, err := m.slot(index)
	if err != nil {
		return Slot{}, err
	}
	return s.clone(), nil
}

func (m *Manager) slot(index int) (*Slot, error) {
	if index < 0 || index >= len(m.slots) {
		return nil, fmt.Errorf("slot %d: %w", index, ErrInvalidSlot)
	}
	return m.slots[index], nil
}

// AdvanceSlots é a única transição por tick. Cada slot anda no máximo um
// estado por chamada; chamadas repetidas no mesmo instante não têm efeito
// extra.
func (m *Manager) AdvanceSlots() []Transition {
	now := m.now()
	var out []Transition
	sawIdle := false
	for _, s := range m.slots {
		from, roundID := s.State, s.ID
		switch s.State {
		case StateIdle:
			sawIdle = true
			m.tryFill(s, now)
		case StateBetting:
			if s.BettingDeadline != nil && !now.Before(s.BettingDeadline.Add(m.cfg.BettingGrace)) {
				t := now
				s.State = StateCombat
				s.CombatStartedAt = &t
			}
		case StateCombat:
			// sai de combate só via ReportResult
		case StatePayout:
			if s.PayoutStartedAt != nil && !now.Before(s.PayoutStartedAt.Add(m.cfg.PayoutDuration)) {
				m.recycle(s, now)
			}
		}
		if s.State != from {
			out = append(out, Transition{Slot: s.Index, RoundID: roundID, From: from, To: s.State})
		}
	}
	if !sawIdle {
		m.lockStartedAt = nil
	}
	return out
}

// tryFill puxa lutadores para um slot idle: bracket cheio sai na hora; com o
// mínimo atingido começa a contagem e, ao expirar, puxa o que houver.
func (m *Manager) tryFill(s *Slot, now time.Time) {
	n := len(m.queue)
	if n < m.cfg.MinFighters {
		m.lockStartedAt = nil
		return
	}
	if n < m.cfg.MaxFighters {
		if m.lockStartedAt == nil {
			t := now
			m.lockStartedAt = &t
			return
		}
		if now.Sub(*m.lockStartedAt) < m.cfg.LockCountdown {
			return
		}
	}
	take := n
	if take > m.cfg.MaxFighters {
		take = m.cfg.MaxFighters
	}
	pulled := m.queue[:take]
	m.queue = append([]Entry(nil), m.queue[take:]...)
	m.lockStartedAt = nil

	s.Fighters = s.Fighters[:0]
	for _, e := range pulled {
		s.Fighters = append(s.Fighters, e.FighterID)
		m.active[e.FighterID] = s.Index
		m.entries[e.FighterID] = e
	}
	s.State = StateBetting
	if m.cfg.DeadlineMode == DeadlineImmediate {
		d := now.Add(m.cfg.BettingDuration)
		s.BettingDeadline = &d
	}
	if m.hooks.OnSlotFilled != nil {
		m.hooks.OnSlotFilled(s.clone())
	}
}

// recycle leva payout -> idle com um novo round id, devolvendo à fila quem
// pediu auto-requeue.
func (m *Manager) recycle(s *Slot, now time.Time) {
	prev := s.clone()
	m.release(s)

	var requeued []Entry
	for _, id := range prev.Fighters {
		e, ok := m.entries[id]
		delete(m.entries, id)
		if !ok || !e.AutoRequeue {
			continue
		}
		e.JoinedAt = now
		if err := m.AddEntry(e); err == nil {
			requeued = append(requeued, e)
		}
	}
	if m.hooks.OnSlotRecycled != nil {
		m.hooks.OnSlotRecycled(prev, requeued)
	}
}

// release libera os lutadores e reinicia o slot como idle com round id novo.
func (m *Manager) release(s *Slot) {
	for _, id := range s.Fighters {
		if m.active[id] == s.Index {
			delete(m.active, id)
		}
	}
	*s = Slot{Index: s.Index, ID: uuid.NewString(), State: StateIdle}
}

// ArmBettingWindow define o prazo autoritativo de uma rodada em apostas.
func (m *Manager) ArmBettingWindow(index int, roundID string, deadline time.Time) error {
	s, err := m.slot(index)
	if err != nil {
		return err
	}
	if s.State != StateBetting {
		return fmt.Errorf("slot %d: %w", index, ErrSlotNotBetting)
	}
	if s.ID != roundID {
		return fmt.Errorf("slot %d round %s: %w", index, roundID, ErrRoundMismatch)
	}
	d := deadline
	s.BettingDeadline = &d
	return nil
}

// AbortBettingSlot força um slot travado em apostas de volta a idle e
// reenfileira os lutadores. Devolve o slot como estava.
func (m *Manager) AbortBettingSlot(index int) (Slot, []Entry, error) {
	s, err := m.slot(index)
	if err != nil {
		return Slot{}, nil, err
	}
	if s.State != StateBetting {
		return Slot{}, nil, fmt.Errorf("slot %d: %w", index, ErrSlotNotBetting)
	}
	prev := s.clone()
	m.release(s)

	now := m.now()
	var requeued []Entry
	for _, id := range prev.Fighters {
		e, ok := m.entries[id]
		delete(m.entries, id)
		if !ok {
			e = Entry{FighterID: id}
		}
		e.JoinedAt = now
		if err := m.AddEntry(e); err == nil {
			requeued = append(requeued, e)
		}
	}
	return prev, requeued, nil
}

// ReportResult registra o resultado final e move combat -> payout.
func (m *Manager) ReportResult(index int, roundID string, result combat.Result) error {
	s, err := m.slot(index)
	if err != nil {
		return err
	}
	if s.State != StateCombat {
		return fmt.Errorf("slot %d: %w", index, ErrSlotNotCombat)
	}
	if s.ID != roundID {
		return fmt.Errorf("slot %d round %s: %w", index, roundID, ErrRoundMismatch)
	}
	if err := result.Validate(); err != nil {
		return err
	}
	if len(result.Placements) != len(s.Fighters) {
		return fmt.Errorf("slot %d: %w", index, ErrRosterMismatch)
	}
	for _, p := range result.Placements {
		if i, ok := m.active[p.FighterID]; !ok || i != index {
			return fmt.Errorf("slot %d fighter %s: %w", index, p.FighterID, ErrRosterMismatch)
		}
	}
	now := m.now()
	r := result
	s.Result = &r
	s.State = StatePayout
	s.PayoutStartedAt = &now
	return nil
}

// Restore descreve uma rodada em apostas recarregada do armazenamento.
type Restore struct {
	Index           int
	RoundID         string
	Fighters        []string
	Entries         []Entry // flags de fila por lutador; ausentes viram Entry{FighterID}
	BettingDeadline *time.Time
}

// RestoreSlot recoloca uma rodada em apostas sem passar pelo pull da fila.
func (m *Manager) RestoreSlot(r Restore) error {
	s, err := m.slot(r.Index)
	if err != nil {
		return err
	}
	if s.State != StateIdle {
		return fmt.Errorf("slot %d: %w", r.Index, ErrSlotBusy)
	}
	if len(r.Fighters) == 0 || r.RoundID == "" {
		return fmt.Errorf("slot %d: empty restore", r.Index)
	}
	for _, id := range r.Fighters {
		if _, ok := m.active[id]; ok {
			return fmt.Errorf("restore slot %d: %s: %w", r.Index, id, ErrFighterActive)
		}
	}
	known := make(map[string]Entry, len(r.Entries))
	for _, e := range r.Entries {
		known[e.FighterID] = e
	}
	for _, id := range r.Fighters {
		m.RemoveFromQueue(id)
		m.active[id] = r.Index
		e, ok := known[id]
		if !ok {
			e = Entry{FighterID: id}
		}
		m.entries[id] = e
	}
	s.ID = r.RoundID
	s.State = StateBetting
	s.Fighters = append([]string(nil), r.Fighters...)
	if r.BettingDeadline != nil {
		d := *r.BettingDeadline
		s.BettingDeadline = &d
	} else if m.cfg.DeadlineMode == DeadlineImmediate {
		d := m.now().Add(m.cfg.BettingDuration)
		s.BettingDeadline = &d
	}
	if m.hooks.OnSlotFilled != nil {
		m.hooks.OnSlotFilled(s.clone())
	}
	return nil
}

func sortEntries(q []Entry) {
	sort.SliceStable(q, func(i, j int) bool {
		if q[i].Priority != q[j].Priority {
			return q[i].Priority < q[j].Priority
		}
		return q[i].JoinedAt.Before(q[j].JoinedAt)
	})
}
