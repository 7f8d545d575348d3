package combat

// Move é a ação escolhida por um lutador em um turno.
type Move string

const (
	MoveHighStrike Move = "HIGH_STRIKE"
	MoveMidStrike  Move = "MID_STRIKE"
	MoveLowStrike  Move = "LOW_STRIKE"
	MoveGuardHigh  Move = "GUARD_HIGH"
	MoveGuardMid   Move = "GUARD_MID"
	MoveGuardLow   Move = "GUARD_LOW"
	MoveDodge      Move = "DODGE"
	MoveCatch      Move = "CATCH"
	MoveSpecial    Move = "SPECIAL"
)

var (
	strikes = []Move{MoveHighStrike, MoveMidStrike, MoveLowStrike}
	guards  = []Move{MoveGuardHigh, MoveGuardMid, MoveGuardLow}
)

// IsStrike indica golpe em uma das três zonas.
func (m Move) IsStrike() bool {
	return m == MoveHighStrike || m == MoveMidStrike || m == MoveLowStrike
}

// blocks indica se a guarda m bloqueia o golpe informado.
func (m Move) blocks(strike Move) bool {
	switch strike {
	case MoveHighStrike:
		return m == MoveGuardHigh
	case MoveMidStrike:
		return m == MoveGuardMid
	case MoveLowStrike:
		return m == MoveGuardLow
	}
	return false
}

// Valid verifica se o movimento pertence ao conjunto conhecido.
func (m Move) Valid() bool {
	switch m {
	case MoveHighStrike, MoveMidStrike, MoveLowStrike,
		MoveGuardHigh, MoveGuardMid, MoveGuardLow,
		MoveDodge, MoveCatch, MoveSpecial:
		return true
	}
	return false
}
