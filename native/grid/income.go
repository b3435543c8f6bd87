package grid

import (
	"fmt"
	"math/big"
)

// AccrueIncome credits amount to a position's income field for source. It is
// the operator-fed entry point and requires the operator role. The position
// freezes once its total income reaches price × FreezeMultiple.
func (e *Engine) AccrueIncome(cap Capability, positionID uint64, amount *big.Int, source IncomeSource) (bool, error) {
	var frozen bool
	err := e.execute(func() error {
		if err := requireRole(cap, RoleOperator); err != nil {
			return err
		}
		pos, err := e.loadPosition(positionID)
		if err != nil {
			return err
		}
		frozen, err = e.accrue(pos, amount, source)
		return err
	})
	if err != nil {
		return false, err
	}
	return frozen, nil
}

// accrue mutates and persists pos. It reports whether this accrual froze it.
func (e *Engine) accrue(pos *Position, amount *big.Int, source IncomeSource) (bool, error) {
	if !pos.Active {
		return false, ErrPositionInactive
	}
	if !validAmount(amount) {
		return false, fmt.Errorf("%w: accrual amount must be positive", ErrInvalidInput)
	}
	switch source {
	case SourcePeriodic:
		pos.WheelIncome = new(big.Int).Add(pos.WheelIncome, amount)
		pos.LastDraw = e.now()
	case SourceOperator:
		pos.StaticIncome = new(big.Int).Add(pos.StaticIncome, amount)
	default:
		return false, fmt.Errorf("%w: unknown income source %d", ErrInvalidInput, source)
	}
	e.emit(IncomeAccruedEvent(pos, source, amount))

	threshold := e.params.freezeThreshold(pos.Price)
	frozen := pos.TotalIncome().Cmp(threshold) >= 0
	if frozen {
		pos.Active = false
		e.emit(PositionFrozenEvent(pos, threshold))
	}
	if err := e.state.GridPositionPut(pos); err != nil {
		return false, err
	}
	return frozen, nil
}
