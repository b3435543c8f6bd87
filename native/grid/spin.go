package grid

import (
	"fmt"
	"math/big"
)

// Spin resolves the position's periodic draw. The reward is
// price × SpinBaseBps × multiplier / 100 and is booked as periodic income,
// which may freeze the position. With SettleSpinOnDraw the reward is also paid
// immediately in the reward asset and excluded from a later withdrawal.
func (e *Engine) Spin(positionID uint64, caller [20]byte) (*SpinResult, error) {
	var res *SpinResult
	err := e.execute(func() error {
		pos, err := e.loadOwnedPosition(positionID, caller)
		if err != nil {
			return err
		}
		if !pos.Active {
			return ErrPositionInactive
		}
		now := e.now()
		if pos.LastDraw != 0 && now < pos.LastDraw+e.params.SpinCooldown {
			return fmt.Errorf("%w: next draw at %d", ErrCooldownActive, pos.LastDraw+e.params.SpinCooldown)
		}
		draw, err := e.params.Tiers.Draw(e.sourceFn(pos.ID, pos.Draws))
		if err != nil {
			return err
		}
		pos.Draws++

		amount := applyBps(pos.Price, e.params.SpinBaseBps)
		amount.Mul(amount, new(big.Int).SetUint64(draw.Multiplier))
		amount.Quo(amount, new(big.Int).SetUint64(100))
		res = &SpinResult{
			PositionID: pos.ID,
			Tier:       draw.Tier,
			Multiplier: draw.Multiplier,
			Amount:     amount,
		}

		if amount.Sign() == 0 {
			pos.LastDraw = now
			if err := e.state.GridPositionPut(pos); err != nil {
				return err
			}
			e.emit(WheelSpunEvent(pos, res, draw.Sample))
			return nil
		}
		settle := e.params.SettleSpinOnDraw
		if settle {
			pos.WheelPaid = new(big.Int).Add(pos.WheelPaid, amount)
		}
		e.emit(WheelSpunEvent(pos, res, draw.Sample))
		frozen, err := e.accrue(pos, amount, SourcePeriodic)
		if err != nil {
			return err
		}
		res.Frozen = frozen
		if !settle {
			return nil
		}
		if err := e.creditEarned(caller, amount); err != nil {
			return err
		}
		return e.pay(e.reward, caller, amount)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
