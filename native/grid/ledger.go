package grid

import (
	"fmt"
	"math/big"
)

// Purchase debits the rank's price from buyer and opens a new active position.
// The sponsor candidate is recorded only when the buyer has no sponsor yet and
// the candidate is a distinct registered account outside the buyer's own
// downline; any other candidate is ignored. Referral payouts and the pool
// credit are part of the same transaction.
func (e *Engine) Purchase(buyer [20]byte, rank Rank, sponsorCandidate [20]byte) (uint64, error) {
	var id uint64
	err := e.execute(func() error {
		if isZeroAddress(buyer) {
			return fmt.Errorf("%w: buyer address required", ErrInvalidInput)
		}
		if !rank.Valid() {
			return fmt.Errorf("%w: unknown rank %d", ErrInvalidInput, rank)
		}
		price := e.params.PriceOf(rank)
		if !validAmount(price) {
			return fmt.Errorf("%w: rank %s has no price", ErrInvalidInput, rank)
		}
		if err := e.debit(e.purchase, buyer, price); err != nil {
			return err
		}
		next, err := e.state.GridNextPositionID()
		if err != nil {
			return err
		}
		id = next
		pos := &Position{
			ID:           id,
			Owner:        buyer,
			Rank:         rank,
			Price:        new(big.Int).Set(price),
			StaticIncome: big.NewInt(0),
			WheelIncome:  big.NewInt(0),
			WheelPaid:    big.NewInt(0),
			PurchasedAt:  e.now(),
			Active:       true,
		}
		if err := e.state.GridPositionPut(pos); err != nil {
			return err
		}

		acc, err := e.loadAccount(buyer)
		if err != nil {
			return err
		}
		if _, err := e.linkSponsor(acc, sponsorCandidate); err != nil {
			return err
		}
		acc.Positions = append(acc.Positions, id)
		acc.Invested = new(big.Int).Add(acc.Invested, price)
		acc.Registered = true
		if err := e.refreshLevel(acc); err != nil {
			return err
		}
		if err := e.state.GridAccountPut(acc); err != nil {
			return err
		}
		sponsor := ""
		if acc.HasSponsor {
			sponsor = hexAddr(acc.Sponsor)
		}
		e.emit(PositionPurchasedEvent(pos, sponsor))

		if err := e.creditPool("purchase", buyer, applyBps(price, e.params.PoolBps)); err != nil {
			return err
		}
		return e.payOnPurchase(buyer, rank, price)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Withdraw pays the owner the position's unsettled income less the withdrawal
// fee, in the reward asset, and zeroes every income field.
func (e *Engine) Withdraw(positionID uint64, caller [20]byte) (*WithdrawResult, error) {
	var res *WithdrawResult
	err := e.execute(func() error {
		pos, err := e.loadOwnedPosition(positionID, caller)
		if err != nil {
			return err
		}
		if !pos.Active {
			return ErrPositionInactive
		}
		total := pos.TotalIncome()
		if total.Sign() <= 0 {
			return ErrNothingToWithdraw
		}
		payable := new(big.Int).Sub(total, pos.WheelPaid)
		if payable.Sign() < 0 {
			payable.SetInt64(0)
		}
		fee := applyBps(payable, e.params.WithdrawFeeBps)
		net := new(big.Int).Sub(payable, fee)

		pos.resetIncome()
		if err := e.state.GridPositionPut(pos); err != nil {
			return err
		}
		if err := e.creditEarned(caller, net); err != nil {
			return err
		}
		if err := e.pay(e.reward, caller, net); err != nil {
			return err
		}
		res = &WithdrawResult{PositionID: pos.ID, Gross: payable, Fee: fee, Net: net}
		e.emit(PositionWithdrawnEvent(pos, res))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reactivate charges the reactivation cost in both assets and returns a
// frozen position to service with zero income.
func (e *Engine) Reactivate(positionID uint64, caller [20]byte) error {
	return e.execute(func() error {
		pos, err := e.loadOwnedPosition(positionID, caller)
		if err != nil {
			return err
		}
		if pos.Active {
			return ErrPositionAlreadyActive
		}
		cost := applyBps(pos.Price, e.params.ReactivationBps)
		if err := e.debit(e.purchase, caller, cost); err != nil {
			return err
		}
		if err := e.debit(e.reward, caller, cost); err != nil {
			return err
		}
		pos.Active = true
		pos.resetIncome()
		if err := e.state.GridPositionPut(pos); err != nil {
			return err
		}
		e.emit(PositionReactivatedEvent(pos, cost))
		return nil
	})
}

// HasRankPosition reports whether addr owns a position of exactly rank.
func (e *Engine) HasRankPosition(addr [20]byte, rank Rank) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return false, err
	}
	return e.holdsRank(acc, rank)
}

func (e *Engine) holdsRank(acc *Account, rank Rank) (bool, error) {
	for _, id := range acc.Positions {
		pos, err := e.loadPosition(id)
		if err != nil {
			return false, err
		}
		if pos.Rank == rank {
			return true, nil
		}
	}
	return false, nil
}
