package grid

import (
	"fmt"
	"math/big"
)

// ClaimAirdrop pays caller the flat airdrop of its best tier, at most once per
// AirdropInterval. Large holders outrank small holders, which outrank plain
// position holders.
func (e *Engine) ClaimAirdrop(caller [20]byte) (*big.Int, error) {
	var paid *big.Int
	err := e.execute(func() error {
		if isZeroAddress(caller) {
			return fmt.Errorf("%w: caller address required", ErrInvalidInput)
		}
		acc, err := e.loadAccount(caller)
		if err != nil {
			return err
		}
		now := e.now()
		if acc.LastAirdrop != 0 && now < acc.LastAirdrop+e.params.AirdropInterval {
			return ErrAlreadyClaimed
		}
		tier, amount, err := e.airdropTier(acc)
		if err != nil {
			return err
		}
		acc.LastAirdrop = now
		acc.Earned = new(big.Int).Add(acc.Earned, amount)
		if err := e.state.GridAccountPut(acc); err != nil {
			return err
		}
		if err := e.pay(e.reward, caller, amount); err != nil {
			return err
		}
		paid = amount
		e.emit(AirdropClaimedEvent(caller, tier, amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (e *Engine) airdropTier(acc *Account) (string, *big.Int, error) {
	if e.registry != nil {
		large, err := e.registry.IsLargeHolder(acc.Address)
		if err != nil {
			return "", nil, err
		}
		if large && validAmount(e.params.AirdropLarge) {
			return HolderLarge.String(), newBigInt(e.params.AirdropLarge), nil
		}
		small, err := e.registry.IsSmallHolder(acc.Address)
		if err != nil {
			return "", nil, err
		}
		if small && validAmount(e.params.AirdropSmall) {
			return HolderSmall.String(), newBigInt(e.params.AirdropSmall), nil
		}
	}
	if len(acc.Positions) > 0 && validAmount(e.params.AirdropHolder) {
		return "position", newBigInt(e.params.AirdropHolder), nil
	}
	return "", nil, ErrNotEligible
}
