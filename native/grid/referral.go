package grid

import "math/big"

// linkSponsor records candidate as acc's sponsor when acc has none and the
// candidate is a distinct registered account whose upward chain does not
// contain acc. It persists the sponsor's referral list but leaves acc to the
// caller. Rejected candidates are not an error.
func (e *Engine) linkSponsor(acc *Account, candidate [20]byte) (bool, error) {
	if acc.HasSponsor || isZeroAddress(candidate) || candidate == acc.Address {
		return false, nil
	}
	sponsor, err := e.loadAccount(candidate)
	if err != nil {
		return false, err
	}
	if !sponsor.Registered {
		return false, nil
	}
	cyclic, err := e.inUpline(sponsor, acc)
	if err != nil || cyclic {
		return false, err
	}
	acc.Sponsor = candidate
	acc.HasSponsor = true
	sponsor.Referrals = append(sponsor.Referrals, acc.Address)
	if err := e.state.GridAccountPut(sponsor); err != nil {
		return false, err
	}
	e.emit(SponsorLinkedEvent(acc.Address, candidate))
	return true, nil
}

// inUpline reports whether target sits on from's sponsor chain. An account
// with no referrals cannot be anyone's ancestor, so the walk is skipped. The
// upward walk is bounded by MaxSponsorDepth; past the cap the answer comes
// from searching target's downline for from instead.
func (e *Engine) inUpline(from *Account, target *Account) (bool, error) {
	if len(target.Referrals) == 0 {
		return false, nil
	}
	cur := from
	for depth := uint64(0); depth < e.params.MaxSponsorDepth; depth++ {
		if cur.Address == target.Address {
			return true, nil
		}
		if !cur.HasSponsor {
			return false, nil
		}
		next, err := e.loadAccount(cur.Sponsor)
		if err != nil {
			return false, err
		}
		cur = next
	}
	return e.inDownline(target, from.Address)
}

// inDownline searches root's referral tree breadth first for addr.
func (e *Engine) inDownline(root *Account, addr [20]byte) (bool, error) {
	seen := map[[20]byte]struct{}{root.Address: {}}
	queue := append([][20]byte(nil), root.Referrals...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == addr {
			return true, nil
		}
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		acc, err := e.loadAccount(next)
		if err != nil {
			return false, err
		}
		queue = append(queue, acc.Referrals...)
	}
	return false, nil
}

// payOnPurchase pays the direct and indirect referral rewards for a purchase
// of rank at price. Each hop is eligible only if that sponsor holds a
// position of the same rank; the hops are evaluated independently.
func (e *Engine) payOnPurchase(buyer [20]byte, rank Rank, price *big.Int) error {
	acc, err := e.loadAccount(buyer)
	if err != nil || !acc.HasSponsor {
		return err
	}
	direct, err := e.loadAccount(acc.Sponsor)
	if err != nil {
		return err
	}
	if err := e.payReferral(buyer, direct, 1, rank, applyBps(price, e.params.DirectReferralBps)); err != nil {
		return err
	}
	if !direct.HasSponsor || direct.Sponsor == buyer || direct.Sponsor == direct.Address {
		return nil
	}
	indirect, err := e.loadAccount(direct.Sponsor)
	if err != nil {
		return err
	}
	return e.payReferral(buyer, indirect, 2, rank, applyBps(price, e.params.IndirectReferralBps))
}

func (e *Engine) payReferral(buyer [20]byte, sponsor *Account, hop int, rank Rank, amount *big.Int) error {
	eligible, err := e.holdsRank(sponsor, rank)
	if err != nil || !eligible || amount.Sign() == 0 {
		return err
	}
	if err := e.creditEarned(sponsor.Address, amount); err != nil {
		return err
	}
	if err := e.pay(e.purchase, sponsor.Address, amount); err != nil {
		return err
	}
	e.emit(ReferralPaidEvent(buyer, sponsor.Address, hop, rank, amount))
	return nil
}
