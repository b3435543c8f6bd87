package grid

import (
	"fmt"
	"math/big"
)

const (
	cohortLarge = "large"
	cohortSmall = "small"
)

// creditPool adds amount to the dividend pool. The funds are already held by
// the module account.
func (e *Engine) creditPool(source string, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.Balance = new(big.Int).Add(pool.Balance, amount)
	pool.TotalCredited = new(big.Int).Add(pool.TotalCredited, amount)
	if err := e.state.GridPoolPut(pool); err != nil {
		return err
	}
	e.emit(PoolCreditedEvent(source, from, amount, pool.Balance))
	return nil
}

// AddToPool moves amount of the purchase asset from from into the dividend
// pool. The transfer uses from's allowance to the module account.
func (e *Engine) AddToPool(from [20]byte, amount *big.Int) error {
	return e.execute(func() error {
		if isZeroAddress(from) {
			return fmt.Errorf("%w: source address required", ErrInvalidInput)
		}
		if !validAmount(amount) {
			return fmt.Errorf("%w: deposit must be positive", ErrInvalidInput)
		}
		if err := e.debit(e.purchase, from, amount); err != nil {
			return err
		}
		return e.creditPool("deposit", from, new(big.Int).Set(amount))
	})
}

// Distribute drains the pool and splits it between the large-holder cohort,
// the small-holder cohort and the five member levels. Every cohort share is
// floor-divided across its members; the dust stays with the module account.
// Shares of empty cohorts are carried back into the pool when
// CarryEmptyCohorts is set.
func (e *Engine) Distribute(cap Capability) (*Distribution, error) {
	var dist *Distribution
	err := e.execute(func() error {
		if err := requireRole(cap, RoleOperator); err != nil {
			return err
		}
		pool, err := e.loadPool()
		if err != nil {
			return err
		}
		if pool.Balance.Sign() <= 0 {
			return ErrEmptyPool
		}
		drained := new(big.Int).Set(pool.Balance)
		shares := splitBps(drained, []uint64{
			e.params.LargeCohortBps,
			e.params.SmallCohortBps,
			e.params.MemberCohortBps,
		})
		dist = &Distribution{
			Drained:     drained,
			LargeShare:  shares[0],
			SmallShare:  shares[1],
			MemberShare: shares[2],
			Paid:        big.NewInt(0),
			Carried:     big.NewInt(0),
		}

		large, err := e.holderCohort(HolderLarge)
		if err != nil {
			return err
		}
		if err := e.payCohort(dist, cohortLarge, shares[0], large); err != nil {
			return err
		}
		small, err := e.holderCohort(HolderSmall)
		if err != nil {
			return err
		}
		if err := e.payCohort(dist, cohortSmall, shares[1], small); err != nil {
			return err
		}
		levelShares := splitBps(shares[2], e.params.LevelShareBps)
		for i, share := range levelShares {
			level := Level(i + 1)
			members, err := e.state.GridLevelMembers(level)
			if err != nil {
				return err
			}
			if err := e.payCohort(dist, level.String(), share, weightEach(members)); err != nil {
				return err
			}
		}

		pool.Balance = new(big.Int).Set(dist.Carried)
		pool.Carried = new(big.Int).Set(dist.Carried)
		pool.TotalDistributed = new(big.Int).Add(pool.TotalDistributed, dist.Paid)
		pool.Distributions++
		pool.LastDistribution = e.now()
		if err := e.state.GridPoolPut(pool); err != nil {
			return err
		}
		e.emit(DividendDistributedEvent(dist))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dist, nil
}

// weighted is one payout recipient holding weight cohort slots.
type weighted struct {
	addr   [20]byte
	weight uint64
}

func weightEach(addrs [][20]byte) []weighted {
	out := make([]weighted, len(addrs))
	for i, addr := range addrs {
		out[i] = weighted{addr: addr, weight: 1}
	}
	return out
}

// holderCohort resolves the owners of every token in tier. An owner holding
// several tokens receives one slot per token.
func (e *Engine) holderCohort(tier HolderTier) ([]weighted, error) {
	if e.registry == nil {
		return nil, nil
	}
	tokens, err := e.registry.Tokens(tier)
	if err != nil {
		return nil, err
	}
	var count uint64
	switch tier {
	case HolderLarge:
		count, err = e.registry.LargeHolderCount()
	case HolderSmall:
		count, err = e.registry.SmallHolderCount()
	}
	if err != nil {
		return nil, err
	}
	if count != uint64(len(tokens)) {
		return nil, fmt.Errorf("%w: %s tier reports %d, lists %d", ErrRegistryMismatch, tier, count, len(tokens))
	}
	index := make(map[[20]byte]int, len(tokens))
	var out []weighted
	for _, id := range tokens {
		owner, err := e.registry.OwnerOfToken(id)
		if err != nil {
			return nil, err
		}
		if i, ok := index[owner]; ok {
			out[i].weight++
			continue
		}
		index[owner] = len(out)
		out = append(out, weighted{addr: owner, weight: 1})
	}
	return out, nil
}

func (e *Engine) payCohort(dist *Distribution, name string, share *big.Int, recipients []weighted) error {
	payout := CohortPayout{Cohort: name, Share: new(big.Int).Set(share), PerMember: big.NewInt(0), Paid: big.NewInt(0)}
	var slots uint64
	for _, r := range recipients {
		slots += r.weight
	}
	payout.Members = slots
	if share.Sign() == 0 {
		dist.Cohorts = append(dist.Cohorts, payout)
		return nil
	}
	if slots == 0 {
		if e.params.CarryEmptyCohorts {
			payout.Carried = true
			dist.Carried.Add(dist.Carried, share)
			e.emit(DividendCarriedEvent(name, share))
		}
		dist.Cohorts = append(dist.Cohorts, payout)
		return nil
	}
	per := new(big.Int).Quo(share, new(big.Int).SetUint64(slots))
	payout.PerMember = per
	if per.Sign() > 0 {
		for _, r := range recipients {
			amount := new(big.Int).Mul(per, new(big.Int).SetUint64(r.weight))
			if err := e.creditEarned(r.addr, amount); err != nil {
				return err
			}
			if err := e.pay(e.purchase, r.addr, amount); err != nil {
				return err
			}
			payout.Paid.Add(payout.Paid, amount)
			dist.Recipients++
		}
	}
	dist.Paid.Add(dist.Paid, payout.Paid)
	dist.Cohorts = append(dist.Cohorts, payout)
	e.emit(DividendPaidEvent(&payout))
	return nil
}
