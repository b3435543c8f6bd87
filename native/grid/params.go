package grid

import (
	"fmt"
	"math/big"

	"gridchain/native/wheel"
)

const basisPointsDenom = 10_000

var bpsDenom = big.NewInt(basisPointsDenom)

// Params holds the economy configuration. Rates are basis points; durations
// are seconds.
type Params struct {
	// Prices holds the five shared price points indexed by Rank.PricePoint.
	Prices []*big.Int

	FreezeMultiple      uint64
	WithdrawFeeBps      uint64
	ReactivationBps     uint64
	DirectReferralBps   uint64
	IndirectReferralBps uint64
	PoolBps             uint64

	SpinBaseBps      uint64
	SpinCooldown     uint64
	SettleSpinOnDraw bool
	Tiers            wheel.Table

	LargeCohortBps  uint64
	SmallCohortBps  uint64
	MemberCohortBps uint64
	// LevelShareBps splits the member share across LevelA1..LevelE1.
	LevelShareBps []uint64
	// LevelThresholds is the minimum owned-position count for LevelA1..LevelE1.
	LevelThresholds   []uint64
	CarryEmptyCohorts bool

	AirdropInterval uint64
	AirdropLarge    *big.Int
	AirdropSmall    *big.Int
	AirdropHolder   *big.Int

	MaxSponsorDepth uint64
}

// DefaultParams returns the stock economy expressed in whole units scaled by
// 10^decimals.
func DefaultParams(decimals uint8) Params {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	units := func(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), unit) }
	return Params{
		Prices:              []*big.Int{units(100), units(300), units(500), units(1000), units(3000)},
		FreezeMultiple:      3,
		WithdrawFeeBps:      500,
		ReactivationBps:     5000,
		DirectReferralBps:   2000,
		IndirectReferralBps: 1000,
		PoolBps:             1000,
		SpinBaseBps:         100,
		SpinCooldown:        24 * 60 * 60,
		SettleSpinOnDraw:    true,
		Tiers:               wheel.DefaultTable(),
		LargeCohortBps:      3000,
		SmallCohortBps:      3000,
		MemberCohortBps:     4000,
		LevelShareBps:       []uint64{3500, 3000, 2000, 1000, 500},
		LevelThresholds:     []uint64{3, 5, 10, 20, 50},
		CarryEmptyCohorts:   true,
		AirdropInterval:     24 * 60 * 60,
		AirdropLarge:        units(50),
		AirdropSmall:        units(20),
		AirdropHolder:       units(5),
		MaxSponsorDepth:     64,
	}
}

// Validate enforces the structural invariants of the configuration.
func (p Params) Validate() error {
	if len(p.Prices) != PricePoints {
		return fmt.Errorf("%w: expected %d prices, got %d", ErrInvalidParams, PricePoints, len(p.Prices))
	}
	for i, price := range p.Prices {
		if price == nil || price.Sign() < 0 {
			return fmt.Errorf("%w: price %d must be non-negative", ErrInvalidParams, i)
		}
	}
	if p.FreezeMultiple == 0 {
		return fmt.Errorf("%w: freeze multiple must be positive", ErrInvalidParams)
	}
	for name, bps := range map[string]uint64{
		"withdraw fee":      p.WithdrawFeeBps,
		"reactivation":      p.ReactivationBps,
		"pool":              p.PoolBps,
		"spin base":         p.SpinBaseBps,
		"direct referral":   p.DirectReferralBps,
		"indirect referral": p.IndirectReferralBps,
	} {
		if bps > basisPointsDenom {
			return fmt.Errorf("%w: %s bps %d exceeds 100%%", ErrInvalidParams, name, bps)
		}
	}
	// Referral and pool allocations are carved out of the purchase price.
	if p.DirectReferralBps+p.IndirectReferralBps+p.PoolBps > basisPointsDenom {
		return fmt.Errorf("%w: referral and pool allocations exceed 100%%", ErrInvalidParams)
	}
	if p.LargeCohortBps+p.SmallCohortBps+p.MemberCohortBps != basisPointsDenom {
		return fmt.Errorf("%w: cohort split must sum to 100%%", ErrInvalidParams)
	}
	if len(p.LevelShareBps) != UpperLevels || len(p.LevelThresholds) != UpperLevels {
		return fmt.Errorf("%w: expected %d level shares and thresholds", ErrInvalidParams, UpperLevels)
	}
	var levelTotal uint64
	for _, bps := range p.LevelShareBps {
		levelTotal += bps
	}
	if levelTotal > basisPointsDenom {
		return fmt.Errorf("%w: level shares sum to %d bps", ErrInvalidParams, levelTotal)
	}
	for i, threshold := range p.LevelThresholds {
		if threshold == 0 {
			return fmt.Errorf("%w: level %s threshold must be positive", ErrInvalidParams, Level(i+1))
		}
		if i > 0 && threshold <= p.LevelThresholds[i-1] {
			return fmt.Errorf("%w: level thresholds must be strictly increasing", ErrInvalidParams)
		}
	}
	if err := p.Tiers.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	for name, amount := range map[string]*big.Int{
		"large airdrop":  p.AirdropLarge,
		"small airdrop":  p.AirdropSmall,
		"holder airdrop": p.AirdropHolder,
	} {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidParams, name)
		}
	}
	if p.MaxSponsorDepth == 0 {
		return fmt.Errorf("%w: sponsor depth cap must be positive", ErrInvalidParams)
	}
	return nil
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	clone.Prices = make([]*big.Int, len(p.Prices))
	for i, price := range p.Prices {
		clone.Prices[i] = newBigInt(price)
	}
	clone.Tiers = p.Tiers.Clone()
	clone.LevelShareBps = append([]uint64(nil), p.LevelShareBps...)
	clone.LevelThresholds = append([]uint64(nil), p.LevelThresholds...)
	clone.AirdropLarge = newBigInt(p.AirdropLarge)
	clone.AirdropSmall = newBigInt(p.AirdropSmall)
	clone.AirdropHolder = newBigInt(p.AirdropHolder)
	return clone
}

// PriceOf returns the configured price for rank, or nil when unset.
func (p Params) PriceOf(rank Rank) *big.Int {
	idx := rank.PricePoint()
	if idx < 0 || idx >= len(p.Prices) || p.Prices[idx] == nil {
		return nil
	}
	return new(big.Int).Set(p.Prices[idx])
}

// LevelFor returns the highest level whose threshold count is met.
func (p Params) LevelFor(positions uint64) Level {
	level := LevelNone
	for i, threshold := range p.LevelThresholds {
		if positions >= threshold {
			level = Level(i + 1)
		}
	}
	return level
}

// freezeThreshold is price × FreezeMultiple.
func (p Params) freezeThreshold(price *big.Int) *big.Int {
	return new(big.Int).Mul(newBigInt(price), new(big.Int).SetUint64(p.FreezeMultiple))
}

// applyBps returns floor(amount × bps / 10000).
func applyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, bpsDenom)
}

// splitBps divides amount across weights using cumulative flooring so the
// parts sum to floor(amount × Σweights / 10000) with no per-part loss.
func splitBps(amount *big.Int, weights []uint64) []*big.Int {
	parts := make([]*big.Int, len(weights))
	var cumulative uint64
	prev := big.NewInt(0)
	for i, w := range weights {
		cumulative += w
		upto := applyBps(amount, cumulative)
		parts[i] = new(big.Int).Sub(upto, prev)
		prev = upto
	}
	return parts
}
