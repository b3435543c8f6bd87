package config

import (
	"fmt"
	"math/big"
	"strings"

	nativecommon "gridchain/native/common"
	"gridchain/native/grid"
	"gridchain/native/wheel"
)

// DefaultGrid renders the stock economy for 18-decimal assets.
func DefaultGrid() Grid {
	return GridFromParams(grid.DefaultParams(18))
}

// GridFromParams renders runtime params into their config form.
func GridFromParams(p grid.Params) Grid {
	out := Grid{
		FreezeMultiple:         p.FreezeMultiple,
		WithdrawFeeBps:         p.WithdrawFeeBps,
		ReactivationBps:        p.ReactivationBps,
		DirectReferralBps:      p.DirectReferralBps,
		IndirectReferralBps:    p.IndirectReferralBps,
		PoolBps:                p.PoolBps,
		SpinBaseBps:            p.SpinBaseBps,
		SpinCooldownSeconds:    p.SpinCooldown,
		SettleSpinOnDraw:       p.SettleSpinOnDraw,
		Tiers:                  append([]wheel.Tier(nil), p.Tiers...),
		LargeCohortBps:         p.LargeCohortBps,
		SmallCohortBps:         p.SmallCohortBps,
		MemberCohortBps:        p.MemberCohortBps,
		LevelShareBps:          append([]uint64(nil), p.LevelShareBps...),
		LevelThresholds:        append([]uint64(nil), p.LevelThresholds...),
		CarryEmptyCohorts:      p.CarryEmptyCohorts,
		AirdropIntervalSeconds: p.AirdropInterval,
		AirdropLarge:           amountString(p.AirdropLarge),
		AirdropSmall:           amountString(p.AirdropSmall),
		AirdropHolder:          amountString(p.AirdropHolder),
		MaxSponsorDepth:        p.MaxSponsorDepth,
	}
	for _, price := range p.Prices {
		out.Prices = append(out.Prices, amountString(price))
	}
	return out
}

// Params parses the economy section into runtime params and validates them.
// An empty section yields the stock economy scaled by decimals.
func (g Grid) Params(decimals uint8) (grid.Params, error) {
	if len(g.Prices) == 0 {
		return grid.DefaultParams(decimals), nil
	}
	out := grid.Params{
		FreezeMultiple:      g.FreezeMultiple,
		WithdrawFeeBps:      g.WithdrawFeeBps,
		ReactivationBps:     g.ReactivationBps,
		DirectReferralBps:   g.DirectReferralBps,
		IndirectReferralBps: g.IndirectReferralBps,
		PoolBps:             g.PoolBps,
		SpinBaseBps:         g.SpinBaseBps,
		SpinCooldown:        g.SpinCooldownSeconds,
		SettleSpinOnDraw:    g.SettleSpinOnDraw,
		Tiers:               append(wheel.Table(nil), g.Tiers...),
		LargeCohortBps:      g.LargeCohortBps,
		SmallCohortBps:      g.SmallCohortBps,
		MemberCohortBps:     g.MemberCohortBps,
		LevelShareBps:       append([]uint64(nil), g.LevelShareBps...),
		LevelThresholds:     append([]uint64(nil), g.LevelThresholds...),
		CarryEmptyCohorts:   g.CarryEmptyCohorts,
		AirdropInterval:     g.AirdropIntervalSeconds,
		MaxSponsorDepth:     g.MaxSponsorDepth,
	}
	for i, raw := range g.Prices {
		price, err := parseUintAmount(raw)
		if err != nil {
			return out, fmt.Errorf("invalid grid.Prices[%d]: %w", i, err)
		}
		out.Prices = append(out.Prices, price)
	}
	var err error
	if out.AirdropLarge, err = parseUintAmount(g.AirdropLarge); err != nil {
		return out, fmt.Errorf("invalid grid.AirdropLarge: %w", err)
	}
	if out.AirdropSmall, err = parseUintAmount(g.AirdropSmall); err != nil {
		return out, fmt.Errorf("invalid grid.AirdropSmall: %w", err)
	}
	if out.AirdropHolder, err = parseUintAmount(g.AirdropHolder); err != nil {
		return out, fmt.Errorf("invalid grid.AirdropHolder: %w", err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// PurchaseQuota parses the quota section.
func (q Quota) PurchaseQuota() (nativecommon.Quota, error) {
	spend, err := parseUintAmount(q.MaxSpendPerEpoch)
	if err != nil {
		return nativecommon.Quota{}, fmt.Errorf("invalid quota.MaxSpendPerEpoch: %w", err)
	}
	epoch := q.EpochSeconds
	if epoch == 0 {
		epoch = 3600
	}
	return nativecommon.Quota{
		MaxRequestsPerEpoch: q.MaxPurchasesPerEpoch,
		MaxValuePerEpoch:    spend,
		EpochSeconds:        epoch,
	}, nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal integer", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%q must not be negative", raw)
	}
	return value, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
