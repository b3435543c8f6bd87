// Package wheel implements the two-stage weighted draw used by the periodic
// position reward. The first stage picks a tier by walking cumulative
// probability mass over a fixed sample space; the second stage picks a
// multiplier uniformly inside the winning tier's inclusive range.
package wheel

import (
	"errors"
	"fmt"
)

const (
	// Space is the size of the stage-one sample space. Tier probabilities are
	// expressed as masses out of Space.
	Space uint64 = 1_000_000
	// BaseMultiplier is the multiplier returned when no tier fires, in percent.
	BaseMultiplier uint64 = 100
)

var (
	ErrNilSource         = errors.New("wheel: nil entropy source")
	ErrInvalidTier       = errors.New("wheel: invalid tier")
	ErrProbabilityBudget = errors.New("wheel: tier probabilities exceed sample space")
)

// Tier describes a multiplier range (in percent, inclusive) and the
// probability mass it occupies in the sample space.
type Tier struct {
	MinMultiplier uint64 `toml:"MinMultiplier" yaml:"min" json:"min"`
	MaxMultiplier uint64 `toml:"MaxMultiplier" yaml:"max" json:"max"`
	Probability   uint64 `toml:"Probability" yaml:"probability" json:"probability"`
}

// Table is the ordered tier list. Order matters: mass is accumulated in slice
// order and the first tier whose cumulative mass exceeds the sample wins.
type Table []Tier

// Source yields uniform integers. Uint64n must return a value in [0, n).
type Source interface {
	Uint64n(n uint64) uint64
}

// Result captures a resolved draw.
type Result struct {
	// Tier is the index of the winning tier, or -1 for the base multiplier.
	Tier       int
	Sample     uint64
	Multiplier uint64
}

// Validate checks every tier range and that the total mass fits in Space.
func (t Table) Validate() error {
	var total uint64
	for i, tier := range t {
		if tier.MinMultiplier == 0 || tier.MaxMultiplier < tier.MinMultiplier {
			return fmt.Errorf("%w: tier %d range [%d,%d]", ErrInvalidTier, i, tier.MinMultiplier, tier.MaxMultiplier)
		}
		if tier.Probability == 0 {
			return fmt.Errorf("%w: tier %d has zero probability", ErrInvalidTier, i)
		}
		total += tier.Probability
		if total > Space {
			return fmt.Errorf("%w: %d > %d", ErrProbabilityBudget, total, Space)
		}
	}
	return nil
}

// Residual returns the mass left for the base multiplier.
func (t Table) Residual() uint64 {
	var total uint64
	for _, tier := range t {
		total += tier.Probability
	}
	if total >= Space {
		return 0
	}
	return Space - total
}

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	return append(Table(nil), t...)
}

// Draw runs the two-stage draw against src.
func (t Table) Draw(src Source) (Result, error) {
	if src == nil {
		return Result{}, ErrNilSource
	}
	sample := src.Uint64n(Space)
	var cumulative uint64
	for i, tier := range t {
		cumulative += tier.Probability
		if cumulative > sample {
			span := tier.MaxMultiplier - tier.MinMultiplier + 1
			return Result{
				Tier:       i,
				Sample:     sample,
				Multiplier: tier.MinMultiplier + src.Uint64n(span),
			}, nil
		}
	}
	return Result{Tier: -1, Sample: sample, Multiplier: BaseMultiplier}, nil
}

// DefaultTable returns the stock tier schedule: 20% for 1.5–2×, 5% for 2–3×,
// 1% for 3–5× and 0.1% for 5–10×. The remaining 73.9% pays 1×.
func DefaultTable() Table {
	return Table{
		{MinMultiplier: 150, MaxMultiplier: 200, Probability: 200_000},
		{MinMultiplier: 200, MaxMultiplier: 300, Probability: 50_000},
		{MinMultiplier: 300, MaxMultiplier: 500, Probability: 10_000},
		{MinMultiplier: 500, MaxMultiplier: 1000, Probability: 1_000},
	}
}
