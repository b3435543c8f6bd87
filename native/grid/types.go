package grid

import (
	"fmt"
	"math/big"
	"strings"
)

// Rank is one of the ten purchase tiers. The two tracks share price points:
// A and A1 cost the same, as do B and B1, and so on.
type Rank uint8

const (
	RankA Rank = iota + 1
	RankB
	RankC
	RankD
	RankE
	RankA1
	RankB1
	RankC1
	RankD1
	RankE1
)

// PricePoints is the number of distinct prices shared by the two tracks.
const PricePoints = 5

var rankNames = [...]string{"", "A", "B", "C", "D", "E", "A1", "B1", "C1", "D1", "E1"}

// Valid reports whether r names one of the ten ranks.
func (r Rank) Valid() bool { return r >= RankA && r <= RankE1 }

// PricePoint returns the zero-based index into the price table.
func (r Rank) PricePoint() int {
	if !r.Valid() {
		return -1
	}
	return int(r-RankA) % PricePoints
}

func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", uint8(r))
	}
	return rankNames[r]
}

// ParseRank resolves a rank name such as "B" or "c1".
func ParseRank(s string) (Rank, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for i := RankA; i <= RankE1; i++ {
		if rankNames[i] == normalized {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown rank %q", ErrInvalidInput, s)
}

// Level is the dividend classification derived from an account's position
// count. The five upper levels are named after the second-track ranks.
type Level uint8

const (
	LevelNone Level = iota
	LevelA1
	LevelB1
	LevelC1
	LevelD1
	LevelE1
)

// UpperLevels is the number of dividend-bearing levels.
const UpperLevels = 5

var levelNames = [...]string{"none", "A1", "B1", "C1", "D1", "E1"}

func (l Level) String() string {
	if int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
	return levelNames[l]
}

// Valid reports whether l is LevelNone or an upper level.
func (l Level) Valid() bool { return l <= LevelE1 }

// ParseLevel resolves a level name.
func ParseLevel(s string) (Level, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for i := LevelA1; i <= LevelE1; i++ {
		if levelNames[i] == normalized {
			return i, nil
		}
	}
	if strings.EqualFold(normalized, "none") {
		return LevelNone, nil
	}
	return 0, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, s)
}

// IncomeSource identifies which income field an accrual credits.
type IncomeSource uint8

const (
	SourcePeriodic IncomeSource = iota + 1
	SourceOperator
)

func (s IncomeSource) String() string {
	switch s {
	case SourcePeriodic:
		return "periodic"
	case SourceOperator:
		return "operator"
	default:
		return fmt.Sprintf("IncomeSource(%d)", uint8(s))
	}
}

// Asset selects one of the two value ledgers.
type Asset uint8

const (
	AssetPurchase Asset = iota + 1
	AssetReward
)

func (a Asset) String() string {
	switch a {
	case AssetPurchase:
		return "purchase"
	case AssetReward:
		return "reward"
	default:
		return fmt.Sprintf("Asset(%d)", uint8(a))
	}
}

// HolderTier classifies collectible holders.
type HolderTier uint8

const (
	HolderNone HolderTier = iota
	HolderSmall
	HolderLarge
)

func (t HolderTier) String() string {
	switch t {
	case HolderSmall:
		return "small"
	case HolderLarge:
		return "large"
	default:
		return "none"
	}
}

// Position is a purchased, income-generating grid owned by one account.
type Position struct {
	ID           uint64   `json:"id"`
	Owner        [20]byte `json:"owner"`
	Rank         Rank     `json:"rank"`
	Price        *big.Int `json:"price"`
	StaticIncome *big.Int `json:"staticIncome"`
	WheelIncome  *big.Int `json:"wheelIncome"`
	// WheelPaid is the part of WheelIncome already transferred at draw time.
	WheelPaid   *big.Int `json:"wheelPaid"`
	PurchasedAt uint64   `json:"purchasedAt"`
	LastDraw    uint64   `json:"lastDraw"`
	Draws       uint64   `json:"draws"`
	Active      bool     `json:"active"`
}

// TotalIncome returns StaticIncome + WheelIncome.
func (p *Position) TotalIncome() *big.Int {
	return new(big.Int).Add(newBigInt(p.StaticIncome), newBigInt(p.WheelIncome))
}

func (p *Position) resetIncome() {
	p.StaticIncome = big.NewInt(0)
	p.WheelIncome = big.NewInt(0)
	p.WheelPaid = big.NewInt(0)
}

func (p *Position) ensureDefaults() *Position {
	if p.Price == nil {
		p.Price = big.NewInt(0)
	}
	if p.StaticIncome == nil {
		p.StaticIncome = big.NewInt(0)
	}
	if p.WheelIncome == nil {
		p.WheelIncome = big.NewInt(0)
	}
	if p.WheelPaid == nil {
		p.WheelPaid = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Price = newBigInt(p.Price)
	clone.StaticIncome = newBigInt(p.StaticIncome)
	clone.WheelIncome = newBigInt(p.WheelIncome)
	clone.WheelPaid = newBigInt(p.WheelPaid)
	return &clone
}

// Account aggregates the per-address economy state.
type Account struct {
	Address     [20]byte   `json:"address"`
	Sponsor     [20]byte   `json:"sponsor"`
	HasSponsor  bool       `json:"hasSponsor"`
	Referrals   [][20]byte `json:"referrals"`
	Positions   []uint64   `json:"positions"`
	Invested    *big.Int   `json:"invested"`
	Earned      *big.Int   `json:"earned"`
	LastAirdrop uint64     `json:"lastAirdrop"`
	Level       Level      `json:"level"`
	Registered  bool       `json:"registered"`
}

func newAccount(addr [20]byte) *Account {
	return &Account{Address: addr, Invested: big.NewInt(0), Earned: big.NewInt(0)}
}

func (a *Account) ensureDefaults() *Account {
	if a.Invested == nil {
		a.Invested = big.NewInt(0)
	}
	if a.Earned == nil {
		a.Earned = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Referrals = append([][20]byte(nil), a.Referrals...)
	clone.Positions = append([]uint64(nil), a.Positions...)
	clone.Invested = newBigInt(a.Invested)
	clone.Earned = newBigInt(a.Earned)
	return &clone
}

// Pool is the running dividend balance.
type Pool struct {
	Balance          *big.Int `json:"balance"`
	Carried          *big.Int `json:"carried"`
	TotalCredited    *big.Int `json:"totalCredited"`
	TotalDistributed *big.Int `json:"totalDistributed"`
	Distributions    uint64   `json:"distributions"`
	LastDistribution uint64   `json:"lastDistribution"`
}

func newPool() *Pool {
	return &Pool{
		Balance:          big.NewInt(0),
		Carried:          big.NewInt(0),
		TotalCredited:    big.NewInt(0),
		TotalDistributed: big.NewInt(0),
	}
}

func (p *Pool) ensureDefaults() *Pool {
	if p.Balance == nil {
		p.Balance = big.NewInt(0)
	}
	if p.Carried == nil {
		p.Carried = big.NewInt(0)
	}
	if p.TotalCredited == nil {
		p.TotalCredited = big.NewInt(0)
	}
	if p.TotalDistributed == nil {
		p.TotalDistributed = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Balance = newBigInt(p.Balance)
	clone.Carried = newBigInt(p.Carried)
	clone.TotalCredited = newBigInt(p.TotalCredited)
	clone.TotalDistributed = newBigInt(p.TotalDistributed)
	return &clone
}

// SpinResult is returned by Spin.
type SpinResult struct {
	PositionID uint64
	Tier       int
	Multiplier uint64
	Amount     *big.Int
	Frozen     bool
}

// WithdrawResult is returned by Withdraw.
type WithdrawResult struct {
	PositionID uint64
	Gross      *big.Int
	Fee        *big.Int
	Net        *big.Int
}

// Distribution summarises a Distribute call.
type Distribution struct {
	Drained     *big.Int
	LargeShare  *big.Int
	SmallShare  *big.Int
	MemberShare *big.Int
	Paid        *big.Int
	Carried     *big.Int
	Recipients  uint64
	Cohorts     []CohortPayout
}

// Dust is the floor-division loss retained by the module account.
func (d *Distribution) Dust() *big.Int {
	dust := new(big.Int).Sub(d.Drained, d.Paid)
	return dust.Sub(dust, d.Carried)
}

// CohortPayout records how one cohort's share was paid.
type CohortPayout struct {
	Cohort    string
	Share     *big.Int
	Members   uint64
	PerMember *big.Int
	Paid      *big.Int
	Carried   bool
}
