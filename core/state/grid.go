package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"gridchain/native/grid"
	"gridchain/native/wheel"
)

type storedPosition struct {
	ID           uint64
	Owner        [20]byte
	Rank         uint8
	Price        *big.Int
	StaticIncome *big.Int
	WheelIncome  *big.Int
	WheelPaid    *big.Int
	PurchasedAt  uint64
	LastDraw     uint64
	Draws        uint64
	Active       bool
}

func newStoredPosition(p *grid.Position) *storedPosition {
	return &storedPosition{
		ID:           p.ID,
		Owner:        p.Owner,
		Rank:         uint8(p.Rank),
		Price:        bigOrZero(p.Price),
		StaticIncome: bigOrZero(p.StaticIncome),
		WheelIncome:  bigOrZero(p.WheelIncome),
		WheelPaid:    bigOrZero(p.WheelPaid),
		PurchasedAt:  p.PurchasedAt,
		LastDraw:     p.LastDraw,
		Draws:        p.Draws,
		Active:       p.Active,
	}
}

func (s *storedPosition) toPosition() *grid.Position {
	return &grid.Position{
		ID:           s.ID,
		Owner:        s.Owner,
		Rank:         grid.Rank(s.Rank),
		Price:        bigOrZero(s.Price),
		StaticIncome: bigOrZero(s.StaticIncome),
		WheelIncome:  bigOrZero(s.WheelIncome),
		WheelPaid:    bigOrZero(s.WheelPaid),
		PurchasedAt:  s.PurchasedAt,
		LastDraw:     s.LastDraw,
		Draws:        s.Draws,
		Active:       s.Active,
	}
}

type storedAccount struct {
	Address     [20]byte
	Sponsor     [20]byte
	HasSponsor  bool
	Referrals   [][20]byte
	Positions   []uint64
	Invested    *big.Int
	Earned      *big.Int
	LastAirdrop uint64
	Level       uint8
	Registered  bool
}

func newStoredAccount(a *grid.Account) *storedAccount {
	return &storedAccount{
		Address:     a.Address,
		Sponsor:     a.Sponsor,
		HasSponsor:  a.HasSponsor,
		Referrals:   append([][20]byte(nil), a.Referrals...),
		Positions:   append([]uint64(nil), a.Positions...),
		Invested:    bigOrZero(a.Invested),
		Earned:      bigOrZero(a.Earned),
		LastAirdrop: a.LastAirdrop,
		Level:       uint8(a.Level),
		Registered:  a.Registered,
	}
}

func (s *storedAccount) toAccount() *grid.Account {
	return &grid.Account{
		Address:     s.Address,
		Sponsor:     s.Sponsor,
		HasSponsor:  s.HasSponsor,
		Referrals:   s.Referrals,
		Positions:   s.Positions,
		Invested:    bigOrZero(s.Invested),
		Earned:      bigOrZero(s.Earned),
		LastAirdrop: s.LastAirdrop,
		Level:       grid.Level(s.Level),
		Registered:  s.Registered,
	}
}

type storedPool struct {
	Balance          *big.Int
	Carried          *big.Int
	TotalCredited    *big.Int
	TotalDistributed *big.Int
	Distributions    uint64
	LastDistribution uint64
}

type storedTier struct {
	Min         uint64
	Max         uint64
	Probability uint64
}

type storedParams struct {
	Prices              []*big.Int
	FreezeMultiple      uint64
	WithdrawFeeBps      uint64
	ReactivationBps     uint64
	DirectReferralBps   uint64
	IndirectReferralBps uint64
	PoolBps             uint64
	SpinBaseBps         uint64
	SpinCooldown        uint64
	SettleSpinOnDraw    bool
	Tiers               []storedTier
	LargeCohortBps      uint64
	SmallCohortBps      uint64
	MemberCohortBps     uint64
	LevelShareBps       []uint64
	LevelThresholds     []uint64
	CarryEmptyCohorts   bool
	AirdropInterval     uint64
	AirdropLarge        *big.Int
	AirdropSmall        *big.Int
	AirdropHolder       *big.Int
	MaxSponsorDepth     uint64
}

func newStoredParams(p *grid.Params) *storedParams {
	out := &storedParams{
		FreezeMultiple:      p.FreezeMultiple,
		WithdrawFeeBps:      p.WithdrawFeeBps,
		ReactivationBps:     p.ReactivationBps,
		DirectReferralBps:   p.DirectReferralBps,
		IndirectReferralBps: p.IndirectReferralBps,
		PoolBps:             p.PoolBps,
		SpinBaseBps:         p.SpinBaseBps,
		SpinCooldown:        p.SpinCooldown,
		SettleSpinOnDraw:    p.SettleSpinOnDraw,
		LargeCohortBps:      p.LargeCohortBps,
		SmallCohortBps:      p.SmallCohortBps,
		MemberCohortBps:     p.MemberCohortBps,
		LevelShareBps:       append([]uint64(nil), p.LevelShareBps...),
		LevelThresholds:     append([]uint64(nil), p.LevelThresholds...),
		CarryEmptyCohorts:   p.CarryEmptyCohorts,
		AirdropInterval:     p.AirdropInterval,
		AirdropLarge:        bigOrZero(p.AirdropLarge),
		AirdropSmall:        bigOrZero(p.AirdropSmall),
		AirdropHolder:       bigOrZero(p.AirdropHolder),
		MaxSponsorDepth:     p.MaxSponsorDepth,
	}
	for _, price := range p.Prices {
		out.Prices = append(out.Prices, bigOrZero(price))
	}
	for _, tier := range p.Tiers {
		out.Tiers = append(out.Tiers, storedTier{Min: tier.MinMultiplier, Max: tier.MaxMultiplier, Probability: tier.Probability})
	}
	return out
}

func (s *storedParams) toParams() *grid.Params {
	out := &grid.Params{
		FreezeMultiple:      s.FreezeMultiple,
		WithdrawFeeBps:      s.WithdrawFeeBps,
		ReactivationBps:     s.ReactivationBps,
		DirectReferralBps:   s.DirectReferralBps,
		IndirectReferralBps: s.IndirectReferralBps,
		PoolBps:             s.PoolBps,
		SpinBaseBps:         s.SpinBaseBps,
		SpinCooldown:        s.SpinCooldown,
		SettleSpinOnDraw:    s.SettleSpinOnDraw,
		LargeCohortBps:      s.LargeCohortBps,
		SmallCohortBps:      s.SmallCohortBps,
		MemberCohortBps:     s.MemberCohortBps,
		LevelShareBps:       s.LevelShareBps,
		LevelThresholds:     s.LevelThresholds,
		CarryEmptyCohorts:   s.CarryEmptyCohorts,
		AirdropInterval:     s.AirdropInterval,
		AirdropLarge:        bigOrZero(s.AirdropLarge),
		AirdropSmall:        bigOrZero(s.AirdropSmall),
		AirdropHolder:       bigOrZero(s.AirdropHolder),
		MaxSponsorDepth:     s.MaxSponsorDepth,
	}
	for _, price := range s.Prices {
		out.Prices = append(out.Prices, bigOrZero(price))
	}
	for _, tier := range s.Tiers {
		out.Tiers = append(out.Tiers, wheel.Tier{MinMultiplier: tier.Min, MaxMultiplier: tier.Max, Probability: tier.Probability})
	}
	return out
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func uint64Key(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], v)
	return key
}

func addrKey(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])
	return key
}

func (m *Manager) nextSequence(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.KVGet(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := m.KVPut(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

// GridPositionGet loads a position record.
func (m *Manager) GridPositionGet(id uint64) (*grid.Position, bool, error) {
	var stored storedPosition
	ok, err := m.KVGet(uint64Key(gridPositionPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toPosition(), true, nil
}

// GridPositionPut persists a position record.
func (m *Manager) GridPositionPut(pos *grid.Position) error {
	if pos == nil {
		return fmt.Errorf("grid: nil position")
	}
	return m.KVPut(uint64Key(gridPositionPrefix, pos.ID), newStoredPosition(pos))
}

// GridNextPositionID allocates the next position id, starting at 1.
func (m *Manager) GridNextPositionID() (uint64, error) {
	return m.nextSequence(gridSequenceKey)
}

// GridPositionCount returns the number of positions ever issued.
func (m *Manager) GridPositionCount() (uint64, error) {
	var current uint64
	if _, err := m.KVGet(gridSequenceKey, &current); err != nil {
		return 0, err
	}
	return current, nil
}

// GridAccountGet loads the grid record for addr.
func (m *Manager) GridAccountGet(addr [20]byte) (*grid.Account, bool, error) {
	var stored storedAccount
	ok, err := m.KVGet(addrKey(gridAccountPrefix, addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toAccount(), true, nil
}

// GridAccountPut persists the grid record of an account.
func (m *Manager) GridAccountPut(acc *grid.Account) error {
	if acc == nil {
		return fmt.Errorf("grid: nil account")
	}
	return m.KVPut(addrKey(gridAccountPrefix, acc.Address), newStoredAccount(acc))
}

// GridPoolGet loads the dividend pool.
func (m *Manager) GridPoolGet() (*grid.Pool, bool, error) {
	var stored storedPool
	ok, err := m.KVGet(gridPoolKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &grid.Pool{
		Balance:          bigOrZero(stored.Balance),
		Carried:          bigOrZero(stored.Carried),
		TotalCredited:    bigOrZero(stored.TotalCredited),
		TotalDistributed: bigOrZero(stored.TotalDistributed),
		Distributions:    stored.Distributions,
		LastDistribution: stored.LastDistribution,
	}, true, nil
}

// GridPoolPut persists the dividend pool.
func (m *Manager) GridPoolPut(pool *grid.Pool) error {
	if pool == nil {
		return fmt.Errorf("grid: nil pool")
	}
	return m.KVPut(gridPoolKey, &storedPool{
		Balance:          bigOrZero(pool.Balance),
		Carried:          bigOrZero(pool.Carried),
		TotalCredited:    bigOrZero(pool.TotalCredited),
		TotalDistributed: bigOrZero(pool.TotalDistributed),
		Distributions:    pool.Distributions,
		LastDistribution: pool.LastDistribution,
	})
}

// GridLevelMembers returns the sorted member set of level.
func (m *Manager) GridLevelMembers(level grid.Level) ([][20]byte, error) {
	var members [][20]byte
	if _, err := m.KVGet(append(append([]byte(nil), gridLevelPrefix...), byte(level)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GridLevelMembersPut replaces the member set of level.
func (m *Manager) GridLevelMembersPut(level grid.Level, members [][20]byte) error {
	key := append(append([]byte(nil), gridLevelPrefix...), byte(level))
	if len(members) == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, members)
}

// GridParamsGet loads persisted economy params.
func (m *Manager) GridParamsGet() (*grid.Params, bool, error) {
	var stored storedParams
	ok, err := m.KVGet(gridParamsKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toParams(), true, nil
}

// GridParamsPut persists economy params.
func (m *Manager) GridParamsPut(params *grid.Params) error {
	if params == nil {
		return fmt.Errorf("grid: nil params")
	}
	return m.KVPut(gridParamsKey, newStoredParams(params))
}
