package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gridchain/native/collectible"
	"gridchain/native/grid"
)

func TestGridPositionRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)

	id, err := manager.GridNextPositionID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	pos := &grid.Position{
		ID:           id,
		Owner:        testAddr(1),
		Rank:         grid.RankC1,
		Price:        big.NewInt(500),
		StaticIncome: big.NewInt(12),
		WheelIncome:  big.NewInt(3),
		PurchasedAt:  1_700_000_000,
		LastDraw:     1_700_000_100,
		Draws:        2,
		Active:       true,
	}
	require.NoError(t, manager.GridPositionPut(pos))

	loaded, ok, err := manager.GridPositionGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, grid.RankC1, loaded.Rank)
	require.Equal(t, 0, loaded.Price.Cmp(big.NewInt(500)))
	require.Equal(t, int64(15), loaded.TotalIncome().Int64())
	require.Zero(t, loaded.WheelPaid.Sign())
	require.Equal(t, uint64(2), loaded.Draws)
	require.True(t, loaded.Active)

	_, ok, err = manager.GridPositionGet(id + 1)
	require.NoError(t, err)
	require.False(t, ok)

	count, err := manager.GridPositionCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestGridAccountRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)
	acc := &grid.Account{
		Address:    testAddr(2),
		Sponsor:    testAddr(1),
		HasSponsor: true,
		Referrals:  [][20]byte{testAddr(3), testAddr(4)},
		Positions:  []uint64{1, 5},
		Invested:   big.NewInt(600),
		Level:      grid.LevelA1,
		Registered: true,
	}
	require.NoError(t, manager.GridAccountPut(acc))

	loaded, ok, err := manager.GridAccountGet(acc.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, acc.Sponsor, loaded.Sponsor)
	require.Equal(t, acc.Referrals, loaded.Referrals)
	require.Equal(t, acc.Positions, loaded.Positions)
	require.Equal(t, int64(600), loaded.Invested.Int64())
	require.Zero(t, loaded.Earned.Sign())
	require.Equal(t, grid.LevelA1, loaded.Level)
}

func TestGridPoolAndLevels(t *testing.T) {
	manager, _ := newTestManager(t)

	_, ok, err := manager.GridPoolGet()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.GridPoolPut(&grid.Pool{Balance: big.NewInt(40), Carried: big.NewInt(10), Distributions: 3}))
	pool, ok, err := manager.GridPoolGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(40), pool.Balance.Int64())
	require.Equal(t, int64(10), pool.Carried.Int64())
	require.Zero(t, pool.TotalCredited.Sign())
	require.Equal(t, uint64(3), pool.Distributions)

	members := [][20]byte{testAddr(1), testAddr(9)}
	require.NoError(t, manager.GridLevelMembersPut(grid.LevelB1, members))
	loaded, err := manager.GridLevelMembers(grid.LevelB1)
	require.NoError(t, err)
	require.Equal(t, members, loaded)

	require.NoError(t, manager.GridLevelMembersPut(grid.LevelB1, nil))
	loaded, err = manager.GridLevelMembers(grid.LevelB1)
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestGridParamsRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)
	params := grid.DefaultParams(6)
	params.SettleSpinOnDraw = false
	require.NoError(t, manager.GridParamsPut(&params))

	loaded, ok, err := manager.GridParamsGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, loaded.Validate())
	require.False(t, loaded.SettleSpinOnDraw)
	require.Equal(t, params.LevelShareBps, loaded.LevelShareBps)
	require.Equal(t, params.Tiers, loaded.Tiers)
	for i := range params.Prices {
		require.Equal(t, 0, params.Prices[i].Cmp(loaded.Prices[i]))
	}
	require.Equal(t, 0, params.AirdropLarge.Cmp(loaded.AirdropLarge))
}

func TestCollectibleIndexes(t *testing.T) {
	manager, _ := newTestManager(t)
	id, err := manager.CollectibleNextID()
	require.NoError(t, err)
	require.NoError(t, manager.CollectiblePut(&collectible.Token{ID: id, Owner: testAddr(1), Tier: grid.HolderLarge}))

	token, ok, err := manager.CollectibleGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, grid.HolderLarge, token.Tier)

	require.NoError(t, manager.CollectibleTierTokensPut(grid.HolderLarge, []uint64{id}))
	ids, err := manager.CollectibleTierTokens(grid.HolderLarge)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, ids)

	ids, err = manager.CollectibleHoldings(testAddr(1))
	require.NoError(t, err)
	require.Empty(t, ids)
}
