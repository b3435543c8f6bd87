package gridd

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridchain/config"
	nativecommon "gridchain/native/common"
	"gridchain/native/grid"
	"gridchain/storage"
)

var (
	moduleAddr = addr(0xEE)
	alice      = addr(0xA1)
	bob        = addr(0xB0)
	carol      = addr(0xC0)
	adminCap   = grid.NewCapability("admin", grid.RoleAdmin)
)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func hexAddr(a [20]byte) string { return "0x" + hex.EncodeToString(a[:]) }

func testAssets() config.Assets {
	return config.Assets{
		PurchaseSymbol: "USDG",
		PurchaseName:   "Grid Dollar",
		RewardSymbol:   "GWIN",
		RewardName:     "Grid Win",
		Decimals:       0,
	}
}

type fixture struct {
	svc   *Service
	audit *AuditStore
	hub   *Hub
	db    storage.Database
	now   time.Time
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	audit, err := OpenAudit("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	f := &fixture{audit: audit, hub: NewHub(), db: storage.NewMemDB(), now: time.Unix(1_700_000_000, 0)}
	deps := Deps{
		DB:            f.db,
		ModuleAddress: moduleAddr,
		Assets:        testAssets(),
		Params:        grid.DefaultParams(0),
		Audit:         audit,
		Hub:           f.hub,
		Now:           func() time.Time { return f.now },
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	svc, err := New(deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	applied, err := f.svc.ApplyGenesis(context.Background(), &Genesis{
		Balances: []GenesisBalance{
			{Address: hexAddr(alice), Asset: "USDG", Amount: "1000"},
			{Address: hexAddr(bob), Asset: "purchase", Amount: "1000"},
			{Address: hexAddr(moduleAddr), Asset: "GWIN", Amount: "100000"},
		},
		Allowances: []GenesisBalance{
			{Address: hexAddr(alice), Asset: "USDG", Amount: "1000"},
			{Address: hexAddr(bob), Asset: "USDG", Amount: "1000"},
		},
	})
	require.NoError(t, err)
	require.True(t, applied)
}

func balance(t *testing.T, svc *Service, asset grid.Asset, who [20]byte) int64 {
	t.Helper()
	bal, err := svc.Balance(asset, who)
	require.NoError(t, err)
	return bal.Int64()
}

func TestPurchasePaysReferralAndCommits(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	first, err := f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
	second, err := f.svc.Purchase(ctx, bob, grid.RankA, alice)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// 100 paid, 20 direct referral received.
	require.Equal(t, int64(920), balance(t, f.svc, grid.AssetPurchase, alice))
	require.Equal(t, int64(900), balance(t, f.svc, grid.AssetPurchase, bob))

	acc, positions, err := f.svc.Account(bob)
	require.NoError(t, err)
	require.True(t, acc.HasSponsor)
	require.Equal(t, alice, acc.Sponsor)
	require.Len(t, positions, 1)

	pool, err := f.svc.Pool()
	require.NoError(t, err)
	require.Equal(t, int64(20), pool.Balance.Int64())

	// State survives a reopen of the same database.
	reopened, err := New(Deps{DB: f.db, ModuleAddress: moduleAddr, Assets: testAssets(), Params: grid.DefaultParams(0)})
	require.NoError(t, err)
	require.Equal(t, int64(920), balance(t, reopened, grid.AssetPurchase, alice))
}

func TestFailedOperationLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, carol, grid.RankA, [20]byte{})
	require.ErrorIs(t, err, grid.ErrInsufficientFunds)

	_, positions, err := f.svc.Account(carol)
	require.NoError(t, err)
	require.Empty(t, positions)
	pool, err := f.svc.Pool()
	require.NoError(t, err)
	require.Zero(t, pool.Balance.Sign())
}

func TestPurchaseQuota(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Quota = nativecommon.NewQuotaTracker(nativecommon.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3600}, func() int64 { return 1_700_000_000 })
	})
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.ErrorIs(t, err, nativecommon.ErrQuotaRequestsExceeded)

	// The rejected purchase was rolled back.
	require.Equal(t, int64(900), balance(t, f.svc, grid.AssetPurchase, alice))
	_, positions, err := f.svc.Account(alice)
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestPauseBlocksEconomyOperations(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.SetPaused(grid.NewCapability("op", grid.RoleOperator), true), grid.ErrUnauthorized)
	require.NoError(t, f.svc.SetPaused(adminCap, true))
	require.True(t, f.svc.Paused())

	_, err := f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.NoError(t, f.svc.SetPaused(adminCap, false))
	_, err = f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
}

func TestCollectibleAirdrop(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.MintCollectible(ctx, grid.NewCapability("op", grid.RoleOperator), carol, grid.HolderLarge)
	require.ErrorIs(t, err, grid.ErrUnauthorized)

	tok, err := f.svc.MintCollectible(ctx, adminCap, carol, grid.HolderLarge)
	require.NoError(t, err)
	require.Equal(t, carol, tok.Owner)

	amount, err := f.svc.ClaimAirdrop(ctx, carol)
	require.NoError(t, err)
	require.Equal(t, int64(50), amount.Int64())
	require.Equal(t, int64(50), balance(t, f.svc, grid.AssetReward, carol))

	_, err = f.svc.ClaimAirdrop(ctx, carol)
	require.ErrorIs(t, err, grid.ErrAlreadyClaimed)

	f.now = f.now.Add(25 * time.Hour)
	_, err = f.svc.ClaimAirdrop(ctx, carol)
	require.NoError(t, err)

	require.NoError(t, f.svc.TransferCollectible(ctx, tok.ID, carol, bob))
	held, err := f.svc.Collectibles(bob)
	require.NoError(t, err)
	require.Len(t, held, 1)
}

func TestSchedulerDistributesPool(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.MintCollectible(ctx, adminCap, carol, grid.HolderLarge)
	require.NoError(t, err)
	sched, err := NewScheduler(f.svc, time.Hour, nil)
	require.NoError(t, err)

	dist, err := sched.Tick(ctx)
	require.NoError(t, err)
	require.Nil(t, dist, "empty pool is skipped")

	_, err = f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, bob, grid.RankA, alice)
	require.NoError(t, err)

	dist, err = sched.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, dist)
	require.Equal(t, int64(20), dist.Drained.Int64())
	require.Equal(t, int64(6), dist.Paid.Int64())
	require.Equal(t, int64(6), balance(t, f.svc, grid.AssetPurchase, carol))

	pool, err := f.svc.Pool()
	require.NoError(t, err)
	require.Zero(t, dist.Carried.Cmp(pool.Balance))
}

func TestAuditChainRecordsCommittedEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, carol, grid.RankA, [20]byte{})
	require.Error(t, err)

	checked, err := f.audit.Verify(ctx)
	require.NoError(t, err)
	require.NotZero(t, checked)

	purchases, err := f.audit.List(ctx, 0, 0, grid.EventTypePositionPurchased)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	attrs, err := purchases[0].Decoded()
	require.NoError(t, err)
	require.Equal(t, "A", attrs["rank"])
	require.Equal(t, "100", attrs["price"])
}

func TestHubReceivesCommittedEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	updates, cancel := f.hub.Subscribe("grid.position")
	defer cancel()

	_, err := f.svc.Purchase(context.Background(), alice, grid.RankA, [20]byte{})
	require.NoError(t, err)

	select {
	case evt := <-updates:
		require.Equal(t, grid.EventTypePositionPurchased, evt.Type)
		require.Equal(t, "100", evt.Attributes["price"])
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestGenesisAppliesOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	applied, err := f.svc.ApplyGenesis(context.Background(), &Genesis{
		Balances: []GenesisBalance{{Address: hexAddr(alice), Asset: "USDG", Amount: "5"}},
	})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(1000), balance(t, f.svc, grid.AssetPurchase, alice))
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
balances:
  - address: `+hexAddr(alice)+`
    asset: USDG
    amount: "250"
collectibles:
  - owner: `+hexAddr(carol)+`
    tier: small
roots:
  - `+hexAddr(bob)+`
`), 0o600))
	g, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Len(t, g.Balances, 1)
	require.Equal(t, "250", g.Balances[0].Amount)
	require.Len(t, g.Collectibles, 1)
	require.Equal(t, []string{hexAddr(bob)}, g.Roots)

	f := newFixture(t)
	applied, err := f.svc.ApplyGenesis(context.Background(), g)
	require.NoError(t, err)
	require.True(t, applied)
	held, err := f.svc.Collectibles(carol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Equal(t, grid.HolderSmall, held[0].Tier)

	acc, _, err := f.svc.Account(bob)
	require.NoError(t, err)
	require.True(t, acc.Registered)
}

func TestRejectsUnknownGenesisAsset(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyGenesis(context.Background(), &Genesis{
		Balances: []GenesisBalance{{Address: hexAddr(alice), Asset: "DOGE", Amount: "1"}},
	})
	require.Error(t, err)
	bal, err := f.svc.Balance(grid.AssetPurchase, alice)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(big.NewInt(0)))
}

// flakyDB fails batch writes while failWrites is set.
type flakyDB struct {
	*storage.MemDB
	failWrites bool
}

var errWriteFailed = errors.New("disk full")

func (db *flakyDB) Write(batch map[string][]byte) error {
	if db.failWrites {
		return errWriteFailed
	}
	return db.MemDB.Write(batch)
}

func TestFailedCommitRefundsQuota(t *testing.T) {
	db := &flakyDB{MemDB: storage.NewMemDB()}
	f := newFixture(t, func(d *Deps) {
		d.DB = db
		d.Quota = nativecommon.NewQuotaTracker(nativecommon.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3600}, func() int64 { return 1_700_000_000 })
	})
	f.seed(t)
	ctx := context.Background()

	db.failWrites = true
	_, err := f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.ErrorIs(t, err, errWriteFailed)
	require.Equal(t, int64(1000), balance(t, f.svc, grid.AssetPurchase, alice))

	db.failWrites = false
	_, err = f.svc.Purchase(ctx, alice, grid.RankA, [20]byte{})
	require.NoError(t, err)
	require.Equal(t, int64(900), balance(t, f.svc, grid.AssetPurchase, alice))
}

func TestFailedCommitKeepsPreviousParams(t *testing.T) {
	db := &flakyDB{MemDB: storage.NewMemDB()}
	f := newFixture(t, func(d *Deps) { d.DB = db })
	ctx := context.Background()

	before := f.svc.Params()
	next := f.svc.Params()
	next.WithdrawFeeBps = before.WithdrawFeeBps + 100

	db.failWrites = true
	require.ErrorIs(t, f.svc.UpdateParams(ctx, adminCap, next), errWriteFailed)
	require.Equal(t, before.WithdrawFeeBps, f.svc.Params().WithdrawFeeBps)

	db.failWrites = false
	require.NoError(t, f.svc.UpdateParams(ctx, adminCap, next))
	require.Equal(t, next.WithdrawFeeBps, f.svc.Params().WithdrawFeeBps)
}
