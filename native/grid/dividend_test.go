package grid

import (
	"errors"
	"math/big"
	"testing"
)

func TestDistributeSplitsAcrossCohorts(t *testing.T) {
	params := DefaultParams(0)
	params.LevelThresholds = []uint64{1, 2, 3, 4, 5}
	f := newFixture(t, params)
	large1, large2, small1, member, funder := addr(1), addr(2), addr(3), addr(4), addr(5)
	f.registry.large = []uint64{1, 2}
	f.registry.small = []uint64{3}
	f.registry.owners[1] = large1
	f.registry.owners[2] = large2
	f.registry.owners[3] = small1

	f.fund("purchase", member, 1000)
	f.fund("purchase", funder, 1000)
	f.buy(t, member, RankA, noSponsor)
	if err := f.engine.AddToPool(funder, big.NewInt(990)); err != nil {
		t.Fatalf("add to pool: %v", err)
	}

	dist, err := f.engine.Distribute(operator)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if dist.Drained.Int64() != 1000 {
		t.Fatalf("expected 1000 drained, got %s", dist.Drained)
	}
	if dist.LargeShare.Int64() != 300 || dist.SmallShare.Int64() != 300 || dist.MemberShare.Int64() != 400 {
		t.Fatalf("unexpected 30/30/40 split %+v", dist)
	}
	for who, want := range map[[20]byte]int64{large1: 150, large2: 150, small1: 300, member: 900 + 140} {
		if got := f.balance("purchase", who); got != want {
			t.Fatalf("balance of %x: expected %d, got %d", who[19], want, got)
		}
	}
	// B1..E1 are empty: 30+20+10+5 percent of 400 is carried forward.
	if dist.Paid.Int64() != 740 || dist.Carried.Int64() != 260 || dist.Dust().Sign() != 0 {
		t.Fatalf("unexpected totals paid=%s carried=%s dust=%s", dist.Paid, dist.Carried, dist.Dust())
	}
	pool, err := f.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.Balance.Int64() != 260 || pool.Distributions != 1 || pool.TotalDistributed.Int64() != 740 {
		t.Fatalf("unexpected pool after distribution %+v", pool)
	}
	if got := f.balance("purchase", moduleAddr); got != 100+990-740 {
		t.Fatalf("unexpected module balance %d", got)
	}
}

func TestDistributeConservesValue(t *testing.T) {
	for _, amount := range []int64{7, 997, 1001, 12_345} {
		f := newFixture(t, DefaultParams(0))
		f.registry.large = []uint64{1, 2, 3}
		f.registry.small = []uint64{4, 5, 6, 7, 8, 9, 10}
		for id := uint64(1); id <= 10; id++ {
			f.registry.owners[id] = addr(byte(id))
		}
		funder := addr(200)
		f.fund("purchase", funder, amount)
		if err := f.engine.AddToPool(funder, big.NewInt(amount)); err != nil {
			t.Fatalf("add to pool: %v", err)
		}
		dist, err := f.engine.Distribute(operator)
		if err != nil {
			t.Fatalf("distribute %d: %v", amount, err)
		}
		settled := new(big.Int).Add(dist.Paid, dist.Carried)
		if settled.Cmp(dist.Drained) > 0 {
			t.Fatalf("pool %d: paid %s + carried %s exceeds drained", amount, dist.Paid, dist.Carried)
		}
		if dust := dist.Dust(); dust.Sign() < 0 || dust.Int64() >= 10 {
			t.Fatalf("pool %d: dust %s not bounded by cohort size", amount, dust)
		}
		var received int64
		for id := byte(1); id <= 10; id++ {
			received += f.balance("purchase", addr(id))
		}
		if received != dist.Paid.Int64() {
			t.Fatalf("pool %d: recipients got %d, reported %s", amount, received, dist.Paid)
		}
	}
}

func TestDistributeWithoutCarryLeavesShareWithModule(t *testing.T) {
	params := DefaultParams(0)
	params.CarryEmptyCohorts = false
	f := newFixture(t, params)
	f.fund("purchase", addr(9), 100)
	if err := f.engine.AddToPool(addr(9), big.NewInt(100)); err != nil {
		t.Fatalf("add to pool: %v", err)
	}
	dist, err := f.engine.Distribute(operator)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if dist.Paid.Sign() != 0 || dist.Carried.Sign() != 0 {
		t.Fatalf("expected nothing paid or carried, got %+v", dist)
	}
	if pool, _ := f.engine.Pool(); pool.Balance.Sign() != 0 {
		t.Fatalf("expected drained pool, got %s", pool.Balance)
	}
	if got := f.balance("purchase", moduleAddr); got != 100 {
		t.Fatalf("expected funds to remain with module, got %d", got)
	}
}

func TestDistributePreconditions(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	if _, err := f.engine.Distribute(operator); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected empty pool, got %v", err)
	}
	f.fund("purchase", addr(9), 100)
	if err := f.engine.AddToPool(addr(9), big.NewInt(100)); err != nil {
		t.Fatalf("add to pool: %v", err)
	}
	if _, err := f.engine.Distribute(Capability{Subject: "anon"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	f.registry.large = []uint64{1}
	f.registry.owners[1] = addr(1)
	f.registry.skew = 1
	if _, err := f.engine.Distribute(operator); !errors.Is(err, ErrRegistryMismatch) {
		t.Fatalf("expected registry mismatch, got %v", err)
	}
	if pool, _ := f.engine.Pool(); pool.Balance.Int64() != 100 {
		t.Fatalf("failed distribution must leave pool intact, got %s", pool.Balance)
	}
	if err := f.engine.AddToPool(addr(9), big.NewInt(0)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHolderWithSeveralTokensReceivesEachSlot(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	whale, minnow := addr(1), addr(2)
	f.registry.large = []uint64{1, 2, 3}
	f.registry.owners[1] = whale
	f.registry.owners[2] = whale
	f.registry.owners[3] = minnow
	f.fund("purchase", addr(9), 1000)
	if err := f.engine.AddToPool(addr(9), big.NewInt(1000)); err != nil {
		t.Fatalf("add to pool: %v", err)
	}
	if _, err := f.engine.Distribute(operator); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := f.balance("purchase", whale); got != 200 {
		t.Fatalf("expected two slots of 100, got %d", got)
	}
	if got := f.balance("purchase", minnow); got != 100 {
		t.Fatalf("expected one slot of 100, got %d", got)
	}
}

func TestClaimAirdropOncePerInterval(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	whale, holder, buyer, nobody := addr(1), addr(2), addr(3), addr(4)
	f.registry.large = []uint64{1}
	f.registry.small = []uint64{2, 3}
	f.registry.owners[1] = whale
	f.registry.owners[2] = whale
	f.registry.owners[3] = holder
	f.fund("reward", moduleAddr, 10_000)
	f.fund("purchase", buyer, 1000)
	f.buy(t, buyer, RankA, noSponsor)

	for who, want := range map[[20]byte]int64{whale: 50, holder: 20, buyer: 5} {
		paid, err := f.engine.ClaimAirdrop(who)
		if err != nil {
			t.Fatalf("claim for %x: %v", who[19], err)
		}
		if paid.Int64() != want {
			t.Fatalf("claim for %x: expected %d, got %s", who[19], want, paid)
		}
	}
	_, err := f.engine.ClaimAirdrop(whale)
	if !errors.Is(err, ErrAlreadyClaimed) || !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	if _, err := f.engine.ClaimAirdrop(nobody); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}

	f.now += 24 * 60 * 60
	if _, err := f.engine.ClaimAirdrop(whale); err != nil {
		t.Fatalf("claim after interval: %v", err)
	}
	if got := f.balance("reward", whale); got != 100 {
		t.Fatalf("expected two large claims, got %d", got)
	}
}
