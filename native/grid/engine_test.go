package grid

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "gridchain/native/common"
)

var noSponsor [20]byte

func TestPurchaseDebitsExactPrice(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	buyer := addr(1)
	f.fund("purchase", buyer, 1000)

	id := f.buy(t, buyer, RankA, noSponsor)
	if id != 1 {
		t.Fatalf("expected first position id 1, got %d", id)
	}
	if got := f.balance("purchase", buyer); got != 900 {
		t.Fatalf("expected buyer balance 900, got %d", got)
	}
	if got := f.balance("purchase", moduleAddr); got != 100 {
		t.Fatalf("expected module balance 100, got %d", got)
	}
	pos := f.position(t, id)
	if pos.Owner != buyer || pos.Rank != RankA || pos.Price.Int64() != 100 || !pos.Active {
		t.Fatalf("unexpected position %+v", pos)
	}
	if pos.TotalIncome().Sign() != 0 || pos.PurchasedAt != uint64(f.now) {
		t.Fatalf("expected fresh position, got %+v", pos)
	}
	acc := f.account(t, buyer)
	if len(acc.Positions) != 1 || acc.Invested.Int64() != 100 || !acc.Registered {
		t.Fatalf("unexpected account %+v", acc)
	}
	pool, err := f.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.Balance.Int64() != 10 {
		t.Fatalf("expected pool credit of 10, got %s", pool.Balance)
	}

	second := f.buy(t, buyer, RankB, noSponsor)
	if second != 2 {
		t.Fatalf("expected monotonic id 2, got %d", second)
	}
	if got := len(f.account(t, buyer).Positions); got != 2 {
		t.Fatalf("expected owned list to grow by one, got %d", got)
	}
	types := f.events.Types()
	if len(types) == 0 || types[0] != EventTypePositionPurchased {
		t.Fatalf("expected purchase event first, got %v", types)
	}
}

func TestPurchaseRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	f.fund("purchase", addr(1), 1000)
	if _, err := f.engine.Purchase(noSponsor, RankA, noSponsor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero buyer, got %v", err)
	}
	if _, err := f.engine.Purchase(addr(1), Rank(42), noSponsor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown rank, got %v", err)
	}
	if _, err := f.engine.Purchase(addr(2), RankE, noSponsor); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := f.engine.Position(1); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected no position after failed purchase, got %v", err)
	}
}

func TestSponsorAssignmentIsWriteOnce(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	rootA, rootB, buyer := addr(1), addr(2), addr(3)
	for _, who := range [][20]byte{rootA, rootB, buyer} {
		f.fund("purchase", who, 10_000)
	}
	f.buy(t, rootA, RankA, noSponsor)
	f.buy(t, rootB, RankA, noSponsor)

	f.buy(t, buyer, RankA, rootA)
	f.buy(t, buyer, RankB, rootB)

	acc := f.account(t, buyer)
	if !acc.HasSponsor || acc.Sponsor != rootA {
		t.Fatalf("expected sponsor to stay rootA, got %+v", acc)
	}
	if refs := f.account(t, rootA).Referrals; len(refs) != 1 || refs[0] != buyer {
		t.Fatalf("expected rootA referral list [buyer], got %v", refs)
	}
	if refs := f.account(t, rootB).Referrals; len(refs) != 0 {
		t.Fatalf("expected rootB to have no referrals, got %v", refs)
	}
}

func TestSponsorCandidateIgnoredWhenUnregisteredOrSelf(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	buyer, stranger := addr(1), addr(9)
	f.fund("purchase", buyer, 1000)

	f.buy(t, buyer, RankA, stranger)
	if f.account(t, buyer).HasSponsor {
		t.Fatalf("unregistered candidate must be ignored")
	}
	f.buy(t, buyer, RankA, buyer)
	if f.account(t, buyer).HasSponsor {
		t.Fatalf("self sponsorship must be ignored")
	}
}

func TestSponsorCycleRejected(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	root, child := addr(1), addr(2)
	f.fund("purchase", root, 1000)
	f.fund("purchase", child, 1000)
	if err := f.engine.RegisterRoot(admin, root); err != nil {
		t.Fatalf("register root: %v", err)
	}
	f.buy(t, child, RankA, root)
	f.buy(t, root, RankA, child)

	if f.account(t, root).HasSponsor {
		t.Fatalf("root must not be linked below its own referral")
	}
}

func TestSponsorLinkedBeyondDepthCap(t *testing.T) {
	params := DefaultParams(0)
	chain := make([][20]byte, params.MaxSponsorDepth+6)
	for i := range chain {
		chain[i] = addr(byte(i + 1))
	}
	f := newFixture(t, params)
	for i, who := range chain {
		f.fund("purchase", who, 1000)
		sponsor := noSponsor
		if i > 0 {
			sponsor = chain[i-1]
		}
		f.buy(t, who, RankA, sponsor)
		if i == 0 {
			continue
		}
		acc := f.account(t, who)
		if !acc.HasSponsor || acc.Sponsor != chain[i-1] {
			t.Fatalf("account at depth %d was refused its sponsor: %+v", i, acc)
		}
	}

	// The root's own upline search must still catch a cycle past the cap.
	root, tail := chain[0], chain[len(chain)-1]
	f.buy(t, root, RankA, tail)
	if f.account(t, root).HasSponsor {
		t.Fatalf("root must not be linked below its deepest descendant")
	}
	if refs := f.account(t, tail).Referrals; len(refs) != 0 {
		t.Fatalf("expected tail to keep an empty referral list, got %v", refs)
	}
}

func TestReferralPaysDirectAndIndirect(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	grand, sponsor, buyer := addr(1), addr(2), addr(3)
	for _, who := range [][20]byte{grand, sponsor, buyer} {
		f.fund("purchase", who, 1000)
	}
	f.buy(t, grand, RankA, noSponsor)
	f.buy(t, sponsor, RankA, grand)
	f.buy(t, buyer, RankA, sponsor)

	if got := f.balance("purchase", sponsor); got != 920 {
		t.Fatalf("expected sponsor balance 920 (direct 20), got %d", got)
	}
	// 20 direct for sponsor's purchase, then 10 indirect for buyer's.
	if got := f.balance("purchase", grand); got != 930 {
		t.Fatalf("expected grand sponsor balance 930, got %d", got)
	}
	if earned := f.account(t, grand).Earned.Int64(); earned != 30 {
		t.Fatalf("expected grand sponsor earned 30, got %d", earned)
	}
	if earned := f.account(t, sponsor).Earned.Int64(); earned != 20 {
		t.Fatalf("expected sponsor earned 20, got %d", earned)
	}
}

func TestReferralRequiresMatchingRank(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	grand, sponsor, buyer := addr(1), addr(2), addr(3)
	for _, who := range [][20]byte{grand, sponsor, buyer} {
		f.fund("purchase", who, 10_000)
	}
	f.buy(t, grand, RankA, noSponsor)
	// Sponsor holds only B1, which shares B's price point but is a different rank.
	f.buy(t, sponsor, RankB1, grand)
	f.buy(t, buyer, RankA, sponsor)

	if got := f.balance("purchase", sponsor); got != 10_000-300 {
		t.Fatalf("sponsor without rank A must receive nothing, balance %d", got)
	}
	// The indirect hop is evaluated independently of the direct one.
	if got := f.balance("purchase", grand); got != 10_000-100+10 {
		t.Fatalf("expected grand sponsor to receive indirect 10, balance %d", got)
	}
	ok, err := f.engine.HasRankPosition(sponsor, RankB)
	if err != nil || ok {
		t.Fatalf("expected no exact rank B match, got %v %v", ok, err)
	}
}

func TestPurchaseRollsBackWhenReferralTransferFails(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	sponsor, buyer := addr(1), addr(2)
	f.fund("purchase", sponsor, 1000)
	f.fund("purchase", buyer, 1000)
	f.buy(t, sponsor, RankA, noSponsor)
	before := len(f.events.Events)

	f.purchase.failTo[sponsor] = true
	if _, err := f.engine.Purchase(buyer, RankA, sponsor); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if got := f.balance("purchase", buyer); got != 1000 {
		t.Fatalf("buyer debit must be reverted, balance %d", got)
	}
	if acc := f.account(t, buyer); acc.Registered || acc.HasSponsor || len(acc.Positions) != 0 {
		t.Fatalf("buyer account must be untouched, got %+v", acc)
	}
	if refs := f.account(t, sponsor).Referrals; len(refs) != 0 {
		t.Fatalf("sponsor referral list must be reverted, got %v", refs)
	}
	if pool, _ := f.engine.Pool(); pool.Balance.Int64() != 10 {
		t.Fatalf("pool credit must be reverted, got %s", pool.Balance)
	}
	if len(f.events.Events) != before {
		t.Fatalf("failed purchase must not emit events, got %v", f.events.Types()[before:])
	}

	delete(f.purchase.failTo, sponsor)
	if id := f.buy(t, buyer, RankA, sponsor); id != 2 {
		t.Fatalf("expected position id 2 after rollback, got %d", id)
	}
}

func TestFreezeAtThresholdAndReactivate(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	owner := addr(1)
	f.fund("purchase", owner, 1000)
	id := f.buy(t, owner, RankA, noSponsor)

	frozen, err := f.engine.AccrueIncome(operator, id, big.NewInt(299), SourceOperator)
	if err != nil || frozen {
		t.Fatalf("expected active after 299, frozen=%v err=%v", frozen, err)
	}
	frozen, err = f.engine.AccrueIncome(operator, id, big.NewInt(1), SourceOperator)
	if err != nil || !frozen {
		t.Fatalf("expected freeze at exactly 300, frozen=%v err=%v", frozen, err)
	}
	if _, err := f.engine.AccrueIncome(operator, id, big.NewInt(1), SourcePeriodic); !errors.Is(err, ErrPositionInactive) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
	if _, err := f.engine.Withdraw(id, owner); !errors.Is(err, ErrPositionInactive) {
		t.Fatalf("expected withdraw rejection while frozen, got %v", err)
	}
	pos := f.position(t, id)
	if pos.Active || pos.StaticIncome.Int64() != 300 {
		t.Fatalf("frozen position must retain income, got %+v", pos)
	}

	// Reactivation costs half the price in both assets.
	if err := f.engine.Reactivate(id, owner); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient reward funds, got %v", err)
	}
	if got := f.balance("purchase", owner); got != 900 {
		t.Fatalf("purchase-asset debit must be reverted, balance %d", got)
	}
	f.fund("reward", owner, 50)
	if err := f.engine.Reactivate(id, owner); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if got := f.balance("purchase", owner); got != 850 {
		t.Fatalf("expected purchase balance 850, got %d", got)
	}
	if got := f.balance("reward", owner); got != 0 {
		t.Fatalf("expected reward balance 0, got %d", got)
	}
	pos = f.position(t, id)
	if !pos.Active || pos.TotalIncome().Sign() != 0 {
		t.Fatalf("reactivation must reset income, got %+v", pos)
	}
	if err := f.engine.Reactivate(id, owner); !errors.Is(err, ErrPositionAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
}

func TestAccrueIncomeRequiresOperator(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	f.fund("purchase", addr(1), 1000)
	id := f.buy(t, addr(1), RankA, noSponsor)
	if _, err := f.engine.AccrueIncome(Capability{}, id, big.NewInt(1), SourceOperator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.engine.AccrueIncome(operator, id, big.NewInt(0), SourceOperator); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
}

func TestWithdrawPaysNetOnceAndZeroesIncome(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	owner := addr(1)
	f.fund("purchase", owner, 1000)
	f.fund("reward", moduleAddr, 1000)
	id := f.buy(t, owner, RankA, noSponsor)
	if _, err := f.engine.AccrueIncome(operator, id, big.NewInt(100), SourceOperator); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	if _, err := f.engine.Withdraw(id, addr(2)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	res, err := f.engine.Withdraw(id, owner)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Gross.Int64() != 100 || res.Fee.Int64() != 5 || res.Net.Int64() != 95 {
		t.Fatalf("unexpected withdraw result %+v", res)
	}
	if got := f.balance("reward", owner); got != 95 {
		t.Fatalf("expected reward balance 95, got %d", got)
	}
	if pos := f.position(t, id); pos.TotalIncome().Sign() != 0 || pos.WheelPaid.Sign() != 0 {
		t.Fatalf("income must be zero after withdraw, got %+v", pos)
	}
	if _, err := f.engine.Withdraw(id, owner); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected nothing to withdraw, got %v", err)
	}
	if got := f.balance("reward", owner); got != 95 {
		t.Fatalf("second withdraw must not pay, balance %d", got)
	}
}

func TestWithdrawKeepsIncomeWhenPayoutFails(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	owner := addr(1)
	f.fund("purchase", owner, 1000)
	id := f.buy(t, owner, RankA, noSponsor)
	if _, err := f.engine.AccrueIncome(operator, id, big.NewInt(100), SourceOperator); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// The module holds no reward asset.
	if _, err := f.engine.Withdraw(id, owner); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if pos := f.position(t, id); pos.StaticIncome.Int64() != 100 {
		t.Fatalf("income must survive failed payout, got %+v", pos)
	}
	if earned := f.account(t, owner).Earned.Sign(); earned != 0 {
		t.Fatalf("earned must be reverted")
	}
}

func TestReentrantCallRejected(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	f.fund("purchase", addr(1), 1000)
	f.fund("purchase", addr(2), 1000)

	var nestedErr error
	calls := 0
	f.purchase.onDebit = func() {
		calls++
		if calls == 1 {
			_, nestedErr = f.engine.Purchase(addr(2), RankA, noSponsor)
		}
	}
	if _, err := f.engine.Purchase(addr(1), RankA, noSponsor); err != nil {
		t.Fatalf("outer purchase: %v", err)
	}
	if !errors.Is(nestedErr, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected reentrant call rejection, got %v", nestedErr)
	}
	if got := f.balance("purchase", addr(2)); got != 1000 {
		t.Fatalf("nested purchase must not debit, balance %d", got)
	}
}

func TestPausedModuleRejectsOperations(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	f.fund("purchase", addr(1), 1000)
	pauses := nativecommon.NewPauseSet()
	pauses.Set(ModuleName, true)
	f.engine.SetPauses(pauses)
	if _, err := f.engine.Purchase(addr(1), RankA, noSponsor); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
	pauses.Set(ModuleName, false)
	f.buy(t, addr(1), RankA, noSponsor)
}

func TestLevelIndexTracksPositionCount(t *testing.T) {
	params := DefaultParams(0)
	params.LevelThresholds = []uint64{1, 2, 3, 4, 5}
	f := newFixture(t, params)
	buyer := addr(1)
	f.fund("purchase", buyer, 10_000)

	f.buy(t, buyer, RankA, noSponsor)
	members, err := f.engine.LevelMembers(LevelA1)
	if err != nil || len(members) != 1 || members[0] != buyer {
		t.Fatalf("expected buyer at A1, got %v %v", members, err)
	}
	f.buy(t, buyer, RankA, noSponsor)
	if members, _ := f.engine.LevelMembers(LevelA1); len(members) != 0 {
		t.Fatalf("expected A1 to be empty after promotion, got %v", members)
	}
	if members, _ := f.engine.LevelMembers(LevelB1); len(members) != 1 {
		t.Fatalf("expected buyer at B1, got %v", members)
	}
	if acc := f.account(t, buyer); acc.Level != LevelB1 {
		t.Fatalf("expected account level B1, got %s", acc.Level)
	}
	if _, err := f.engine.LevelMembers(LevelNone); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for LevelNone, got %v", err)
	}
}

func TestUpdateParamsRequiresAdminAndPersists(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	next := DefaultParams(0)
	next.Prices[0] = big.NewInt(200)

	if err := f.engine.UpdateParams(operator, next); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	bad := next.Clone()
	bad.MemberCohortBps = 1
	if err := f.engine.UpdateParams(admin, bad); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if err := f.engine.UpdateParams(admin, next); err != nil {
		t.Fatalf("update params: %v", err)
	}
	f.fund("purchase", addr(1), 1000)
	f.buy(t, addr(1), RankA, noSponsor)
	if got := f.balance("purchase", addr(1)); got != 800 {
		t.Fatalf("expected new price 200 to apply, balance %d", got)
	}

	restored := NewEngine(moduleAddr, DefaultParams(0))
	restored.SetState(f.state)
	ok, err := restored.RestoreParams()
	if err != nil || !ok {
		t.Fatalf("expected persisted params, ok=%v err=%v", ok, err)
	}
	if restored.Params().PriceOf(RankA1).Int64() != 200 {
		t.Fatalf("expected restored price 200")
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t, DefaultParams(0))
	f.fund("reward", moduleAddr, 100)
	if err := f.engine.EmergencyWithdraw(operator, AssetReward, addr(7), big.NewInt(40)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.engine.EmergencyWithdraw(admin, Asset(9), addr(7), big.NewInt(40)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid asset, got %v", err)
	}
	if err := f.engine.EmergencyWithdraw(admin, AssetReward, addr(7), big.NewInt(40)); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if got := f.balance("reward", addr(7)); got != 40 {
		t.Fatalf("expected 40 recovered, got %d", got)
	}
}
