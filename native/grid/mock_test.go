package grid

import (
	"errors"
	"math/big"
	"testing"

	"gridchain/core/events"
	"gridchain/native/wheel"
)

type mockData struct {
	positions map[uint64]*Position
	nextID    uint64
	accounts  map[[20]byte]*Account
	pool      *Pool
	levels    map[Level][][20]byte
	params    *Params
	balances  map[string]map[[20]byte]*big.Int
}

func (d mockData) clone() mockData {
	out := mockData{
		positions: make(map[uint64]*Position, len(d.positions)),
		nextID:    d.nextID,
		accounts:  make(map[[20]byte]*Account, len(d.accounts)),
		pool:      d.pool.Clone(),
		levels:    make(map[Level][][20]byte, len(d.levels)),
		balances:  make(map[string]map[[20]byte]*big.Int, len(d.balances)),
	}
	for id, pos := range d.positions {
		out.positions[id] = pos.Clone()
	}
	for addr, acc := range d.accounts {
		out.accounts[addr] = acc.Clone()
	}
	for level, members := range d.levels {
		out.levels[level] = append([][20]byte(nil), members...)
	}
	if d.params != nil {
		p := d.params.Clone()
		out.params = &p
	}
	for asset, book := range d.balances {
		copied := make(map[[20]byte]*big.Int, len(book))
		for addr, bal := range book {
			copied[addr] = new(big.Int).Set(bal)
		}
		out.balances[asset] = copied
	}
	return out
}

// mockState keeps grid records and ledger balances in one journaled store so
// a revert also rolls back token movements.
type mockState struct {
	data      mockData
	snapshots []mockData
}

func newMockState() *mockState {
	return &mockState{data: mockData{
		positions: make(map[uint64]*Position),
		accounts:  make(map[[20]byte]*Account),
		levels:    make(map[Level][][20]byte),
		balances:  make(map[string]map[[20]byte]*big.Int),
	}}
}

func (m *mockState) GridPositionGet(id uint64) (*Position, bool, error) {
	pos, ok := m.data.positions[id]
	if !ok {
		return nil, false, nil
	}
	return pos.Clone(), true, nil
}

func (m *mockState) GridPositionPut(pos *Position) error {
	m.data.positions[pos.ID] = pos.Clone()
	return nil
}

func (m *mockState) GridNextPositionID() (uint64, error) {
	m.data.nextID++
	return m.data.nextID, nil
}

func (m *mockState) GridAccountGet(addr [20]byte) (*Account, bool, error) {
	acc, ok := m.data.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acc.Clone(), true, nil
}

func (m *mockState) GridAccountPut(acc *Account) error {
	m.data.accounts[acc.Address] = acc.Clone()
	return nil
}

func (m *mockState) GridPoolGet() (*Pool, bool, error) {
	if m.data.pool == nil {
		return nil, false, nil
	}
	return m.data.pool.Clone(), true, nil
}

func (m *mockState) GridPoolPut(pool *Pool) error {
	m.data.pool = pool.Clone()
	return nil
}

func (m *mockState) GridLevelMembers(level Level) ([][20]byte, error) {
	return append([][20]byte(nil), m.data.levels[level]...), nil
}

func (m *mockState) GridLevelMembersPut(level Level, members [][20]byte) error {
	m.data.levels[level] = append([][20]byte(nil), members...)
	return nil
}

func (m *mockState) GridParamsGet() (*Params, bool, error) {
	if m.data.params == nil {
		return nil, false, nil
	}
	p := m.data.params.Clone()
	return &p, true, nil
}

func (m *mockState) GridParamsPut(params *Params) error {
	p := params.Clone()
	m.data.params = &p
	return nil
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.data.clone())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	m.data = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

func (m *mockState) balance(asset string, addr [20]byte) *big.Int {
	book, ok := m.data.balances[asset]
	if !ok {
		book = make(map[[20]byte]*big.Int)
		m.data.balances[asset] = book
	}
	bal, ok := book[addr]
	if !ok {
		bal = big.NewInt(0)
		book[addr] = bal
	}
	return bal
}

var errMockInsufficient = errors.New("mock ledger: insufficient balance")

type mockLedger struct {
	state   *mockState
	asset   string
	module  [20]byte
	failTo  map[[20]byte]bool
	onDebit func()
}

func (l *mockLedger) move(from, to [20]byte, amount *big.Int) error {
	src := l.state.balance(l.asset, from)
	if src.Cmp(amount) < 0 {
		return errMockInsufficient
	}
	src.Sub(src, amount)
	dst := l.state.balance(l.asset, to)
	dst.Add(dst, amount)
	return nil
}

func (l *mockLedger) Transfer(to [20]byte, amount *big.Int) error {
	if l.failTo[to] {
		return errors.New("mock ledger: recipient rejected")
	}
	return l.move(l.module, to, amount)
}

func (l *mockLedger) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if l.onDebit != nil {
		l.onDebit()
	}
	return l.move(from, to, amount)
}

func (l *mockLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return new(big.Int).Set(l.state.balance(l.asset, addr)), nil
}

type mockRegistry struct {
	large  []uint64
	small  []uint64
	owners map[uint64][20]byte
	// skew is added to the reported large count to simulate an inconsistent registry.
	skew uint64
}

func (r *mockRegistry) LargeHolderCount() (uint64, error) {
	return uint64(len(r.large)) + r.skew, nil
}

func (r *mockRegistry) SmallHolderCount() (uint64, error) { return uint64(len(r.small)), nil }

func (r *mockRegistry) OwnerOfToken(id uint64) ([20]byte, error) { return r.owners[id], nil }

func (r *mockRegistry) holds(ids []uint64, addr [20]byte) bool {
	for _, id := range ids {
		if r.owners[id] == addr {
			return true
		}
	}
	return false
}

func (r *mockRegistry) IsLargeHolder(addr [20]byte) (bool, error) { return r.holds(r.large, addr), nil }

func (r *mockRegistry) IsSmallHolder(addr [20]byte) (bool, error) { return r.holds(r.small, addr), nil }

func (r *mockRegistry) Tokens(tier HolderTier) ([]uint64, error) {
	switch tier {
	case HolderLarge:
		return append([]uint64(nil), r.large...), nil
	case HolderSmall:
		return append([]uint64(nil), r.small...), nil
	}
	return nil, nil
}

type fixture struct {
	engine   *Engine
	state    *mockState
	purchase *mockLedger
	reward   *mockLedger
	registry *mockRegistry
	events   *events.Recorder
	now      int64
}

var (
	moduleAddr = addr(0xEE)
	operator   = NewCapability("ops", RoleOperator)
	admin      = NewCapability("root", RoleAdmin)
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = 0x10
	a[19] = b
	return a
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	st := newMockState()
	f := &fixture{
		state:    st,
		purchase: &mockLedger{state: st, asset: "purchase", module: moduleAddr, failTo: map[[20]byte]bool{}},
		reward:   &mockLedger{state: st, asset: "reward", module: moduleAddr, failTo: map[[20]byte]bool{}},
		registry: &mockRegistry{owners: map[uint64][20]byte{}},
		events:   &events.Recorder{},
		now:      1_700_000_000,
	}
	f.engine = NewEngine(moduleAddr, params)
	f.engine.SetState(st)
	f.engine.SetLedgers(f.purchase, f.reward)
	f.engine.SetRegistry(f.registry)
	f.engine.SetEmitter(f.events)
	f.engine.SetNowFunc(func() int64 { return f.now })
	f.engine.SetSourceFunc(func(uint64, uint64) wheel.Source {
		return &wheel.FixedSource{Values: []uint64{999_999}}
	})
	return f
}

func (f *fixture) fund(asset string, who [20]byte, amount int64) {
	bal := f.state.balance(asset, who)
	bal.Add(bal, big.NewInt(amount))
}

func (f *fixture) balance(asset string, who [20]byte) int64 {
	return f.state.balance(asset, who).Int64()
}

func (f *fixture) buy(t *testing.T, buyer [20]byte, rank Rank, sponsor [20]byte) uint64 {
	t.Helper()
	id, err := f.engine.Purchase(buyer, rank, sponsor)
	if err != nil {
		t.Fatalf("purchase %s for %x: %v", rank, buyer[19], err)
	}
	return id
}

func (f *fixture) account(t *testing.T, who [20]byte) *Account {
	t.Helper()
	acc, err := f.engine.Account(who)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return acc
}

func (f *fixture) position(t *testing.T, id uint64) *Position {
	t.Helper()
	pos, err := f.engine.Position(id)
	if err != nil {
		t.Fatalf("position %d: %v", id, err)
	}
	return pos
}
