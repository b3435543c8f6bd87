package grid

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"gridchain/core/events"
	"gridchain/core/types"
	nativecommon "gridchain/native/common"
	"gridchain/native/wheel"
)

const (
	// ModuleName is the key checked against the pause view.
	ModuleName = "grid"
	guardClass = "grid"
)

type engineState interface {
	GridPositionGet(id uint64) (*Position, bool, error)
	GridPositionPut(pos *Position) error
	GridNextPositionID() (uint64, error)
	GridAccountGet(addr [20]byte) (*Account, bool, error)
	GridAccountPut(acc *Account) error
	GridPoolGet() (*Pool, bool, error)
	GridPoolPut(pool *Pool) error
	GridLevelMembers(level Level) ([][20]byte, error)
	GridLevelMembersPut(level Level, members [][20]byte) error
	GridParamsGet() (*Params, bool, error)
	GridParamsPut(params *Params) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// ValueLedger is an account-balance service bound to the engine's module
// account: Transfer pays out of the module account and TransferFrom spends an
// allowance the owner granted to it.
type ValueLedger interface {
	Transfer(to [20]byte, amount *big.Int) error
	TransferFrom(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// CollectibleRegistry classifies collectible holders into tiers.
type CollectibleRegistry interface {
	LargeHolderCount() (uint64, error)
	SmallHolderCount() (uint64, error)
	OwnerOfToken(id uint64) ([20]byte, error)
	IsLargeHolder(addr [20]byte) (bool, error)
	IsSmallHolder(addr [20]byte) (bool, error)
	// Tokens lists the token ids of the tier in ascending order.
	Tokens(tier HolderTier) ([]uint64, error)
}

// SourceFunc returns the entropy source for a position's nth draw.
type SourceFunc func(positionID, nonce uint64) wheel.Source

// Engine wires the position lifecycle, referral, draw and dividend logic with
// persistence, the two value ledgers and event emission.
type Engine struct {
	state         engineState
	moduleAddress [20]byte
	purchase      ValueLedger
	reward        ValueLedger
	registry      CollectibleRegistry
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	guard         nativecommon.ReentrancyGuard
	params        Params
	sourceFn      SourceFunc
	nowFn         func() int64
	pending       []*types.Event
}

// NewEngine constructs an engine holding funds at moduleAddr and configured
// with params. Params are validated when the first operation runs.
func NewEngine(moduleAddr [20]byte, params Params) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		params:        params.Clone(),
		emitter:       events.NoopEmitter{},
		sourceFn: func(uint64, uint64) wheel.Source {
			return wheel.CryptoSource{}
		},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedgers wires the purchase-asset and reward-asset ledgers.
func (e *Engine) SetLedgers(purchase, reward ValueLedger) {
	e.purchase = purchase
	e.reward = reward
}

// SetRegistry wires the collectible registry used for holder cohorts.
func (e *Engine) SetRegistry(registry CollectibleRegistry) { e.registry = registry }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetSourceFunc overrides the draw entropy. Deployments that need auditable
// draws install a wheel.HashSource keyed by an operator secret.
func (e *Engine) SetSourceFunc(fn SourceFunc) {
	if fn == nil {
		e.sourceFn = func(uint64, uint64) wheel.Source { return wheel.CryptoSource{} }
		return
	}
	e.sourceFn = fn
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the account holding engine funds.
func (e *Engine) ModuleAddress() [20]byte { return e.moduleAddress }

// Params returns a copy of the active configuration.
func (e *Engine) Params() Params { return e.params.Clone() }

// SetParams replaces the in-memory params without persisting them.
func (e *Engine) SetParams(params Params) { e.params = params.Clone() }

// RestoreParams replaces the configured params with the persisted copy, if
// one exists. It reports whether persisted params were found.
func (e *Engine) RestoreParams() (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	stored, ok, err := e.state.GridParamsGet()
	if err != nil || !ok || stored == nil {
		return false, err
	}
	if err := stored.Validate(); err != nil {
		return false, fmt.Errorf("persisted params: %w", err)
	}
	e.params = stored.Clone()
	return true, nil
}

// execute runs fn as one all-or-nothing transaction: it holds the reentrancy
// guard, reverts state on failure and only flushes buffered events on success.
func (e *Engine) execute(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	release, err := e.guard.Enter(guardClass)
	if err != nil {
		return err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if e.purchase == nil || e.reward == nil {
		return ErrLedgerNotConfigured
	}
	if err := e.params.Validate(); err != nil {
		return err
	}
	snapshot := e.state.Snapshot()
	e.pending = nil
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.pending = nil
		return err
	}
	pending := e.pending
	e.pending = nil
	for _, evt := range pending {
		e.emitter.Emit(WrapEvent(evt))
	}
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil {
		return
	}
	e.pending = append(e.pending, evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ledger(asset Asset) (ValueLedger, error) {
	switch asset {
	case AssetPurchase:
		return e.purchase, nil
	case AssetReward:
		return e.reward, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset %d", ErrInvalidInput, asset)
	}
}

// debit pulls amount from owner into the module account.
func (e *Engine) debit(ledger ValueLedger, from [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := ledger.TransferFrom(from, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return nil
}

// pay sends amount from the module account to to.
func (e *Engine) pay(ledger ValueLedger, to [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := ledger.Transfer(to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) loadPosition(id uint64) (*Position, error) {
	pos, ok, err := e.state.GridPositionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || pos == nil {
		return nil, fmt.Errorf("%w: %d", ErrPositionNotFound, id)
	}
	return pos.ensureDefaults(), nil
}

func (e *Engine) loadOwnedPosition(id uint64, caller [20]byte) (*Position, error) {
	pos, err := e.loadPosition(id)
	if err != nil {
		return nil, err
	}
	if pos.Owner != caller {
		return nil, ErrNotOwner
	}
	return pos, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*Account, error) {
	acc, ok, err := e.state.GridAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || acc == nil {
		return newAccount(addr), nil
	}
	acc.Address = addr
	return acc.ensureDefaults(), nil
}

func (e *Engine) loadPool() (*Pool, error) {
	pool, ok, err := e.state.GridPoolGet()
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return newPool(), nil
	}
	return pool.ensureDefaults(), nil
}

// creditEarned adds amount to addr's cumulative earnings.
func (e *Engine) creditEarned(addr [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	acc.Earned = new(big.Int).Add(acc.Earned, amount)
	return e.state.GridAccountPut(acc)
}

// Position returns a copy of the position record.
func (e *Engine) Position(id uint64) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.loadPosition(id)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// Account returns the account record, or an empty record for unknown addresses.
func (e *Engine) Account(addr [20]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// PositionsOf returns every position owned by addr in purchase order.
func (e *Engine) PositionsOf(addr [20]byte) ([]*Position, error) {
	acc, err := e.Account(addr)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(acc.Positions))
	for _, id := range acc.Positions {
		pos, err := e.loadPosition(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pos.Clone())
	}
	return out, nil
}

// Pool returns a copy of the dividend pool.
func (e *Engine) Pool() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}
