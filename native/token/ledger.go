// Package token provides a fungible balance ledger backed by the journaled
// state manager. A Ledger is bound to one token symbol and one spender
// account, which lets it act as the value ledger of an engine module.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gridchain/core/events"
	"gridchain/core/state"
)

var (
	ErrNilState       = errors.New("token: state not configured")
	ErrUnknownToken   = errors.New("token: token not registered")
	ErrInvalidAmount  = errors.New("token: amount must be positive")
	ErrInvalidAddress = errors.New("token: address required")
	ErrMintPaused     = errors.New("token: minting paused")
)

type ledgerState interface {
	TokenExists(symbol string) bool
	Token(symbol string) (*state.TokenMetadata, error)
	Balance(addr []byte, symbol string) (*big.Int, error)
	AddBalance(addr []byte, symbol string, delta *big.Int) (*big.Int, error)
	SubBalance(addr []byte, symbol string, delta *big.Int) (*big.Int, error)
	Allowance(symbol string, owner, spender [20]byte) (*big.Int, error)
	SetAllowance(symbol string, owner, spender [20]byte, amount *big.Int) error
	SpendAllowance(symbol string, owner, spender [20]byte, amount *big.Int) error
	AdjustSupply(symbol string, delta *big.Int) (*big.Int, error)
}

// Ledger moves one token between accounts. Transfer pays out of the bound
// account and TransferFrom spends the allowance owners granted to it.
type Ledger struct {
	state   ledgerState
	symbol  string
	account [20]byte
	emitter events.Emitter
}

// NewLedger binds symbol to account. The token must already be registered.
func NewLedger(state ledgerState, symbol string, account [20]byte) (*Ledger, error) {
	if state == nil {
		return nil, ErrNilState
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !state.TokenExists(normalized) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return &Ledger{state: state, symbol: normalized, account: account, emitter: events.NoopEmitter{}}, nil
}

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Symbol returns the bound token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Account returns the bound account.
func (l *Ledger) Account() [20]byte { return l.account }

// Transfer pays amount from the bound account to to.
func (l *Ledger) Transfer(to [20]byte, amount *big.Int) error {
	return l.move(l.account, to, amount, [20]byte{})
}

// TransferFrom moves amount from from to to using from's allowance to the
// bound account.
func (l *Ledger) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if err := validate(amount); err != nil {
		return err
	}
	if err := l.state.SpendAllowance(l.symbol, from, l.account, amount); err != nil {
		return err
	}
	return l.move(from, to, amount, l.account)
}

// Send moves amount directly between two accounts on the owner's authority.
func (l *Ledger) Send(from, to [20]byte, amount *big.Int) error {
	return l.move(from, to, amount, [20]byte{})
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return l.state.Balance(addr[:], l.symbol)
}

// Approve sets the amount spender may move on owner's behalf.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if owner == ([20]byte{}) || spender == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.state.SetAllowance(l.symbol, owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Asset: l.symbol, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Allowance returns the amount spender may move on owner's behalf.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return l.state.Allowance(l.symbol, owner, spender)
}

// Mint credits amount to to and grows the recorded supply.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	if err := validate(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	meta, err := l.state.Token(l.symbol)
	if err != nil {
		return err
	}
	if meta != nil && meta.MintPaused {
		return ErrMintPaused
	}
	if _, err := l.state.AddBalance(to[:], l.symbol, amount); err != nil {
		return err
	}
	total, err := l.state.AdjustSupply(l.symbol, amount)
	if err != nil {
		return err
	}
	l.emitter.Emit(events.SupplyMinted{Asset: l.symbol, To: to, Amount: new(big.Int).Set(amount), Total: total})
	return nil
}

func (l *Ledger) move(from, to [20]byte, amount *big.Int, spender [20]byte) error {
	if err := validate(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if _, err := l.state.SubBalance(from[:], l.symbol, amount); err != nil {
		return err
	}
	if _, err := l.state.AddBalance(to[:], l.symbol, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: l.symbol, From: from, To: to, Amount: new(big.Int).Set(amount), Spender: spender})
	return nil
}

func validate(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
