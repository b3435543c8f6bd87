package state

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the stored balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrInsufficientAllowance is returned when a spend exceeds the approved allowance.
	ErrInsufficientAllowance = errors.New("state: insufficient allowance")
	// ErrBalanceOverflow is returned when a credit would exceed 256 bits.
	ErrBalanceOverflow = errors.New("state: balance overflow")
)

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("state: negative amount %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return out, nil
}

// AddBalance credits delta to addr's balance of symbol and returns the new
// balance.
func (m *Manager) AddBalance(addr []byte, symbol string, delta *big.Int) (*big.Int, error) {
	current, err := m.Balance(addr, symbol)
	if err != nil {
		return nil, err
	}
	a, err := toUint256(current)
	if err != nil {
		return nil, err
	}
	d, err := toUint256(delta)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(a, d)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	updated := sum.ToBig()
	if err := m.SetBalance(addr, symbol, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// SubBalance debits delta from addr's balance of symbol and returns the new
// balance.
func (m *Manager) SubBalance(addr []byte, symbol string, delta *big.Int) (*big.Int, error) {
	current, err := m.Balance(addr, symbol)
	if err != nil {
		return nil, err
	}
	a, err := toUint256(current)
	if err != nil {
		return nil, err
	}
	d, err := toUint256(delta)
	if err != nil {
		return nil, err
	}
	diff, underflow := new(uint256.Int).SubOverflow(a, d)
	if underflow {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, delta)
	}
	updated := diff.ToBig()
	if err := m.SetBalance(addr, symbol, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func allowanceKey(symbol string, owner, spender [20]byte) []byte {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	key := make([]byte, 0, len(allowancePrefix)+len(normalized)+1+40)
	key = append(key, allowancePrefix...)
	key = append(key, normalized...)
	key = append(key, '/')
	key = append(key, owner[:]...)
	key = append(key, spender[:]...)
	return key
}

// Allowance returns the amount of symbol spender may move on owner's behalf.
func (m *Manager) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	stored := new(big.Int)
	ok, err := m.KVGet(allowanceKey(symbol, owner, spender), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return stored, nil
}

// SetAllowance overwrites the allowance; a zero amount removes it.
func (m *Manager) SetAllowance(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(allowanceKey(symbol, owner, spender))
	}
	if _, err := toUint256(amount); err != nil {
		return err
	}
	return m.KVPut(allowanceKey(symbol, owner, spender), amount)
}

// SpendAllowance reduces the allowance by amount.
func (m *Manager) SpendAllowance(symbol string, owner, spender [20]byte, amount *big.Int) error {
	current, err := m.Allowance(symbol, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance, current, amount)
	}
	return m.SetAllowance(symbol, owner, spender, new(big.Int).Sub(current, amount))
}
