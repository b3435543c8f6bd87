package state

import (
	"fmt"
	"math/big"
	"strings"
)

func supplyKey(symbol string) ([]byte, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("supply: symbol required")
	}
	return append(append([]byte{}, tokenSupplyPrefix...), symbol...), nil
}

// Supply returns the minted total of symbol. Unminted assets report zero.
func (m *Manager) Supply(symbol string) (*big.Int, error) {
	key, err := supplyKey(symbol)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if _, err := m.KVGet(key, total); err != nil {
		return nil, fmt.Errorf("supply %s: %w", symbol, err)
	}
	return total, nil
}

// AdjustSupply adds delta, which may be negative, to the minted total and
// returns the new total.
func (m *Manager) AdjustSupply(symbol string, delta *big.Int) (*big.Int, error) {
	key, err := supplyKey(symbol)
	if err != nil {
		return nil, err
	}
	total, err := m.Supply(symbol)
	if err != nil {
		return nil, err
	}
	if delta != nil {
		total.Add(total, delta)
	}
	if total.Sign() < 0 {
		return nil, fmt.Errorf("supply %s: underflow", symbol)
	}
	if err := m.KVPut(key, total); err != nil {
		return nil, err
	}
	return total, nil
}
