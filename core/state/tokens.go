package state

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// TokenMetadata describes a registered fungible asset.
type TokenMetadata struct {
	Symbol     string
	Name       string
	Decimals   uint8
	MintPaused bool
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func tokenMetaKey(symbol string) []byte {
	return append(append([]byte{}, tokenMetaPrefix...), symbol...)
}

func balanceKey(addr []byte, symbol string) []byte {
	key := append(append([]byte{}, tokenBalancePrefix...), symbol...)
	key = append(key, '/')
	return append(key, addr...)
}

// RegisterToken adds symbol to the asset index. Symbols are case-insensitive
// and may be registered once.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", symbol)
	}
	if m.TokenExists(symbol) {
		return fmt.Errorf("token %s already registered", symbol)
	}
	list, err := m.TokenList()
	if err != nil {
		return err
	}
	list = append(list, symbol)
	sort.Strings(list)
	if err := m.KVPut(tokenListKey, list); err != nil {
		return err
	}
	return m.KVPut(tokenMetaKey(symbol), &TokenMetadata{Symbol: symbol, Name: name, Decimals: decimals})
}

// SetTokenMintPaused blocks or allows minting of symbol.
func (m *Manager) SetTokenMintPaused(symbol string, paused bool) error {
	meta, err := m.Token(symbol)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s not registered", normalizeSymbol(symbol))
	}
	meta.MintPaused = paused
	return m.KVPut(tokenMetaKey(meta.Symbol), meta)
}

// Token returns the metadata of symbol, or nil when it is not registered.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, nil
	}
	meta := new(TokenMetadata)
	ok, err := m.KVGet(tokenMetaKey(symbol), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// TokenList returns the registered symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	list := []string{}
	if _, err := m.KVGet(tokenListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) TokenExists(symbol string) bool {
	meta, err := m.Token(symbol)
	return err == nil && meta != nil
}

// SetBalance overwrites addr's balance of symbol. Zero balances are removed.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	symbol = normalizeSymbol(symbol)
	if !m.TokenExists(symbol) {
		return fmt.Errorf("token %s not registered", symbol)
	}
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(balanceKey(addr, symbol))
	}
	return m.KVPut(balanceKey(addr, symbol), amount)
}

// Balance returns addr's balance of symbol, zero when nothing is stored.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	balance := new(big.Int)
	if _, err := m.KVGet(balanceKey(addr, normalizeSymbol(symbol)), balance); err != nil {
		return nil, err
	}
	return balance, nil
}
