package state

import (
	"fmt"

	"gridchain/native/collectible"
	"gridchain/native/grid"
)

type storedCollectible struct {
	ID       uint64
	Owner    [20]byte
	Tier     uint8
	MintedAt uint64
}

// CollectibleGet loads a collectible token.
func (m *Manager) CollectibleGet(id uint64) (*collectible.Token, bool, error) {
	var stored storedCollectible
	ok, err := m.KVGet(uint64Key(collectiblePrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &collectible.Token{
		ID:       stored.ID,
		Owner:    stored.Owner,
		Tier:     grid.HolderTier(stored.Tier),
		MintedAt: stored.MintedAt,
	}, true, nil
}

// CollectiblePut persists a collectible token.
func (m *Manager) CollectiblePut(token *collectible.Token) error {
	if token == nil {
		return fmt.Errorf("collectible: nil token")
	}
	return m.KVPut(uint64Key(collectiblePrefix, token.ID), &storedCollectible{
		ID:       token.ID,
		Owner:    token.Owner,
		Tier:     uint8(token.Tier),
		MintedAt: token.MintedAt,
	})
}

// CollectibleNextID allocates the next token id, starting at 1.
func (m *Manager) CollectibleNextID() (uint64, error) {
	return m.nextSequence(collectibleSequenceKey)
}

func collectibleTierKey(tier grid.HolderTier) []byte {
	return append(append([]byte(nil), collectibleTierPrefix...), byte(tier))
}

// CollectibleTierTokens lists the token ids of tier in ascending order.
func (m *Manager) CollectibleTierTokens(tier grid.HolderTier) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(collectibleTierKey(tier), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CollectibleTierTokensPut replaces the token index of tier.
func (m *Manager) CollectibleTierTokensPut(tier grid.HolderTier, ids []uint64) error {
	if len(ids) == 0 {
		return m.KVDelete(collectibleTierKey(tier))
	}
	return m.KVPut(collectibleTierKey(tier), ids)
}

// CollectibleHoldings lists the token ids held by owner.
func (m *Manager) CollectibleHoldings(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(addrKey(collectibleOwnerPrefix, owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CollectibleHoldingsPut replaces the holdings index of owner.
func (m *Manager) CollectibleHoldingsPut(owner [20]byte, ids []uint64) error {
	if len(ids) == 0 {
		return m.KVDelete(addrKey(collectibleOwnerPrefix, owner))
	}
	return m.KVPut(addrKey(collectibleOwnerPrefix, owner), ids)
}
