// Package collectible tracks the tiered collectibles whose holders share in
// grid dividends and airdrops.
package collectible

import (
	"bytes"
	"sort"
	"time"

	"gridchain/core/events"
	"gridchain/native/grid"
)

type registryState interface {
	CollectibleGet(id uint64) (*Token, bool, error)
	CollectiblePut(token *Token) error
	CollectibleNextID() (uint64, error)
	CollectibleTierTokens(tier grid.HolderTier) ([]uint64, error)
	CollectibleTierTokensPut(tier grid.HolderTier, ids []uint64) error
	CollectibleHoldings(owner [20]byte) ([]uint64, error)
	CollectibleHoldingsPut(owner [20]byte, ids []uint64) error
}

// Registry mints and transfers collectibles and answers the holder queries
// the grid engine needs.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() time.Time
}

func NewRegistry(state registryState) *Registry {
	return &Registry{state: state, emitter: events.NoopEmitter{}, nowFn: time.Now}
}

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the clock used to stamp minted tokens.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

// Mint issues a new token of tier to owner.
func (r *Registry) Mint(owner [20]byte, tier grid.HolderTier) (*Token, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if tier != grid.HolderLarge && tier != grid.HolderSmall {
		return nil, ErrInvalidTier
	}
	if owner == ([20]byte{}) {
		return nil, ErrInvalidOwner
	}
	id, err := r.state.CollectibleNextID()
	if err != nil {
		return nil, err
	}
	token := &Token{ID: id, Owner: owner, Tier: tier, MintedAt: uint64(r.nowFn().Unix())}
	if err := r.state.CollectiblePut(token); err != nil {
		return nil, err
	}
	ids, err := r.state.CollectibleTierTokens(tier)
	if err != nil {
		return nil, err
	}
	if err := r.state.CollectibleTierTokensPut(tier, insertID(ids, id)); err != nil {
		return nil, err
	}
	if err := r.addHolding(owner, id); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.CollectibleMinted{ID: id, Owner: owner, Tier: tier.String()})
	return token.Clone(), nil
}

// Transfer moves token id from from to to.
func (r *Registry) Transfer(id uint64, from, to [20]byte) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if to == ([20]byte{}) {
		return ErrInvalidOwner
	}
	token, ok, err := r.state.CollectibleGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotFound
	}
	if !bytes.Equal(token.Owner[:], from[:]) {
		return ErrNotOwner
	}
	if from == to {
		return nil
	}
	held, err := r.state.CollectibleHoldings(from)
	if err != nil {
		return err
	}
	if err := r.state.CollectibleHoldingsPut(from, removeID(held, id)); err != nil {
		return err
	}
	if err := r.addHolding(to, id); err != nil {
		return err
	}
	token.Owner = to
	if err := r.state.CollectiblePut(token); err != nil {
		return err
	}
	r.emitter.Emit(events.CollectibleTransferred{ID: id, From: from, To: to})
	return nil
}

// Token returns the token with id.
func (r *Registry) Token(id uint64) (*Token, error) {
	token, ok, err := r.state.CollectibleGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// Holdings lists the token ids held by owner in ascending order.
func (r *Registry) Holdings(owner [20]byte) ([]uint64, error) {
	return r.state.CollectibleHoldings(owner)
}

func (r *Registry) LargeHolderCount() (uint64, error) {
	ids, err := r.state.CollectibleTierTokens(grid.HolderLarge)
	return uint64(len(ids)), err
}

func (r *Registry) SmallHolderCount() (uint64, error) {
	ids, err := r.state.CollectibleTierTokens(grid.HolderSmall)
	return uint64(len(ids)), err
}

func (r *Registry) OwnerOfToken(id uint64) ([20]byte, error) {
	token, err := r.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Owner, nil
}

func (r *Registry) IsLargeHolder(addr [20]byte) (bool, error) {
	return r.holdsTier(addr, grid.HolderLarge)
}

func (r *Registry) IsSmallHolder(addr [20]byte) (bool, error) {
	return r.holdsTier(addr, grid.HolderSmall)
}

// Tokens lists the token ids of tier in ascending order.
func (r *Registry) Tokens(tier grid.HolderTier) ([]uint64, error) {
	return r.state.CollectibleTierTokens(tier)
}

func (r *Registry) holdsTier(addr [20]byte, tier grid.HolderTier) (bool, error) {
	held, err := r.state.CollectibleHoldings(addr)
	if err != nil {
		return false, err
	}
	for _, id := range held {
		token, ok, err := r.state.CollectibleGet(id)
		if err != nil {
			return false, err
		}
		if ok && token.Tier == tier {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) addHolding(owner [20]byte, id uint64) error {
	held, err := r.state.CollectibleHoldings(owner)
	if err != nil {
		return err
	}
	return r.state.CollectibleHoldingsPut(owner, insertID(held, id))
}

func insertID(ids []uint64, id uint64) []uint64 {
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if idx < len(ids) && ids[idx] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[idx+1:], ids[idx:])
	ids[idx] = id
	return ids
}

func removeID(ids []uint64, id uint64) []uint64 {
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if idx < len(ids) && ids[idx] == id {
		return append(ids[:idx], ids[idx+1:]...)
	}
	return ids
}
