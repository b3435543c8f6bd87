package collectible

import (
	"errors"

	"gridchain/native/grid"
)

var (
	ErrNilState      = errors.New("collectible: state not configured")
	ErrInvalidTier   = errors.New("collectible: tier must be large or small")
	ErrInvalidOwner  = errors.New("collectible: owner required")
	ErrTokenNotFound = errors.New("collectible: token not found")
	ErrNotOwner      = errors.New("collectible: caller does not own token")
)

// Token is a single tiered collectible.
type Token struct {
	ID       uint64          `json:"id"`
	Owner    [20]byte        `json:"owner"`
	Tier     grid.HolderTier `json:"tier"`
	MintedAt uint64          `json:"mintedAt"`
}

// Clone returns a copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
