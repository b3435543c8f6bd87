package events

import (
	"strconv"

	"gridchain/core/types"
	"gridchain/crypto"
)

const (
	// TypeCollectibleMinted is emitted when a collectible is issued.
	TypeCollectibleMinted = "collectible.minted"
	// TypeCollectibleTransferred is emitted when a collectible changes hands.
	TypeCollectibleTransferred = "collectible.transferred"
)

type CollectibleMinted struct {
	ID    uint64
	Owner [20]byte
	Tier  string
}

func (CollectibleMinted) EventType() string { return TypeCollectibleMinted }

func (e CollectibleMinted) Event() *types.Event {
	return &types.Event{Type: TypeCollectibleMinted, Attributes: map[string]string{
		"id":    strconv.FormatUint(e.ID, 10),
		"owner": crypto.MustNewAddress(crypto.GridPrefix, e.Owner[:]).String(),
		"tier":  e.Tier,
	}}
}

type CollectibleTransferred struct {
	ID   uint64
	From [20]byte
	To   [20]byte
}

func (CollectibleTransferred) EventType() string { return TypeCollectibleTransferred }

func (e CollectibleTransferred) Event() *types.Event {
	return &types.Event{Type: TypeCollectibleTransferred, Attributes: map[string]string{
		"id":   strconv.FormatUint(e.ID, 10),
		"from": crypto.MustNewAddress(crypto.GridPrefix, e.From[:]).String(),
		"to":   crypto.MustNewAddress(crypto.GridPrefix, e.To[:]).String(),
	}}
}
