package events

import (
	"math/big"

	"gridchain/core/types"
	"gridchain/crypto"
)

const TypeSupplyMinted = "asset.minted"

// SupplyMinted reports new units of an asset entering circulation.
type SupplyMinted struct {
	Asset  string
	To     [20]byte
	Amount *big.Int
	Total  *big.Int
}

func (SupplyMinted) EventType() string { return TypeSupplyMinted }

func (e SupplyMinted) Event() *types.Event {
	return &types.Event{Type: TypeSupplyMinted, Attributes: map[string]string{
		"asset":  normalizeAsset(e.Asset),
		"to":     crypto.MustNewAddress(crypto.GridPrefix, e.To[:]).String(),
		"amount": formatAmount(e.Amount),
		"total":  formatAmount(e.Total),
	}}
}
