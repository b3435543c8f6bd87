package events

import (
	"math/big"

	"gridchain/core/types"
	"gridchain/crypto"
)

const (
	// TypeTransfer is emitted for every fungible balance movement.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "token.approval"
)

type Transfer struct {
	Asset   string
	From    [20]byte
	To      [20]byte
	Amount  *big.Int
	Spender [20]byte
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = crypto.MustNewAddress(crypto.GridPrefix, e.From[:]).String()
	attrs["to"] = crypto.MustNewAddress(crypto.GridPrefix, e.To[:]).String()
	attrs["amount"] = formatAmount(e.Amount)
	if e.Spender != ([20]byte{}) {
		attrs["spender"] = crypto.MustNewAddress(crypto.GridPrefix, e.Spender[:]).String()
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Approval struct {
	Asset   string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"asset":   normalizeAsset(e.Asset),
		"owner":   crypto.MustNewAddress(crypto.GridPrefix, e.Owner[:]).String(),
		"spender": crypto.MustNewAddress(crypto.GridPrefix, e.Spender[:]).String(),
		"amount":  formatAmount(e.Amount),
	}}
}
