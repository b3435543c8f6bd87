package grid

import (
	"math/big"
	"strconv"

	"gridchain/core/events"
	"gridchain/core/types"
)

const (
	// EventTypePositionPurchased is emitted when a buyer acquires a position.
	EventTypePositionPurchased = "grid.position.purchased"
	// EventTypeSponsorLinked is emitted when a buyer's sponsor is recorded.
	EventTypeSponsorLinked = "grid.sponsor.linked"
	// EventTypeReferralPaid is emitted for each direct or indirect referral payout.
	EventTypeReferralPaid = "grid.referral.paid"
	// EventTypeIncomeAccrued is emitted when income is credited to a position.
	EventTypeIncomeAccrued = "grid.income.accrued"
	// EventTypePositionFrozen is emitted when accrued income crosses the freeze threshold.
	EventTypePositionFrozen = "grid.position.frozen"
	// EventTypePositionWithdrawn is emitted when a position's income is paid out.
	EventTypePositionWithdrawn = "grid.position.withdrawn"
	// EventTypePositionReactivated is emitted when a frozen position is reactivated.
	EventTypePositionReactivated = "grid.position.reactivated"
	// EventTypeWheelSpun is emitted for every resolved draw.
	EventTypeWheelSpun = "grid.wheel.spun"
	// EventTypePoolCredited is emitted when the dividend pool grows.
	EventTypePoolCredited = "grid.pool.credited"
	// EventTypeDividendDistributed summarises a pool distribution.
	EventTypeDividendDistributed = "grid.dividend.distributed"
	// EventTypeDividendPaid is emitted for each cohort payout.
	EventTypeDividendPaid = "grid.dividend.paid"
	// EventTypeDividendCarried is emitted when an empty cohort's share returns to the pool.
	EventTypeDividendCarried = "grid.dividend.carried"
	// EventTypeAirdropClaimed is emitted when an account claims its periodic airdrop.
	EventTypeAirdropClaimed = "grid.airdrop.claimed"
	// EventTypeLevelChanged is emitted when an account moves between level cohorts.
	EventTypeLevelChanged = "grid.level.changed"
	// EventTypeParamsUpdated is emitted when an admin replaces the economy params.
	EventTypeParamsUpdated = "grid.params.updated"
	// EventTypeEmergencyWithdrawn is emitted when an admin recovers stranded funds.
	EventTypeEmergencyWithdrawn = "grid.emergency.withdrawn"
	// EventTypeRootRegistered is emitted when an admin seeds a sponsor root.
	EventTypeRootRegistered = "grid.root.registered"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// Unwrap extracts the raw payload from an envelope produced by WrapEvent.
func Unwrap(evt events.Event) (*types.Event, bool) {
	env, ok := evt.(interface{ Event() *types.Event })
	if !ok || env.Event() == nil {
		return nil, false
	}
	return env.Event(), true
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PositionPurchasedEvent captures a completed purchase.
func PositionPurchasedEvent(pos *Position, sponsor string) *types.Event {
	return &types.Event{
		Type: EventTypePositionPurchased,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"owner":      hexAddr(pos.Owner),
			"rank":       pos.Rank.String(),
			"price":      amountString(pos.Price),
			"sponsor":    sponsor,
		},
	}
}

// SponsorLinkedEvent captures a one-time sponsor assignment.
func SponsorLinkedEvent(account, sponsor [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeSponsorLinked,
		Attributes: map[string]string{
			"account": hexAddr(account),
			"sponsor": hexAddr(sponsor),
		},
	}
}

// ReferralPaidEvent captures a referral payout at the given hop (1 = direct).
func ReferralPaidEvent(buyer, sponsor [20]byte, hop int, rank Rank, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeReferralPaid,
		Attributes: map[string]string{
			"buyer":   hexAddr(buyer),
			"sponsor": hexAddr(sponsor),
			"hop":     strconv.Itoa(hop),
			"rank":    rank.String(),
			"amount":  amountString(amount),
		},
	}
}

// IncomeAccruedEvent captures an income credit and the resulting total.
func IncomeAccruedEvent(pos *Position, source IncomeSource, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeIncomeAccrued,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"source":     source.String(),
			"amount":     amountString(amount),
			"total":      pos.TotalIncome().String(),
		},
	}
}

// PositionFrozenEvent captures the freeze transition.
func PositionFrozenEvent(pos *Position, threshold *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePositionFrozen,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"owner":      hexAddr(pos.Owner),
			"total":      pos.TotalIncome().String(),
			"threshold":  amountString(threshold),
		},
	}
}

// PositionWithdrawnEvent captures an income withdrawal.
func PositionWithdrawnEvent(pos *Position, res *WithdrawResult) *types.Event {
	return &types.Event{
		Type: EventTypePositionWithdrawn,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"owner":      hexAddr(pos.Owner),
			"gross":      amountString(res.Gross),
			"fee":        amountString(res.Fee),
			"net":        amountString(res.Net),
		},
	}
}

// PositionReactivatedEvent captures a reactivation and its per-asset cost.
func PositionReactivatedEvent(pos *Position, cost *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePositionReactivated,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"owner":      hexAddr(pos.Owner),
			"cost":       amountString(cost),
		},
	}
}

// WheelSpunEvent captures a resolved draw.
func WheelSpunEvent(pos *Position, res *SpinResult, sample uint64) *types.Event {
	return &types.Event{
		Type: EventTypeWheelSpun,
		Attributes: map[string]string{
			"positionId": u64(pos.ID),
			"owner":      hexAddr(pos.Owner),
			"nonce":      u64(pos.Draws - 1),
			"sample":     u64(sample),
			"tier":       strconv.Itoa(res.Tier),
			"multiplier": u64(res.Multiplier),
			"amount":     amountString(res.Amount),
		},
	}
}

// PoolCreditedEvent captures a pool top-up from source ("purchase", "deposit" or "carry").
func PoolCreditedEvent(source string, from [20]byte, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePoolCredited,
		Attributes: map[string]string{
			"source":  source,
			"from":    hexAddr(from),
			"amount":  amountString(amount),
			"balance": amountString(balance),
		},
	}
}

// DividendDistributedEvent summarises a distribution.
func DividendDistributedEvent(d *Distribution) *types.Event {
	return &types.Event{
		Type: EventTypeDividendDistributed,
		Attributes: map[string]string{
			"drained":    amountString(d.Drained),
			"paid":       amountString(d.Paid),
			"carried":    amountString(d.Carried),
			"dust":       d.Dust().String(),
			"recipients": u64(d.Recipients),
		},
	}
}

// DividendPaidEvent captures one cohort's payout.
func DividendPaidEvent(c *CohortPayout) *types.Event {
	return &types.Event{
		Type: EventTypeDividendPaid,
		Attributes: map[string]string{
			"cohort":    c.Cohort,
			"share":     amountString(c.Share),
			"members":   u64(c.Members),
			"perMember": amountString(c.PerMember),
			"paid":      amountString(c.Paid),
		},
	}
}

// DividendCarriedEvent captures an empty cohort's share being escrowed.
func DividendCarriedEvent(cohort string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDividendCarried,
		Attributes: map[string]string{
			"cohort": cohort,
			"amount": amountString(amount),
		},
	}
}

// AirdropClaimedEvent captures a flat airdrop claim.
func AirdropClaimedEvent(account [20]byte, tier string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeAirdropClaimed,
		Attributes: map[string]string{
			"account": hexAddr(account),
			"tier":    tier,
			"amount":  amountString(amount),
		},
	}
}

// LevelChangedEvent captures a level cohort transition.
func LevelChangedEvent(account [20]byte, from, to Level, positions int) *types.Event {
	return &types.Event{
		Type: EventTypeLevelChanged,
		Attributes: map[string]string{
			"account":   hexAddr(account),
			"from":      from.String(),
			"to":        to.String(),
			"positions": strconv.Itoa(positions),
		},
	}
}

// ParamsUpdatedEvent records who replaced the params.
func ParamsUpdatedEvent(subject string) *types.Event {
	return &types.Event{
		Type:       EventTypeParamsUpdated,
		Attributes: map[string]string{"subject": subject},
	}
}

// EmergencyWithdrawnEvent records an admin recovery transfer.
func EmergencyWithdrawnEvent(subject string, asset Asset, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeEmergencyWithdrawn,
		Attributes: map[string]string{
			"subject": subject,
			"asset":   asset.String(),
			"to":      hexAddr(to),
			"amount":  amountString(amount),
		},
	}
}

// RootRegisteredEvent records a sponsor root seeded without a purchase.
func RootRegisteredEvent(subject string, account [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeRootRegistered,
		Attributes: map[string]string{
			"subject": subject,
			"account": hexAddr(account),
		},
	}
}
