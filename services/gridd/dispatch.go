package gridd

import (
	"context"
	"log/slog"
	"math/big"

	"gridchain/core/events"
	"gridchain/core/types"
	"gridchain/native/grid"
	"gridchain/observability"
)

type payoutRule struct {
	kind  string
	attr  string
	asset grid.Asset
}

var payoutRules = map[string]payoutRule{
	grid.EventTypeReferralPaid:      {kind: "referral", attr: "amount", asset: grid.AssetPurchase},
	grid.EventTypeDividendPaid:      {kind: "dividend", attr: "paid", asset: grid.AssetPurchase},
	grid.EventTypePositionWithdrawn: {kind: "withdraw", attr: "net", asset: grid.AssetReward},
	grid.EventTypeAirdropClaimed:    {kind: "airdrop", attr: "amount", asset: grid.AssetReward},
	grid.EventTypeWheelSpun:         {kind: "wheel", attr: "amount", asset: grid.AssetReward},
}

// dispatch forwards committed events to every sink. Sink failures are logged
// and never undo the committed state.
func (s *Service) dispatch(ctx context.Context, committed []events.Event) {
	if len(committed) == 0 {
		return
	}
	raw := make([]*types.Event, 0, len(committed))
	for _, evt := range committed {
		payload, ok := grid.Unwrap(evt)
		if !ok {
			continue
		}
		raw = append(raw, payload)
	}
	if s.audit != nil {
		if err := s.audit.Append(ctx, raw); err != nil {
			s.logger.Error("audit append failed", slog.String("error", err.Error()), slog.Int("events", len(raw)))
		}
	}
	eventMetrics := observability.Events()
	for _, evt := range raw {
		eventMetrics.RecordEvent(evt.Type)
		s.recordPayout(evt)
		if s.hub != nil {
			s.hub.Publish(evt)
		}
		s.logger.Info("event", slog.String("event", evt.Type), slog.Any("attributes", evt.Attributes))
	}
}

func (s *Service) recordPayout(evt *types.Event) {
	rule, ok := payoutRules[evt.Type]
	if !ok {
		return
	}
	amount, ok := new(big.Int).SetString(evt.Attributes[rule.attr], 10)
	if !ok {
		return
	}
	symbol := s.purchase.Symbol()
	if rule.asset == grid.AssetReward {
		symbol = s.reward.Symbol()
	}
	s.metrics.RecordPayout(rule.kind, symbol, amount)
}
