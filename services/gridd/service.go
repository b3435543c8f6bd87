package gridd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gridchain/config"
	"gridchain/core/events"
	"gridchain/core/state"
	"gridchain/native/collectible"
	nativecommon "gridchain/native/common"
	"gridchain/native/grid"
	"gridchain/native/token"
	"gridchain/observability"
	gridotel "gridchain/observability/otel"
	"gridchain/storage"
)

// ErrQuotaExceeded wraps purchase quota denials.
var ErrQuotaExceeded = errors.New("gridd: purchase quota exceeded")

// Deps bundles what the service needs. Audit and Hub are optional sinks.
type Deps struct {
	DB            storage.Database
	ModuleAddress [20]byte
	Assets        config.Assets
	Params        grid.Params
	SourceFunc    grid.SourceFunc
	AllowMigrate  bool
	Paused        bool
	Quota         *nativecommon.QuotaTracker
	Audit         *AuditStore
	Hub           *Hub
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service serializes economy operations, commits state after each success and
// fans committed events out to the audit store, websocket hub, log and
// metrics.
type Service struct {
	mu       sync.Mutex
	manager  *state.Manager
	engine   *grid.Engine
	purchase *token.Ledger
	reward   *token.Ledger
	registry *collectible.Registry
	assets   config.Assets
	pauses   *nativecommon.PauseSet
	quota    *nativecommon.QuotaTracker
	buffer   *events.Recorder
	undo     []func()
	audit    *AuditStore
	hub      *Hub
	logger   *slog.Logger
	metrics  *observability.GridMetrics
}

// New opens the economy over deps.DB, registering both assets on first run
// and restoring persisted params.
func New(deps Deps) (*Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("gridd: database required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	manager := state.NewManager(deps.DB)
	if err := manager.CheckSchema(deps.AllowMigrate); err != nil {
		return nil, err
	}
	for _, asset := range []struct{ symbol, name string }{
		{deps.Assets.PurchaseSymbol, deps.Assets.PurchaseName},
		{deps.Assets.RewardSymbol, deps.Assets.RewardName},
	} {
		if manager.TokenExists(asset.symbol) {
			continue
		}
		if err := manager.RegisterToken(asset.symbol, asset.name, deps.Assets.Decimals); err != nil {
			return nil, fmt.Errorf("register %s: %w", asset.symbol, err)
		}
	}

	buffer := &events.Recorder{}
	purchase, err := token.NewLedger(manager, deps.Assets.PurchaseSymbol, deps.ModuleAddress)
	if err != nil {
		return nil, err
	}
	purchase.SetEmitter(buffer)
	reward, err := token.NewLedger(manager, deps.Assets.RewardSymbol, deps.ModuleAddress)
	if err != nil {
		return nil, err
	}
	reward.SetEmitter(buffer)
	registry := collectible.NewRegistry(manager)
	registry.SetEmitter(buffer)
	registry.SetNowFunc(nowFn)

	pauses := nativecommon.NewPauseSet()
	pauses.Set(grid.ModuleName, deps.Paused)

	engine := grid.NewEngine(deps.ModuleAddress, deps.Params)
	engine.SetState(manager)
	engine.SetLedgers(purchase, reward)
	engine.SetRegistry(registry)
	engine.SetEmitter(buffer)
	engine.SetPauses(pauses)
	engine.SetSourceFunc(deps.SourceFunc)
	engine.SetNowFunc(func() int64 { return nowFn().Unix() })
	restored, err := engine.RestoreParams()
	if err != nil {
		return nil, err
	}
	if restored {
		logger.Info("restored persisted economy params")
	}
	if err := manager.Commit(); err != nil {
		return nil, err
	}

	return &Service{
		manager:  manager,
		engine:   engine,
		purchase: purchase,
		reward:   reward,
		registry: registry,
		assets:   deps.Assets,
		pauses:   pauses,
		quota:    deps.Quota,
		buffer:   buffer,
		audit:    deps.Audit,
		hub:      deps.Hub,
		logger:   logger,
		metrics:  observability.Grid(),
	}, nil
}

// run executes fn under the service lock as one committed unit. Hooks
// registered through onDiscard run in reverse order when the unit is
// discarded.
func (s *Service) run(ctx context.Context, op string, fn func() error) error {
	ctx, span := gridotel.Tracer().Start(ctx, "grid."+op)
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	s.buffer.Events = nil
	s.undo = nil
	err := fn()
	if err == nil {
		err = s.manager.Commit()
	}
	var committed []events.Event
	if err != nil {
		s.manager.Discard()
		for i := len(s.undo) - 1; i >= 0; i-- {
			s.undo[i]()
		}
	} else {
		committed = s.buffer.Events
	}
	s.buffer.Events = nil
	s.undo = nil
	s.mu.Unlock()

	s.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("operation rejected", slog.String("operation", op), slog.String("error", err.Error()))
		return err
	}
	span.SetAttributes(attribute.Int("grid.events", len(committed)))
	s.dispatch(ctx, committed)
	return nil
}

// Purchase buys a position of rank for buyer.
func (s *Service) Purchase(ctx context.Context, buyer [20]byte, rank grid.Rank, sponsor [20]byte) (uint64, error) {
	var id uint64
	err := s.run(ctx, "purchase", func() error {
		var err error
		id, err = s.engine.Purchase(buyer, rank, sponsor)
		if err != nil {
			return err
		}
		// Rejected purchases are not charged.
		price := s.engine.Params().PriceOf(rank)
		if qerr := s.quota.Charge(buyer, price); qerr != nil {
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, qerr)
		}
		s.onDiscard(func() { s.quota.Refund(buyer, price) })
		return nil
	})
	return id, err
}

// Spin runs the periodic draw for a position.
func (s *Service) Spin(ctx context.Context, id uint64, caller [20]byte) (*grid.SpinResult, error) {
	var res *grid.SpinResult
	err := s.run(ctx, "spin", func() error {
		var err error
		res, err = s.engine.Spin(id, caller)
		return err
	})
	return res, err
}

// Withdraw pays out a position's accrued income.
func (s *Service) Withdraw(ctx context.Context, id uint64, caller [20]byte) (*grid.WithdrawResult, error) {
	var res *grid.WithdrawResult
	err := s.run(ctx, "withdraw", func() error {
		var err error
		res, err = s.engine.Withdraw(id, caller)
		return err
	})
	return res, err
}

// Reactivate restores a frozen position.
func (s *Service) Reactivate(ctx context.Context, id uint64, caller [20]byte) error {
	return s.run(ctx, "reactivate", func() error {
		return s.engine.Reactivate(id, caller)
	})
}

// ClaimAirdrop pays caller's periodic airdrop.
func (s *Service) ClaimAirdrop(ctx context.Context, caller [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := s.run(ctx, "airdrop", func() error {
		var err error
		amount, err = s.engine.ClaimAirdrop(caller)
		return err
	})
	return amount, err
}

// Deposit adds from's purchase asset to the dividend pool.
func (s *Service) Deposit(ctx context.Context, from [20]byte, amount *big.Int) error {
	return s.run(ctx, "deposit", func() error {
		return s.engine.AddToPool(from, amount)
	})
}

// Approve lets the module account pull amount of the selected asset from owner.
func (s *Service) Approve(ctx context.Context, asset grid.Asset, owner [20]byte, amount *big.Int) error {
	return s.run(ctx, "approve", func() error {
		ledger, err := s.ledger(asset)
		if err != nil {
			return err
		}
		return ledger.Approve(owner, s.engine.ModuleAddress(), amount)
	})
}

// Accrue credits operator-reported income to a position.
func (s *Service) Accrue(ctx context.Context, capability grid.Capability, id uint64, amount *big.Int, source grid.IncomeSource) (bool, error) {
	var frozen bool
	err := s.run(ctx, "accrue", func() error {
		var err error
		frozen, err = s.engine.AccrueIncome(capability, id, amount, source)
		return err
	})
	return frozen, err
}

// Distribute drains the dividend pool across the cohorts.
func (s *Service) Distribute(ctx context.Context, capability grid.Capability) (*grid.Distribution, error) {
	var dist *grid.Distribution
	err := s.run(ctx, "distribute", func() error {
		var err error
		dist, err = s.engine.Distribute(capability)
		return err
	})
	if err == nil {
		if pool, perr := s.Pool(); perr == nil {
			s.metrics.SetPool(pool.Balance)
		}
	}
	return dist, err
}

// UpdateParams replaces the economy params.
func (s *Service) UpdateParams(ctx context.Context, capability grid.Capability, params grid.Params) error {
	return s.run(ctx, "update_params", func() error {
		prev := s.engine.Params()
		if err := s.engine.UpdateParams(capability, params); err != nil {
			return err
		}
		s.onDiscard(func() { s.engine.SetParams(prev) })
		return nil
	})
}

// onDiscard registers an in-memory rollback for the running unit. Callers
// must hold s.mu, which run does.
func (s *Service) onDiscard(fn func()) {
	s.undo = append(s.undo, fn)
}

// EmergencyWithdraw moves module funds out under admin authority.
func (s *Service) EmergencyWithdraw(ctx context.Context, capability grid.Capability, asset grid.Asset, to [20]byte, amount *big.Int) error {
	return s.run(ctx, "emergency_withdraw", func() error {
		return s.engine.EmergencyWithdraw(capability, asset, to, amount)
	})
}

// RegisterRoot seeds a sponsor root.
func (s *Service) RegisterRoot(ctx context.Context, capability grid.Capability, addr [20]byte) error {
	return s.run(ctx, "register_root", func() error {
		return s.engine.RegisterRoot(capability, addr)
	})
}

// MintCollectible issues a tiered collectible under admin authority.
func (s *Service) MintCollectible(ctx context.Context, capability grid.Capability, owner [20]byte, tier grid.HolderTier) (*collectible.Token, error) {
	var minted *collectible.Token
	err := s.run(ctx, "mint_collectible", func() error {
		if !capability.Allows(grid.RoleAdmin) {
			return fmt.Errorf("%w: admin role required", grid.ErrUnauthorized)
		}
		var err error
		minted, err = s.registry.Mint(owner, tier)
		return err
	})
	return minted, err
}

// TransferCollectible moves a collectible between holders.
func (s *Service) TransferCollectible(ctx context.Context, id uint64, from, to [20]byte) error {
	return s.run(ctx, "transfer_collectible", func() error {
		return s.registry.Transfer(id, from, to)
	})
}

// SetPaused toggles the economy pause flag under admin authority.
func (s *Service) SetPaused(capability grid.Capability, paused bool) error {
	if !capability.Allows(grid.RoleAdmin) {
		return fmt.Errorf("%w: admin role required", grid.ErrUnauthorized)
	}
	s.pauses.Set(grid.ModuleName, paused)
	s.logger.Info("pause flag changed", slog.Bool("paused", paused), slog.String("subject", capability.Subject))
	return nil
}

// Paused reports whether economy operations are suspended.
func (s *Service) Paused() bool { return s.pauses.IsPaused(grid.ModuleName) }

// Position returns a position snapshot.
func (s *Service) Position(id uint64) (*grid.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Position(id)
}

// Account returns an account snapshot with its positions.
func (s *Service) Account(addr [20]byte) (*grid.Account, []*grid.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.engine.Account(addr)
	if err != nil {
		return nil, nil, err
	}
	positions, err := s.engine.PositionsOf(addr)
	if err != nil {
		return nil, nil, err
	}
	return acc, positions, nil
}

// LevelMembers lists the accounts at level.
func (s *Service) LevelMembers(level grid.Level) ([][20]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.LevelMembers(level)
}

// Pool returns the dividend pool snapshot.
func (s *Service) Pool() (*grid.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Pool()
}

// Params returns the active economy params.
func (s *Service) Params() grid.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Params()
}

// Balance returns addr's balance of the selected asset.
func (s *Service) Balance(asset grid.Asset, addr [20]byte) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, err := s.ledger(asset)
	if err != nil {
		return nil, err
	}
	return ledger.BalanceOf(addr)
}

// Collectibles lists the tokens held by owner.
func (s *Service) Collectibles(owner [20]byte) ([]*collectible.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.registry.Holdings(owner)
	if err != nil {
		return nil, err
	}
	out := make([]*collectible.Token, 0, len(ids))
	for _, id := range ids {
		tok, err := s.registry.Token(id)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// Assets returns the configured asset names and decimals.
func (s *Service) Assets() config.Assets { return s.assets }

// ModuleAddress returns the account holding economy funds.
func (s *Service) ModuleAddress() [20]byte { return s.engine.ModuleAddress() }

func (s *Service) ledger(asset grid.Asset) (*token.Ledger, error) {
	switch asset {
	case grid.AssetPurchase:
		return s.purchase, nil
	case grid.AssetReward:
		return s.reward, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset %d", grid.ErrInvalidInput, asset)
	}
}
